package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// DefaultCORSOrigins are allowed when CORS_ORIGINS is unset
var DefaultCORSOrigins = []string{"http://localhost:3000", "http://localhost:5000", "http://localhost:5173"}

// GetPort returns the HTTP port, 5000 unless PORT is set
func GetPort() int {
	return getInt("PORT", 5000)
}

// IsDebug reports whether DEBUG is set to a true value
func IsDebug() bool {
	debug, err := strconv.ParseBool(os.Getenv("DEBUG"))
	return err == nil && debug
}

// GetDownloadLocation returns the directory holding per-download folders
func GetDownloadLocation() string {
	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		return dir
	}
	return "downloads"
}

// GetMaxConcurrent returns the number of downloads allowed to run at once
func GetMaxConcurrent() int {
	return getInt("MAX_CONCURRENT_DOWNLOADS", 3)
}

// GetYtdlpPath returns the yt-dlp binary to run
func GetYtdlpPath() string {
	if path := os.Getenv("YTDLP_PATH"); path != "" {
		return path
	}
	return "yt-dlp"
}

// GetCORSOrigins returns the comma separated CORS_ORIGINS or the defaults
func GetCORSOrigins() []string {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		return DefaultCORSOrigins
	}

	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return DefaultCORSOrigins
	}
	return origins
}

// GetGinMode returns GIN_MODE, defaulting to release (debug when DEBUG is set)
func GetGinMode() string {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		return mode
	}
	if IsDebug() {
		return "debug"
	}
	return "release"
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("Ignoring invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}
