package handlers

import (
	"net/http"
	"scdl/services"

	"github.com/gin-gonic/gin"
)

// SettingsHandler handles settings-related endpoints
type SettingsHandler struct {
	settings Settings
}

// Settings describes what the service accepts and how it is limited
type Settings struct {
	DownloadLocation       string   `json:"downloadLocation"`
	MaxConcurrentDownloads int      `json:"maxConcurrentDownloads"`
	Formats                []string `json:"formats"`
	Qualities              []string `json:"qualities"`
	DefaultFormat          string   `json:"defaultFormat"`
	DefaultQuality         string   `json:"defaultQuality"`
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(downloadLocation string, m services.DownloadManager) *SettingsHandler {
	return &SettingsHandler{
		settings: Settings{
			DownloadLocation:       downloadLocation,
			MaxConcurrentDownloads: m.MaxConcurrent(),
			Formats:                services.Formats,
			Qualities:              services.Qualities,
			DefaultFormat:          "mp3",
			DefaultQuality:         "192",
		},
	}
}

// GetSettings returns the current settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": h.settings,
	})
}
