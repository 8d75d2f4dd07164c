package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"scdl/types"
)

// ErrBinaryNotFound indicates the configured yt-dlp binary was not found
var ErrBinaryNotFound = errors.New("yt-dlp binary not found")

// FetchJob describes one retrieval handed to a Fetcher
type FetchJob struct {
	ID           string
	URL          string
	Mode         types.Mode
	Format       string
	Quality      string
	Dir          string
	CreateFolder bool
	NumberTracks bool
	TrackLimit   int
}

// FetchProgress is a progress report emitted while fetching
type FetchProgress struct {
	Percent      float64
	HasPercent   bool
	CurrentTrack string
}

// Fetcher retrieves and converts media into a job directory
type Fetcher interface {
	Fetch(ctx context.Context, job FetchJob, onProgress func(FetchProgress)) error
	Probe(ctx context.Context, url string) (*types.MediaInfo, error)
}

// YtdlpFetcher runs the yt-dlp binary
type YtdlpFetcher struct {
	Binary    string
	ExtraArgs []string
}

// NewYtdlpFetcher creates a fetcher for binary (default "yt-dlp")
func NewYtdlpFetcher(binary string, extraArgs ...string) *YtdlpFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtdlpFetcher{Binary: binary, ExtraArgs: extraArgs}
}

var percentPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)%`)

// Fetch downloads job.URL into job.Dir, reporting progress line by line.
// The yt-dlp output is also appended to download.log in the job directory.
func (f *YtdlpFetcher) Fetch(ctx context.Context, job FetchJob, onProgress func(FetchProgress)) error {
	if _, err := exec.LookPath(f.Binary); err != nil {
		return ErrBinaryNotFound
	}

	if err := os.MkdirAll(job.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", job.Dir, err)
	}

	logFile, err := os.OpenFile(filepath.Join(job.Dir, "download.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	args := append(f.buildArgs(job), f.ExtraArgs...)
	args = append(args, "--", job.URL)
	fmt.Fprintf(logFile, "URL: %s\nMode: %s\nFormat: %s\nQuality: %s\n%s\n", job.URL, job.Mode, job.Format, job.Quality, strings.Repeat("-", 50))

	cmd := exec.CommandContext(ctx, f.Binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		logMu   sync.Mutex
		errMu   sync.Mutex
		lastErr string
	)

	consume := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()

			logMu.Lock()
			fmt.Fprintln(logFile, line)
			logMu.Unlock()

			if strings.HasPrefix(line, "ERROR:") {
				errMu.Lock()
				lastErr = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
				errMu.Unlock()
				continue
			}

			if p, ok := parseProgressLine(line); ok && onProgress != nil {
				onProgress(p)
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("[%s] yt-dlp output error: %v", job.ID, err)
		}
	}

	wg.Add(2)
	go consume(stdout)
	go consume(stderr)

	wg.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErr != "" {
			return fmt.Errorf("yt-dlp: %s", lastErr)
		}
		return fmt.Errorf("yt-dlp: %w", waitErr)
	}
	return nil
}

// buildArgs maps a job to yt-dlp flags, without the trailing URL
func (f *YtdlpFetcher) buildArgs(job FetchJob) []string {
	quality := job.Quality
	if quality == "" || quality == "best" {
		quality = "0"
	} else if !strings.HasSuffix(quality, "K") {
		quality += "K"
	}

	args := []string{
		"--newline",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", job.Format,
		"--audio-quality", quality,
		"--add-metadata",
		"--ignore-errors",
		"--no-check-certificates",
		"-o", filepath.Join(job.Dir, outputTemplate(job)),
	}

	if job.Mode == types.ModePlaylist {
		args = append(args, "--yes-playlist")
		if job.TrackLimit > 0 {
			args = append(args, "--playlist-items", fmt.Sprintf("1-%d", job.TrackLimit))
		}
	} else {
		args = append(args, "--no-playlist")
	}

	return args
}

func outputTemplate(job FetchJob) string {
	name := "%(title)s.%(ext)s"
	if job.Mode != types.ModePlaylist {
		return name
	}

	if job.NumberTracks {
		name = "%(playlist_index)s - " + name
	}
	if job.CreateFolder {
		name = filepath.Join("%(playlist_title)s", name)
	}
	return name
}

// parseProgressLine extracts progress from one line of yt-dlp output
func parseProgressLine(line string) (FetchProgress, bool) {
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "[download]"):
		content := strings.TrimSpace(strings.TrimPrefix(trimmed, "[download]"))

		if strings.HasPrefix(content, "Destination:") {
			dest := strings.TrimSpace(strings.TrimPrefix(content, "Destination:"))
			return FetchProgress{CurrentTrack: stem(dest)}, dest != ""
		}

		if m := percentPattern.FindStringSubmatch(content); m != nil {
			pct, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return FetchProgress{}, false
			}
			return FetchProgress{Percent: pct, HasPercent: true}, true
		}

	case strings.HasPrefix(trimmed, "[ExtractAudio] Destination:"):
		dest := strings.TrimSpace(strings.TrimPrefix(trimmed, "[ExtractAudio] Destination:"))
		return FetchProgress{CurrentTrack: "Converting: " + stem(dest)}, dest != ""
	}

	return FetchProgress{}, false
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Probe asks yt-dlp for metadata without downloading anything
func (f *YtdlpFetcher) Probe(ctx context.Context, url string) (*types.MediaInfo, error) {
	if _, err := exec.LookPath(f.Binary); err != nil {
		return nil, ErrBinaryNotFound
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Binary, "--dump-single-json", "--flat-playlist", "--no-warnings", "--no-check-certificates", "--", url)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("yt-dlp: %s", msg)
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*types.MediaInfo, error) {
	var raw struct {
		Title     string  `json:"title"`
		Uploader  string  `json:"uploader"`
		Duration  float64 `json:"duration"`
		Thumbnail string  `json:"thumbnail"`
		Type      string  `json:"_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	info := &types.MediaInfo{
		Title:      raw.Title,
		Artist:     raw.Uploader,
		Duration:   raw.Duration,
		Thumbnail:  raw.Thumbnail,
		IsPlaylist: raw.Type == "playlist",
	}
	if info.Title == "" {
		info.Title = "SoundCloud track"
	}
	if info.Artist == "" {
		info.Artist = "SoundCloud artist"
	}
	return info, nil
}
