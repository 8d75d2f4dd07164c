package types

import "time"

// ProgressMessage represents a WebSocket progress update message
type ProgressMessage struct {
	DownloadID  string    `json:"downloadId"`
	Type        string    `json:"type"`              // "progress", "status", "complete", "error"
	Progress    float64   `json:"progress"`          // 0-100 percentage
	Status      Phase     `json:"status"`            // current download phase
	CurrentFile string    `json:"currentFile"`       // name of the track being processed
	Message     string    `json:"message,omitempty"` // status or error messages
	Timestamp   time.Time `json:"timestamp"`
}
