package types

import "time"

// Mode selects between a single track and a whole playlist ("set")
type Mode string

const (
	ModeSingle   Mode = "single"
	ModePlaylist Mode = "playlist"
)

// Valid reports whether m is one of the known modes
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModePlaylist
}

// Phase represents the lifecycle phase of a download on the service
type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseDownloading Phase = "downloading"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether no further transitions can happen
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// DownloadRequest holds the options a user picked for one submission.
// It is built fresh for every submission and passed by value.
type DownloadRequest struct {
	URL          string
	Mode         Mode
	Format       string
	Quality      string
	CreateFolder bool
	NumberTracks bool
	TrackLimit   int // 0 = unlimited
}

// DownloadRecord is the service-side state of one download
type DownloadRecord struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Mode         Mode             `json:"mode"`
	Format       string           `json:"format"`
	Quality      string           `json:"quality"`
	Status       Phase            `json:"status"`
	Progress     float64          `json:"progress"`
	CurrentTrack string           `json:"current_track"`
	StartTime    time.Time        `json:"start_time"`
	Files        []FileDescriptor `json:"files"`
	Error        string           `json:"error,omitempty"`
}
