package types

// StartRequest is the body of POST /api/download.
// The playlist options are optional; nil means the service default.
type StartRequest struct {
	URL          string `json:"url"`
	Mode         Mode   `json:"mode,omitempty"`
	Format       string `json:"format,omitempty"`
	Quality      string `json:"quality,omitempty"`
	CreateFolder *bool  `json:"createFolder,omitempty"`
	NumberTracks *bool  `json:"numberTracks,omitempty"`
	LimitTracks  int    `json:"limitTracks,omitempty"`
}

// StartResponse is the body returned by POST /api/download
type StartResponse struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"downloadId,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DownloadStatus is the status object reported by GET /api/status/{id}
type DownloadStatus struct {
	Status       Phase            `json:"status"`
	Progress     float64          `json:"progress"`
	CurrentTrack string           `json:"current_track,omitempty"`
	Files        []FileDescriptor `json:"files,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// StatusResponse is the body returned by GET /api/status/{id}
type StatusResponse struct {
	Success bool            `json:"success"`
	Status  *DownloadStatus `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// FileDescriptor points at one result file of a completed download
type FileDescriptor struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	Size     int64          `json:"size,omitempty"`
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents tags read from a downloaded audio file
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// MediaInfo is the authoritative description of a track or playlist,
// as reported by GET /api/info
type MediaInfo struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Duration   float64 `json:"duration,omitempty"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	IsPlaylist bool    `json:"isPlaylist"`
}
