package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"scdl/types"
	"scdl/urlinfo"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	ErrTooManyDownloads = errors.New("too many downloads in progress, try again in a moment")
	ErrDownloadNotFound = errors.New("download not found")
	ErrNotCompleted     = errors.New("download not completed yet")
	ErrInvalidOption    = errors.New("invalid download option")
)

// Formats lists the audio formats a download can be converted to
var Formats = []string{"mp3", "m4a", "opus", "flac", "wav"}

// Qualities lists the accepted quality values, in kbps or "best"
var Qualities = []string{"128", "192", "256", "320", "best"}

var qualityPattern = regexp.MustCompile(`^\d{2,3}$`)

const noFilesMessage = "Could not download the audio. Check that the link is correct."

// Broadcaster receives live progress for downloads
type Broadcaster interface {
	BroadcastProgress(downloadID, msgType string, status types.Phase, currentFile, message string, progress float64)
}

// DownloadManager interface defines the methods for managing downloads
type DownloadManager interface {
	Start(req types.StartRequest) (types.DownloadRecord, error)
	Get(id string) (types.DownloadRecord, bool)
	Files(id string) ([]types.FileDescriptor, error)
	List() []types.DownloadRecord
	Info(ctx context.Context, url string) (*types.MediaInfo, error)
	Cleanup(ctx context.Context, maxAge time.Duration) (removed, remaining int)
	MaxConcurrent() int
	Shutdown()
}

// ManagerConfig configures a download manager
type ManagerConfig struct {
	// Root is the local directory holding one sub-directory per download
	Root string
	// MaxConcurrent bounds the downloads in starting/downloading state
	MaxConcurrent int
}

// downloadManager runs downloads in the background and tracks their state
type downloadManager struct {
	cfg     ManagerConfig
	fetcher Fetcher
	files   FileService
	hub     Broadcaster
	slots   *semaphore.Weighted

	mu        sync.RWMutex
	downloads map[string]*types.DownloadRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewDownloadManager creates a new download manager. hub may be nil.
func NewDownloadManager(cfg ManagerConfig, fetcher Fetcher, files FileService, hub Broadcaster) DownloadManager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &downloadManager{
		cfg:       cfg,
		fetcher:   fetcher,
		files:     files,
		hub:       hub,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		downloads: make(map[string]*types.DownloadRecord),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start validates req and begins the download in the background
func (m *downloadManager) Start(req types.StartRequest) (types.DownloadRecord, error) {
	job, err := m.buildJob(req)
	if err != nil {
		return types.DownloadRecord{}, err
	}

	if !m.slots.TryAcquire(1) {
		return types.DownloadRecord{}, ErrTooManyDownloads
	}

	job.ID = uuid.New().String()[:8]
	job.Dir = filepath.Join(m.cfg.Root, job.ID)

	record := &types.DownloadRecord{
		ID:        job.ID,
		URL:       job.URL,
		Mode:      job.Mode,
		Format:    job.Format,
		Quality:   job.Quality,
		Status:    types.PhaseStarting,
		StartTime: m.now(),
		Files:     []types.FileDescriptor{},
	}

	m.mu.Lock()
	m.downloads[job.ID] = record
	snapshot := copyRecord(record)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(job)

	log.Printf("[%s] Download queued: %s", job.ID, job.URL)
	return snapshot, nil
}

func (m *downloadManager) buildJob(req types.StartRequest) (FetchJob, error) {
	url := strings.TrimSpace(req.URL)
	if err := urlinfo.Validate(url); err != nil {
		return FetchJob{}, err
	}

	job := FetchJob{
		URL:          url,
		Mode:         req.Mode,
		Format:       strings.ToLower(strings.TrimSpace(req.Format)),
		Quality:      strings.ToLower(strings.TrimSpace(req.Quality)),
		CreateFolder: true,
		NumberTracks: true,
		TrackLimit:   req.LimitTracks,
	}

	if job.Mode == "" {
		job.Mode = types.ModeSingle
	}
	if !job.Mode.Valid() {
		return FetchJob{}, fmt.Errorf("%w: mode %q", ErrInvalidOption, req.Mode)
	}

	if job.Format == "" {
		job.Format = "mp3"
	}
	if !contains(Formats, job.Format) {
		return FetchJob{}, fmt.Errorf("%w: format %q", ErrInvalidOption, req.Format)
	}

	if job.Quality == "" {
		job.Quality = "192"
	}
	if job.Quality != "best" && !qualityPattern.MatchString(job.Quality) {
		return FetchJob{}, fmt.Errorf("%w: quality %q", ErrInvalidOption, req.Quality)
	}

	if job.TrackLimit < 0 {
		return FetchJob{}, fmt.Errorf("%w: limitTracks must not be negative", ErrInvalidOption)
	}
	if req.CreateFolder != nil {
		job.CreateFolder = *req.CreateFolder
	}
	if req.NumberTracks != nil {
		job.NumberTracks = *req.NumberTracks
	}

	return job, nil
}

// run processes one download
func (m *downloadManager) run(job FetchJob) {
	defer m.wg.Done()
	defer m.slots.Release(1)

	m.setStatus(job.ID, types.PhaseDownloading, "")
	log.Printf("[%s] Starting download of %s", job.ID, job.URL)

	fetchErr := m.fetcher.Fetch(m.ctx, job, func(p FetchProgress) {
		m.updateProgress(job.ID, p)
	})

	files, scanErr := m.files.ScanAudioFiles(m.ctx, job.ID+"/")
	if scanErr != nil {
		log.Printf("[%s] Failed to scan files: %v", job.ID, scanErr)
	}

	// files are checked first: with --ignore-errors a playlist can report an
	// error and still produce tracks
	switch {
	case len(files) > 0:
		if fetchErr != nil {
			log.Printf("[%s] Download finished with errors: %v", job.ID, fetchErr)
		}
		m.complete(job.ID, files)
		log.Printf("[%s] Download completed, %d file(s)", job.ID, len(files))

	case fetchErr != nil:
		m.setStatus(job.ID, types.PhaseFailed, describeFetchError(fetchErr))
		log.Printf("[%s] Download failed: %v", job.ID, fetchErr)

	default:
		m.setStatus(job.ID, types.PhaseFailed, noFilesMessage)
		log.Printf("[%s] Download failed: no files found", job.ID)
	}
}

// describeFetchError turns a fetcher error into a user-facing message
func describeFetchError(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, ErrBinaryNotFound):
		return "The download backend is not available on the server."
	case strings.Contains(msg, "404"):
		return "Track not found. The link may be wrong or the track was removed."
	case strings.Contains(msg, "403"):
		return "Access denied by SoundCloud. The track may be restricted."
	case strings.Contains(msg, "429"):
		return "Too many requests. Wait a few minutes and try again."
	}

	if len(msg) > 200 {
		msg = msg[:200]
	}
	return "Download error: " + msg
}

// updateProgress records a fetcher progress report
func (m *downloadManager) updateProgress(id string, p FetchProgress) {
	m.mu.Lock()
	record, exists := m.downloads[id]
	if !exists || record.Status.Terminal() {
		m.mu.Unlock()
		return
	}

	if p.HasPercent {
		// 100 is reserved for the completed state
		record.Progress = min(p.Percent, 99)
	}
	if p.CurrentTrack != "" {
		record.CurrentTrack = p.CurrentTrack
	}
	progress, track, status := record.Progress, record.CurrentTrack, record.Status
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastProgress(id, "progress", status, track, fmt.Sprintf("Downloading... %.0f%%", progress), progress)
	}
}

// setStatus updates the download status
func (m *downloadManager) setStatus(id string, status types.Phase, errorMsg string) {
	m.mu.Lock()
	record, exists := m.downloads[id]
	if !exists {
		m.mu.Unlock()
		return
	}

	record.Status = status
	if errorMsg != "" {
		record.Error = errorMsg
	}
	progress := record.Progress
	m.mu.Unlock()

	if m.hub != nil {
		msgType, message := "status", string(status)
		if status == types.PhaseFailed {
			msgType, message = "error", errorMsg
		}
		m.hub.BroadcastProgress(id, msgType, status, "", message, progress)
	}
}

func (m *downloadManager) complete(id string, files []types.FileDescriptor) {
	m.mu.Lock()
	record, exists := m.downloads[id]
	if !exists {
		m.mu.Unlock()
		return
	}

	record.Status = types.PhaseCompleted
	record.Progress = 100
	record.Files = files
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastProgress(id, "complete", types.PhaseCompleted, "", fmt.Sprintf("%d file(s) ready", len(files)), 100)
	}
}

// Get retrieves a download by ID
func (m *downloadManager) Get(id string) (types.DownloadRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.downloads[id]
	if !exists {
		return types.DownloadRecord{}, false
	}
	return copyRecord(record), true
}

// Files returns the result files of a completed download
func (m *downloadManager) Files(id string) ([]types.FileDescriptor, error) {
	record, exists := m.Get(id)
	if !exists {
		return nil, ErrDownloadNotFound
	}
	if record.Status != types.PhaseCompleted {
		return nil, ErrNotCompleted
	}
	return record.Files, nil
}

// List returns all downloads, oldest first
func (m *downloadManager) List() []types.DownloadRecord {
	m.mu.RLock()
	records := make([]types.DownloadRecord, 0, len(m.downloads))
	for _, record := range m.downloads {
		records = append(records, copyRecord(record))
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
	return records
}

// Info returns authoritative metadata for a link
func (m *downloadManager) Info(ctx context.Context, url string) (*types.MediaInfo, error) {
	if err := urlinfo.Validate(url); err != nil {
		return nil, err
	}
	return m.fetcher.Probe(ctx, strings.TrimSpace(url))
}

// Cleanup removes finished downloads older than maxAge along with their files
func (m *downloadManager) Cleanup(ctx context.Context, maxAge time.Duration) (removed, remaining int) {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var expired []string
	for id, record := range m.downloads {
		if record.StartTime.Before(cutoff) && record.Status.Terminal() {
			expired = append(expired, id)
			delete(m.downloads, id)
		}
	}
	remaining = len(m.downloads)
	m.mu.Unlock()

	for _, id := range expired {
		if _, err := m.files.RemoveAll(ctx, id+"/"); err != nil {
			log.Printf("[%s] Failed to remove files: %v", id, err)
		}
		if err := os.RemoveAll(filepath.Join(m.cfg.Root, id)); err != nil {
			log.Printf("[%s] Failed to remove directory: %v", id, err)
		}
	}

	return len(expired), remaining
}

// MaxConcurrent returns the concurrent download limit
func (m *downloadManager) MaxConcurrent() int {
	return m.cfg.MaxConcurrent
}

// Shutdown cancels running downloads and waits for them to stop
func (m *downloadManager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func copyRecord(r *types.DownloadRecord) types.DownloadRecord {
	out := *r
	out.Files = append([]types.FileDescriptor{}, r.Files...)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
