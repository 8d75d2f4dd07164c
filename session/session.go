// Package session implements the download session controller: it submits a
// download to the Download Service, polls its status until the download
// completes or fails, and then retrieves the result files.
//
// At most one session is active per Controller. Submitting again cancels
// tracking of the previous session. Cancellation is local only; the service
// is never asked to stop work it has already started.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"scdl/history"
	"scdl/types"
	"scdl/urlinfo"
)

var (
	// ErrDownloadFailed is returned when the service reports a failed download
	ErrDownloadFailed = errors.New("download failed")
	// ErrCancelled is returned by Poll when the session was cancelled or superseded
	ErrCancelled = errors.New("download cancelled")
	// ErrNotActive is returned by Poll for an id that is not the active session
	ErrNotActive = errors.New("session is not active")
)

// Service is the remote Download Service
type Service interface {
	Start(ctx context.Context, req types.DownloadRequest) (string, error)
	Status(ctx context.Context, id string) (*types.DownloadStatus, error)
}

// Retriever saves one result file
type Retriever interface {
	Retrieve(ctx context.Context, file types.FileDescriptor) error
}

// Host receives everything the user should see
type Host interface {
	Progress(percent float64, description string)
	Notify(message string)
	Alert(err error)
}

// Recorder stores history entries; *history.List implements it
type Recorder interface {
	Record(entry types.HistoryEntry) error
}

// Options configures the controller timing
type Options struct {
	// PollInterval is the delay between two status requests.
	// Default: 1s
	PollInterval time.Duration

	// StaggerDelay separates the start of two consecutive file retrievals.
	// Default: 500ms
	StaggerDelay time.Duration

	// Now is used for history timestamps.
	// Default: time.Now
	Now func() time.Time
}

// DefaultOptions returns the timing used by the interactive client
func DefaultOptions() Options {
	return Options{
		PollInterval: time.Second,
		StaggerDelay: 500 * time.Millisecond,
		Now:          time.Now,
	}
}

// Session is the client-side view of one download
type Session struct {
	ID       string
	Mode     types.Mode
	Phase    types.Phase
	Progress float64
	Files    []types.FileDescriptor
	Err      error
}

type active struct {
	id     string
	mode   types.Mode
	ctx    context.Context
	cancel context.CancelFunc
}

// Controller drives download sessions
type Controller struct {
	svc       Service
	retriever Retriever
	host      Host
	history   Recorder
	opts      Options

	mu      sync.Mutex
	current *active
}

// New creates a controller. history may be nil.
func New(svc Service, retriever Retriever, host Host, rec Recorder, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.StaggerDelay < 0 {
		opts.StaggerDelay = 0
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	return &Controller{
		svc:       svc,
		retriever: retriever,
		host:      host,
		history:   rec,
		opts:      opts,
	}
}

// Submit validates req, asks the service to start it and makes the returned
// download the active session. Invalid requests never reach the service.
func (c *Controller) Submit(ctx context.Context, req types.DownloadRequest) (string, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := urlinfo.Validate(req.URL); err != nil {
		c.host.Alert(err)
		return "", err
	}
	if !req.Mode.Valid() {
		req.Mode = urlinfo.Classify(req.URL)
	}
	if req.TrackLimit < 0 {
		req.TrackLimit = 0
	}

	c.host.Progress(0, "Starting download...")

	id, err := c.svc.Start(ctx, req)
	if err != nil {
		err = fmt.Errorf("failed to start download: %w", err)
		c.host.Alert(err)
		return "", err
	}

	c.activate(id, req.Mode)

	if c.history != nil {
		if err := c.history.Record(history.NewEntry(req.URL, req.Mode, c.opts.Now())); err != nil {
			log.Printf("Failed to record history for %s: %v", id, err)
		}
	}

	return id, nil
}

// Run submits req and polls it to the end
func (c *Controller) Run(ctx context.Context, req types.DownloadRequest) (*Session, error) {
	id, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Poll(ctx, id)
}

// Poll queries the status of the active session id every PollInterval until
// it completes, fails, or is cancelled. On completion the result files are
// retrieved.
func (c *Controller) Poll(ctx context.Context, id string) (*Session, error) {
	cur, ok := c.lookup(id)
	if !ok {
		return nil, ErrNotActive
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(cur.ctx, cancel)
	defer stop()

	sess := &Session{ID: id, Mode: cur.mode, Phase: types.PhaseStarting}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return sess, c.interrupted(parent, cur, sess)
		case <-timer.C:
		}

		st, err := c.svc.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return sess, c.interrupted(parent, cur, sess)
			}
			c.release(cur)
			sess.Phase = types.PhaseFailed
			sess.Err = err
			c.host.Alert(fmt.Errorf("download error: %w", err))
			return sess, err
		}

		sess.Phase = st.Status
		sess.Progress = st.Progress

		switch st.Status {
		case types.PhaseCompleted:
			// retrieval must outlive the session slot released below
			if !stop() {
				return sess, c.interrupted(parent, cur, sess)
			}
			sess.Progress = 100
			sess.Files = st.Files
			c.host.Progress(100, "Download complete!")
			c.release(cur)
			err := c.complete(ctx, sess)
			sess.Err = err
			return sess, err

		case types.PhaseFailed:
			err := ErrDownloadFailed
			if st.Error != "" {
				err = fmt.Errorf("%w: %s", ErrDownloadFailed, st.Error)
			}
			c.release(cur)
			sess.Err = err
			c.host.Alert(err)
			return sess, err

		case types.PhaseStarting:
			c.host.Progress(st.Progress, "Preparing download...")

		case types.PhaseDownloading:
			c.host.Progress(st.Progress, fmt.Sprintf("Downloading... %d%%", int(math.Round(st.Progress))))

		default:
			c.host.Progress(st.Progress, "Processing...")
		}

		timer.Reset(c.opts.PollInterval)
	}
}

// Cancel stops tracking the active session from outside the goroutine
// running Poll. The service is not contacted, so a download it already
// started keeps running server side. Cancelling the context passed to Poll
// has the same local effect and is how the command-line client cancels.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()

	if cur == nil {
		return false
	}

	cur.cancel()
	c.host.Notify("Download cancelled.")
	return true
}

// Active returns the id of the active session, if any
func (c *Controller) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return "", false
	}
	return c.current.id, true
}

func (c *Controller) complete(ctx context.Context, sess *Session) error {
	if len(sess.Files) == 0 {
		c.host.Notify("Download complete, but no files were found.")
		return nil
	}

	if err := c.retrieveFiles(ctx, sess.Files); err != nil {
		c.host.Alert(err)
		return err
	}

	if sess.Mode == types.ModePlaylist {
		c.host.Notify(fmt.Sprintf("%d tracks downloaded successfully!", len(sess.Files)))
	} else {
		c.host.Notify("Track downloaded successfully!")
	}
	return nil
}

// retrieveFiles retrieves files in order, starting file i no earlier than
// (i+1)*StaggerDelay after completion was observed. A failed file does not
// stop the others.
func (c *Controller) retrieveFiles(ctx context.Context, files []types.FileDescriptor) error {
	start := time.Now()
	var errs []error

	for i, file := range files {
		wait := time.Until(start.Add(time.Duration(i+1) * c.opts.StaggerDelay))
		if err := sleep(ctx, wait); err != nil {
			errs = append(errs, err)
			break
		}

		if err := c.retriever.Retrieve(ctx, file); err != nil {
			errs = append(errs, fmt.Errorf("retrieve %s: %w", file.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Controller) activate(id string, mode types.Mode) {
	ctx, cancel := context.WithCancel(context.Background())
	next := &active{id: id, mode: mode, ctx: ctx, cancel: cancel}

	c.mu.Lock()
	prev := c.current
	c.current = next
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
}

func (c *Controller) lookup(id string) (*active, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.id != id {
		return nil, false
	}
	return c.current, true
}

// release clears cur if it is still the active session
func (c *Controller) release(cur *active) {
	c.mu.Lock()
	if c.current == cur {
		c.current = nil
	}
	c.mu.Unlock()

	cur.cancel()
}

// interrupted reports why polling stopped before a terminal phase
func (c *Controller) interrupted(parent context.Context, cur *active, sess *Session) error {
	err := ErrCancelled
	if cur.ctx.Err() == nil {
		// the caller's context ended, not the session
		c.release(cur)
		err = fmt.Errorf("%w: %w", ErrCancelled, parent.Err())
	}
	sess.Err = err
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
