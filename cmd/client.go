package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"scdl/client"
	"scdl/config"
	"scdl/history"
	"scdl/session"
	"scdl/types"
	"scdl/urlinfo"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
)

// ErrReported marks errors the terminal already showed to the user
var ErrReported = errors.New("error already reported")

// ClientOptions are the command-line choices for one client run.
// Empty strings fall back to the client configuration file.
type ClientOptions struct {
	URL          string
	Mode         string
	Format       string
	Quality      string
	CreateFolder bool
	NumberTracks bool
	Limit        int
	OutputDir    string
	Endpoint     string
	ShowHistory  bool
	InfoURL      string
}

// RunClient runs one client action: history listing, info lookup or download
func RunClient(opts ClientOptions) error {
	cfg, err := config.GetClientConfig()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", config.ClientConfigPath(), err)
	}
	applyClientOptions(cfg, opts)

	store, err := history.NewBoltStore(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recent, err := history.Open(store)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if opts.ShowHistory {
		return history.Render(os.Stdout, recent.Entries())
	}

	svc := client.New(cfg.Endpoint, client.Options{
		Timeout:   cfg.RequestTimeout,
		OutputDir: cfg.OutputDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.InfoURL != "" {
		return showInfo(ctx, os.Stdout, svc, opts.InfoURL)
	}

	req := types.DownloadRequest{
		URL:          opts.URL,
		Mode:         types.Mode(opts.Mode),
		Format:       cfg.Format,
		Quality:      cfg.Quality,
		CreateFolder: opts.CreateFolder,
		NumberTracks: opts.NumberTracks,
		TrackLimit:   opts.Limit,
	}

	if urlinfo.Validate(req.URL) == nil {
		hint := urlinfo.Describe(req.URL)
		fmt.Fprintln(os.Stdout, hintStyle.Render(fmt.Sprintf("%s: %s by %s", hint.Mode, hint.Name, hint.Artist)))
	}

	host := newTerminalHost(os.Stdout, os.Stderr)
	ctrl := session.New(svc, svc, host, recent, session.Options{
		PollInterval: cfg.PollInterval,
		StaggerDelay: cfg.StaggerDelay,
	})

	if _, err := ctrl.Run(ctx, req); err != nil {
		if errors.Is(err, session.ErrCancelled) {
			host.Notify("Download cancelled.")
		}
		return fmt.Errorf("%w: %w", ErrReported, err)
	}
	return nil
}

func applyClientOptions(cfg *config.ClientConfig, opts ClientOptions) {
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if opts.Format != "" {
		cfg.Format = opts.Format
	}
	if opts.Quality != "" {
		cfg.Quality = opts.Quality
	}
}

// showInfo prints the URL heuristic next to the service's real metadata
func showInfo(ctx context.Context, w io.Writer, svc *client.Client, link string) error {
	if err := urlinfo.Validate(link); err != nil {
		return err
	}

	hint := urlinfo.Describe(link)
	fmt.Fprintf(w, "From link:  %s: %s by %s\n", hint.Mode, hint.Name, hint.Artist)

	info, err := svc.Info(ctx, link)
	if err != nil {
		return err
	}

	kind := types.ModeSingle
	if info.IsPlaylist {
		kind = types.ModePlaylist
	}
	fmt.Fprintf(w, "From server: %s: %s by %s\n", kind, info.Title, info.Artist)
	if info.Duration > 0 {
		fmt.Fprintf(w, "Duration:    %.0fs\n", info.Duration)
	}
	return nil
}

// terminalHost shows session progress as a progress bar
type terminalHost struct {
	out io.Writer
	err io.Writer
	bar *progressbar.ProgressBar
}

func newTerminalHost(out, errOut io.Writer) *terminalHost {
	return &terminalHost{out: out, err: errOut}
}

func (h *terminalHost) Progress(percent float64, description string) {
	if h.bar == nil {
		h.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(h.out),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
		)
	}

	h.bar.Describe(description)
	_ = h.bar.Set(int(percent))
}

func (h *terminalHost) Notify(message string) {
	h.finishBar()
	fmt.Fprintln(h.out, noticeStyle.Render(message))
}

func (h *terminalHost) Alert(err error) {
	h.finishBar()
	fmt.Fprintln(h.err, alertStyle.Render("Error: "+err.Error()))
}

func (h *terminalHost) finishBar() {
	if h.bar == nil {
		return
	}
	_ = h.bar.Exit()
	fmt.Fprintln(h.out)
	h.bar = nil
}
