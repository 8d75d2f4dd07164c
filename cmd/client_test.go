package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scdl/client"
	"scdl/config"
	"scdl/history"
	"scdl/session"
	"scdl/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientEndToEnd drives the session controller against the real router
func TestClientEndToEnd(t *testing.T) {
	helper := NewTestHelper(t, 3)
	outDir := t.TempDir()

	store, err := history.NewBoltStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	recent, err := history.Open(store)
	require.NoError(t, err)

	svc := client.New(helper.Server.URL, client.Options{Timeout: 5 * time.Second, OutputDir: outDir})
	var out, errOut bytes.Buffer
	host := newTerminalHost(&out, &errOut)

	ctrl := session.New(svc, svc, host, recent, session.Options{
		PollInterval: 10 * time.Millisecond,
		StaggerDelay: 5 * time.Millisecond,
	})

	sess, err := ctrl.Run(context.Background(), types.DownloadRequest{URL: playlistURL, CreateFolder: true, NumberTracks: true})
	require.NoError(t, err)
	assert.Equal(t, types.PhaseCompleted, sess.Phase)
	assert.Equal(t, types.ModePlaylist, sess.Mode)

	for _, name := range []string{"01 - Neon Lights.mp3", "02 - Outro.mp3"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Equal(t, "audio:Night Drive/"+name, string(data))
	}

	assert.Contains(t, out.String(), "2 tracks downloaded successfully!")
	assert.Empty(t, errOut.String())

	entries := recent.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, playlistURL, entries[0].URL)

	reopened, err := history.Open(store)
	require.NoError(t, err)
	assert.Equal(t, entries, reopened.Entries())
}

func TestClientEndToEndFailure(t *testing.T) {
	helper := NewTestHelper(t, 3)
	helper.Fetcher.files = nil
	helper.Fetcher.err = errors.New("yt-dlp: HTTP Error 403: Forbidden")

	svc := client.New(helper.Server.URL, client.Options{Timeout: 5 * time.Second, OutputDir: t.TempDir()})
	var out, errOut bytes.Buffer
	ctrl := session.New(svc, svc, newTerminalHost(&out, &errOut), nil, session.Options{PollInterval: 10 * time.Millisecond})

	_, err := ctrl.Run(context.Background(), types.DownloadRequest{URL: trackURL})
	require.ErrorIs(t, err, session.ErrDownloadFailed)
	assert.Contains(t, err.Error(), "Access denied")
	assert.Contains(t, errOut.String(), "Error: download failed: Access denied")
}

func TestShowInfo(t *testing.T) {
	helper := NewTestHelper(t, 3)
	svc := client.New(helper.Server.URL, client.DefaultOptions())

	var out bytes.Buffer
	require.NoError(t, showInfo(context.Background(), &out, svc, playlistURL))

	assert.Contains(t, out.String(), "From link:  playlist: Night Drive by Night Driver")
	assert.Contains(t, out.String(), "From server: playlist: Night Drive by Night Driver")

	assert.Error(t, showInfo(context.Background(), &out, svc, "https://example.com/x"))
}

func TestApplyClientOptions(t *testing.T) {
	base := config.DefaultClientConfig()
	applyClientOptions(&base, ClientOptions{Endpoint: "http://other:9000", Format: "opus"})

	assert.Equal(t, "http://other:9000", base.Endpoint)
	assert.Equal(t, "opus", base.Format)
	assert.Equal(t, "192", base.Quality)
	assert.Equal(t, ".", base.OutputDir)
}

func TestTerminalHost(t *testing.T) {
	var out, errOut bytes.Buffer
	host := newTerminalHost(&out, &errOut)

	host.Progress(0, "Starting download...")
	host.Progress(40, "Downloading... 40%")
	host.Notify("Track downloaded successfully!")
	host.Alert(errors.New("boom"))

	assert.Contains(t, out.String(), "Downloading... 40%")
	assert.Contains(t, out.String(), "Track downloaded successfully!")
	assert.Contains(t, errOut.String(), "Error: boom")
}
