package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scdl/services"
	"scdl/types"
	"scdl/websocket"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/fileblob"
)

// TestHelper runs the real router over a temporary download directory,
// with a scripted fetcher in place of yt-dlp
type TestHelper struct {
	Server  *httptest.Server
	Root    string
	Fetcher *scriptedFetcher
	Manager services.DownloadManager
	Files   services.FileService
	Hub     websocket.Hub
}

// NewTestHelper creates a new test helper with a temporary test environment
func NewTestHelper(t *testing.T, maxConcurrent int) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	bucket, err := fileblob.OpenBucket(root, nil)
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()

	fetcher := &scriptedFetcher{
		files: []string{"Night Drive/01 - Neon Lights.mp3", "Night Drive/02 - Outro.mp3"},
		info:  &types.MediaInfo{Title: "Night Drive", Artist: "Night Driver", IsPlaylist: true},
	}
	fileService := services.NewFileService(bucket)
	manager := services.NewDownloadManager(services.ManagerConfig{
		Root:          root,
		MaxConcurrent: maxConcurrent,
	}, fetcher, fileService, hub)

	router := NewRouter(Dependencies{
		Manager:          manager,
		Files:            fileService,
		Hub:              hub,
		DownloadLocation: root,
		CORSOrigins:      []string{"*"},
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		fetcher.Open()
		manager.Shutdown()
		bucket.Close()
	})

	return &TestHelper{
		Server:  server,
		Root:    root,
		Fetcher: fetcher,
		Manager: manager,
		Files:   fileService,
		Hub:     hub,
	}
}

// scriptedFetcher writes placeholder audio files into the job directory.
// When gated it waits for Open before finishing.
type scriptedFetcher struct {
	files []string
	err   error
	info  *types.MediaInfo

	mu       sync.Mutex
	gate     chan struct{}
	gateOnce sync.Once
}

// Gate makes subsequent fetches block until Open is called
func (f *scriptedFetcher) Gate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.gateOnce = sync.Once{}
}

// Open releases gated fetches
func (f *scriptedFetcher) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		f.gateOnce.Do(func() { close(f.gate) })
	}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, job services.FetchJob, onProgress func(services.FetchProgress)) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	onProgress(services.FetchProgress{CurrentTrack: "01 - Neon Lights"})
	onProgress(services.FetchProgress{Percent: 40, HasPercent: true})

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	onProgress(services.FetchProgress{Percent: 85, HasPercent: true})

	for _, name := range f.files {
		full := filepath.Join(job.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte("audio:"+name), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func (f *scriptedFetcher) Probe(ctx context.Context, url string) (*types.MediaInfo, error) {
	return f.info, f.err
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

// GetJSON makes a GET request and unmarshals the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target any) *http.Response {
	t.Helper()
	return h.decode(t, h.MakeRequest(t, http.MethodGet, path, nil), target)
}

// PostJSON makes a POST request with a JSON body and unmarshals the JSON response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody any, target any) *http.Response {
	t.Helper()
	return h.decode(t, h.MakeRequest(t, http.MethodPost, path, requestBody), target)
}

func (h *TestHelper) decode(t *testing.T, resp *http.Response, target any) *http.Response {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), string(body))
	}
	return resp
}

// StartDownload posts req and returns the new download id
func (h *TestHelper) StartDownload(t *testing.T, req types.StartRequest) string {
	t.Helper()

	var response types.StartResponse
	resp := h.PostJSON(t, "/api/download", req, &response)
	require.Equal(t, http.StatusOK, resp.StatusCode, response.Error)
	require.True(t, response.Success)
	require.NotEmpty(t, response.DownloadID)
	return response.DownloadID
}

// WaitForDownload waits until the download reaches a terminal phase
func (h *TestHelper) WaitForDownload(t *testing.T, id string, timeout time.Duration) types.DownloadRecord {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var response struct {
			Success bool                 `json:"success"`
			Status  types.DownloadRecord `json:"status"`
		}
		h.GetJSON(t, "/api/status/"+id, &response)
		if response.Success && response.Status.Status.Terminal() {
			return response.Status
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("download %s did not finish within %v", id, timeout)
	return types.DownloadRecord{}
}

// ConnectWebSocket dials a websocket endpoint of the test server
func (h *TestHelper) ConnectWebSocket(t *testing.T, path string) *gorillaws.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ReadUntil reads progress messages until one has the wanted type
func ReadUntil(t *testing.T, conn *gorillaws.Conn, msgType string, timeout time.Duration) []types.ProgressMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))

	var messages []types.ProgressMessage
	for {
		var msg types.ProgressMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q message", msgType)
		messages = append(messages, msg)
		if msg.Type == msgType {
			return messages
		}
	}
}
