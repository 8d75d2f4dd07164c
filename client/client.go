// Package client talks to the Download Service over its JSON endpoints and
// saves result files to a local directory.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scdl/types"
)

// Options configures the client
type Options struct {
	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// OutputDir is where retrieved files are written.
	// Default: current directory
	OutputDir string
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		OutputDir: ".",
	}
}

// Client is a Download Service client
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
}

// New creates a client for the service at baseURL
func New(baseURL string, opts Options) *Client {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		opts:    opts,
	}
}

// Start submits req and returns the download id issued by the service
func (c *Client) Start(ctx context.Context, req types.DownloadRequest) (string, error) {
	body := types.StartRequest{
		URL:     req.URL,
		Mode:    req.Mode,
		Format:  req.Format,
		Quality: req.Quality,
	}
	if req.Mode == types.ModePlaylist {
		body.CreateFolder = &req.CreateFolder
		body.NumberTracks = &req.NumberTracks
		body.LimitTracks = req.TrackLimit
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var resp struct {
		Success    bool   `json:"success"`
		DownloadID anyID  `json:"downloadId"`
		Error      string `json:"error"`
	}
	status, err := c.doJSON(ctx, http.MethodPost, "/api/download", bytes.NewReader(payload), &resp)
	if err != nil {
		return "", &TransportError{Op: "start", Err: err}
	}

	if !resp.Success {
		return "", &ServiceError{StatusCode: status, Message: fallback(resp.Error, "failed to start download")}
	}
	if resp.DownloadID == "" {
		return "", &ServiceError{StatusCode: status, Message: "service returned no download id"}
	}

	return string(resp.DownloadID), nil
}

// Status fetches the current status of download id
func (c *Client) Status(ctx context.Context, id string) (*types.DownloadStatus, error) {
	var resp types.StatusResponse
	status, err := c.doJSON(ctx, http.MethodGet, "/api/status/"+url.PathEscape(id), nil, &resp)
	if err != nil {
		return nil, &TransportError{Op: "status", Err: err}
	}

	if !resp.Success {
		return nil, &ServiceError{StatusCode: status, Message: fallback(resp.Error, "failed to check status")}
	}
	if resp.Status == nil {
		return nil, &ServiceError{StatusCode: status, Message: "service returned no status"}
	}

	return resp.Status, nil
}

// Info asks the service for authoritative metadata about a link
func (c *Client) Info(ctx context.Context, link string) (*types.MediaInfo, error) {
	var resp struct {
		Success bool             `json:"success"`
		Info    *types.MediaInfo `json:"info"`
		Error   string           `json:"error"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, "/api/info?url="+url.QueryEscape(link), nil, &resp)
	if err != nil {
		return nil, &TransportError{Op: "info", Err: err}
	}

	if !resp.Success || resp.Info == nil {
		return nil, &ServiceError{StatusCode: status, Message: fallback(resp.Error, "failed to get info")}
	}

	return resp.Info, nil
}

// FileURL returns the retrieval URL of a result file
func (c *Client) FileURL(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/download/" + strings.Join(segments, "/")
}

// Retrieve downloads one result file into the output directory
func (c *Client) Retrieve(ctx context.Context, file types.FileDescriptor) error {
	name, err := localName(file)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(file.Path), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "retrieve", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ServiceError{StatusCode: resp.StatusCode, Message: fallback(strings.TrimSpace(string(msg)), resp.Status)}
	}

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	dest := filepath.Join(c.opts.OutputDir, name)
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return &TransportError{Op: "retrieve", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}

// localName picks the file name to write under the output directory: the
// base of file.Name, or of file.Path when the name has no usable base.
func localName(file types.FileDescriptor) (string, error) {
	for _, candidate := range []string{file.Name, file.Path} {
		name := filepath.Base(filepath.FromSlash(candidate))
		switch name {
		case ".", "..", string(filepath.Separator):
			continue
		}
		return name, nil
	}
	return "", fmt.Errorf("no usable file name for %q", file.Path)
}

// doJSON performs a request and decodes the JSON body into target.
// Non-2xx responses are still decoded since the service reports errors
// in the body.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, target any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	return resp.StatusCode, nil
}

func fallback(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}

// anyID accepts a download id encoded as a JSON string or number
type anyID string

func (a *anyID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = anyID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("download id must be a string or a number")
	}
	*a = anyID(n.String())
	return nil
}
