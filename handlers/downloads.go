package handlers

import (
	"errors"
	"log"
	"net/http"
	"scdl/services"
	"scdl/types"
	"scdl/urlinfo"
	"scdl/websocket"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
)

// DownloadHandler handles download management endpoints
type DownloadHandler struct {
	manager  services.DownloadManager
	hub      websocket.Hub
	upgrader *gorillaws.Upgrader
}

// NewDownloadHandler creates a new download handler. Websocket handshakes
// are accepted from the same origins as the REST API.
func NewDownloadHandler(m services.DownloadManager, hub websocket.Hub, origins []string) *DownloadHandler {
	return &DownloadHandler{
		manager:  m,
		hub:      hub,
		upgrader: websocket.NewUpgrader(origins),
	}
}

// StartDownload validates the request and starts a background download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req types.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.StartResponse{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	record, err := h.manager.Start(req)
	if err != nil {
		c.JSON(startErrorStatus(err), types.StartResponse{
			Success: false,
			Error:   startErrorMessage(err),
		})
		return
	}

	c.JSON(http.StatusOK, types.StartResponse{
		Success:    true,
		DownloadID: record.ID,
		Message:    "Download started",
	})
}

func startErrorStatus(err error) int {
	if errors.Is(err, services.ErrTooManyDownloads) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadRequest
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, urlinfo.ErrMissingURL):
		return "URL is required"
	case errors.Is(err, urlinfo.ErrInvalidURL):
		return "Please provide a valid SoundCloud URL"
	}
	return err.Error()
}

// GetStatus returns the state of one download
func (h *DownloadHandler) GetStatus(c *gin.Context) {
	record, exists := h.manager.Get(c.Param("id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Download not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  record,
	})
}

// GetFiles returns the result files of a completed download
func (h *DownloadHandler) GetFiles(c *gin.Context) {
	files, err := h.manager.Files(c.Param("id"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrDownloadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

// ListDownloads returns every known download
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	downloads := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"downloads": downloads,
		"total":     len(downloads),
	})
}

// Cleanup removes finished downloads older than an hour
func (h *DownloadHandler) Cleanup(c *gin.Context) {
	removed, remaining := h.manager.Cleanup(c.Request.Context(), time.Hour)
	log.Printf("Cleanup removed %d download(s), %d remaining", removed, remaining)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"removed":   removed,
		"remaining": remaining,
	})
}

// HandleWebSocketConnection streams progress for one download
func (h *DownloadHandler) HandleWebSocketConnection(c *gin.Context) {
	downloadID := c.Param("id")
	if _, exists := h.manager.Get(downloadID); !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Download not found",
		})
		return
	}

	h.serveWebSocket(c, downloadID)
}

// HandleWebSocketAllConnection streams progress for every download
func (h *DownloadHandler) HandleWebSocketAllConnection(c *gin.Context) {
	h.serveWebSocket(c, websocket.AllDownloads)
}

func (h *DownloadHandler) serveWebSocket(c *gin.Context, key string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	websocket.NewClient(h.hub, conn, key).Serve()
}
