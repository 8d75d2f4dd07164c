package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"scdl/services"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// FileHandler serves downloaded result files
type FileHandler struct {
	fileService services.FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(fs services.FileService) *FileHandler {
	return &FileHandler{
		fileService: fs,
	}
}

// ServeFile sends a result file as an attachment, with range support
func (h *FileHandler) ServeFile(c *gin.Context) {
	requestedPath := strings.TrimPrefix(c.Param("filepath"), "/")

	if err := h.fileService.ValidateFilePath(requestedPath); err != nil {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "Access denied",
		})
		return
	}

	file, err := h.fileService.Open(c.Request.Context(), requestedPath)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrExtensionNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "File type not allowed",
			})
		case errors.Is(err, services.ErrFileNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "File not found",
			})
		default:
			log.Printf("Error opening file %s: %v", requestedPath, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Failed to open file",
			})
		}
		return
	}
	defer file.Close()

	fileSize := file.Size()

	c.Header("Content-Type", h.fileService.GetContentType(requestedPath))
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(requestedPath)}))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "private, max-age=3600")

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		h.handleRangeRequest(c, file, fileSize, rangeHeader)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(fileSize, 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		log.Printf("Error sending file %s: %v", requestedPath, err)
	}
}

// handleRangeRequest serves a single "bytes=start-end" range
func (h *FileHandler) handleRangeRequest(c *gin.Context, file io.ReadSeeker, fileSize int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to seek file",
		})
		return
	}

	contentLength := end - start + 1
	c.Header("Content-Length", strconv.FormatInt(contentLength, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	c.Status(http.StatusPartialContent)

	if _, err := io.CopyN(c.Writer, file, contentLength); err != nil {
		log.Printf("Error sending range %d-%d: %v", start, end, err)
	}
}

// parseRange parses a single byte range, clamping the end to the file size.
// A suffix range ("bytes=-N") selects the last N bytes.
func parseRange(header string, fileSize int64) (start, end int64, ok bool) {
	rangeSpec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(rangeSpec, ",") {
		return 0, 0, false
	}

	first, last, found := strings.Cut(rangeSpec, "-")
	if !found {
		return 0, 0, false
	}

	var err error
	switch {
	case first == "" && last == "":
		return 0, 0, false

	case first == "":
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		start = max(fileSize-n, 0)
		end = fileSize - 1

	default:
		start, err = strconv.ParseInt(first, 10, 64)
		if err != nil || start < 0 {
			return 0, 0, false
		}
		end = fileSize - 1
		if last != "" {
			end, err = strconv.ParseInt(last, 10, 64)
			if err != nil || end < start {
				return 0, 0, false
			}
		}
	}

	if start >= fileSize {
		return 0, 0, false
	}
	return start, min(end, fileSize-1), true
}
