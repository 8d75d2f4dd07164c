package handlers

import (
	"errors"
	"log"
	"net/http"
	"scdl/services"
	"scdl/urlinfo"

	"github.com/gin-gonic/gin"
)

// InfoHandler resolves track and playlist metadata
type InfoHandler struct {
	manager services.DownloadManager
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(m services.DownloadManager) *InfoHandler {
	return &InfoHandler{manager: m}
}

// GetInfo returns title, artist and kind for the url query parameter
func (h *InfoHandler) GetInfo(c *gin.Context) {
	url := c.Query("url")

	info, err := h.manager.Info(c.Request.Context(), url)
	if err != nil {
		if errors.Is(err, urlinfo.ErrMissingURL) || errors.Is(err, urlinfo.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Please provide a valid SoundCloud URL",
			})
			return
		}

		log.Printf("Info lookup failed for %s: %v", url, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Could not get track information",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"info":    info,
	})
}
