// Package handler exposes the health and admin-dashboard HTTP surface:
// a health check, JWT-gated stats and broadcast endpoints, and a websocket
// feed of operational events.
package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seowithroki-star/file-store-bot/internal/broadcast"
	"github.com/seowithroki-star/file-store-bot/internal/config"
	"github.com/seowithroki-star/file-store-bot/internal/storage"
)

// Handler carries the collaborators of the HTTP endpoints.
type Handler struct {
	Storage    *storage.Service
	Dispatcher *broadcast.Dispatcher
	Cfg        *config.Config

	// baseCtx bounds broadcasts started over HTTP; they outlive the request
	// but not the process.
	baseCtx context.Context
}

func NewHandler(ctx context.Context, s *storage.Service, d *broadcast.Dispatcher, cfg *config.Config) *Handler {
	return &Handler{Storage: s, Dispatcher: d, Cfg: cfg, baseCtx: ctx}
}

// Healthz reports whether both backing stores are reachable.
func (h *Handler) Healthz(c *gin.Context) {
	if err := h.Storage.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns store counts and the most recent broadcast runs.
func (h *Handler) Stats(c *gin.Context) {
	files, err := h.Storage.CountFiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count files"})
		return
	}
	subs, err := h.Storage.CountSubscribers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count subscribers"})
		return
	}
	runs, err := h.Storage.GetRecentBroadcastRuns(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load broadcast runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":          files,
		"subscribers":    subs,
		"broadcast_runs": runs,
	})
}

type broadcastRequest struct {
	Text string `json:"text" binding:"required"`
}

// Broadcast starts a fan-out run from the dashboard. The run continues in
// the background; the endpoint only confirms it started.
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	go func() {
		report, err := h.Dispatcher.Run(h.baseCtx, req.Text, 0)
		if err != nil {
			log.Printf("ERROR: Dashboard broadcast failed: %v", err)
			return
		}
		log.Printf("INFO: Dashboard broadcast finished: %d delivered, %d failed, %d total.",
			report.Delivered, report.Failed, report.Total)
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
