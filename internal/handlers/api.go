package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"outreach-engine-go/internal/store"
)

// GetStatus returns the pipeline/warm-up status projection.
func (h *Handlers) GetStatus(c *gin.Context) {
	status, err := h.manager.Status()
	if err != nil {
		logrus.Errorf("Failed to build status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build status"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetQueue returns queued and approved batches, oldest first.
func (h *Handlers) GetQueue(c *gin.Context) {
	batches, err := h.store.PendingBatches()
	if err != nil {
		logrus.Errorf("Failed to load queue: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(batches), "batches": batches})
}

// GetBatches returns recent batches across all statuses.
func (h *Handlers) GetBatches(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	batches, err := h.store.AllBatches(limit)
	if err != nil {
		logrus.Errorf("Failed to load batches: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(batches), "batches": batches})
}

// GetBatch returns one batch with its decoded recipient and opportunity
// lists.
func (h *Handlers) GetBatch(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}
	b, err := h.store.Batch(uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		logrus.Errorf("Failed to load batch %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}
	recipients, _ := b.Recipients()
	opportunities, _ := b.Opportunities()
	c.JSON(http.StatusOK, gin.H{
		"batch":         b,
		"recipients":    recipients,
		"opportunities": opportunities,
	})
}

// GetBlocklist returns all blocklist entries.
func (h *Handlers) GetBlocklist(c *gin.Context) {
	entries, err := h.store.Blocklist()
	if err != nil {
		logrus.Errorf("Failed to load blocklist: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load blocklist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// GetStats returns pipeline statistics.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.store.PipelineStats(time.Now())
	if err != nil {
		logrus.Errorf("Failed to load stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerRun starts a pipeline run over the staged intake files.
func (h *Handlers) TriggerRun(c *gin.Context) {
	result, err := h.runner.TriggerRun(c.Request.Context())
	if err != nil {
		logrus.Errorf("Triggered run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
