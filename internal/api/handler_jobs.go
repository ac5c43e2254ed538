package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldservice-backend/internal/model"
)

// parseKind maps the URL kind segment onto a JobKind.
func parseKind(raw string) (model.JobKind, bool) {
	switch raw {
	case string(model.KindServiceVisit):
		return model.KindServiceVisit, true
	case string(model.KindBreakdown):
		return model.KindBreakdown, true
	}
	return "", false
}

// GetJobs handles GET /api/jobs. An optional ?kind= filters by job kind.
// The response is a detached snapshot of the store.
func (h *Handler) GetJobs(c *gin.Context) {
	kindParam := c.Query("kind")
	if kindParam == "" {
		c.JSON(http.StatusOK, h.store.All())
		return
	}
	kind, ok := parseKind(kindParam)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid job kind"})
		return
	}
	c.JSON(http.StatusOK, h.store.All(kind))
}

// GetJob handles GET /api/jobs/:kind/:id.
func (h *Handler) GetJob(c *gin.Context) {
	key, ok := h.jobKey(c)
	if !ok {
		return
	}
	job, found := h.store.Get(key)
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetJobHistory handles GET /api/jobs/:kind/:id/history, serving the
// journaled transitions for one job.
func (h *Handler) GetJobHistory(c *gin.Context) {
	key, ok := h.jobKey(c)
	if !ok {
		return
	}
	rows, err := h.journal.History(c.Request.Context(), key)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Refresh handles POST /api/refresh: a full working-set fetch replacing
// the store contents, last-write-wins.
func (h *Handler) Refresh(c *gin.Context) {
	count, err := h.gateway.FetchWorkingSet(c.Request.Context())
	if err != nil {
		h.writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetched": count})
}

func (h *Handler) jobKey(c *gin.Context) (model.JobKey, bool) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid job kind"})
		return model.JobKey{}, false
	}
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing job ID"})
		return model.JobKey{}, false
	}
	return model.JobKey{Kind: kind, ID: id}, true
}
