package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldservice-backend/internal/auth"
	"fieldservice-backend/internal/gateway"
	"fieldservice-backend/internal/lifecycle"
	"fieldservice-backend/internal/model"
)

type startRequest struct {
	RecallReason string `json:"recallReason"`
	MeterReading *int64 `json:"meterReading"`
	OnSite       bool   `json:"onSite"`
}

type completeRequest struct {
	SolutionCategory string `json:"solutionCategory"`
	SolutionText     string `json:"solutionText"`
	MeterReading     *int64 `json:"meterReading"`
}

type recallRequest struct {
	Reason string `json:"reason"`
	OnSite bool   `json:"onSite"`
}

// StartJob handles POST /api/jobs/:kind/:id/start.
func (h *Handler) StartJob(c *gin.Context) {
	key, ok := h.jobKey(c)
	if !ok {
		return
	}
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := lifecycle.StartFields{
		RecallReason: req.RecallReason,
		MeterReading: meterOrSentinel(req.MeterReading),
		OnSite:       req.OnSite,
	}
	if err := h.gateway.SubmitStart(c.Request.Context(), key, fields); err != nil {
		h.writeGatewayError(c, err)
		return
	}

	job, _ := h.store.Get(key)
	c.JSON(http.StatusOK, job)
}

// CompleteJob handles POST /api/jobs/:kind/:id/complete.
func (h *Handler) CompleteJob(c *gin.Context) {
	key, ok := h.jobKey(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := lifecycle.CompleteFields{
		SolutionCategory: req.SolutionCategory,
		SolutionText:     req.SolutionText,
		MeterReading:     meterOrSentinel(req.MeterReading),
	}
	if err := h.gateway.SubmitComplete(c.Request.Context(), key, fields); err != nil {
		h.writeGatewayError(c, err)
		return
	}

	job, _ := h.store.Get(key)
	c.JSON(http.StatusOK, job)
}

// RecallJob handles POST /api/jobs/:kind/:id/recall.
func (h *Handler) RecallJob(c *gin.Context) {
	key, ok := h.jobKey(c)
	if !ok {
		return
	}
	var req recallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gateway.SubmitRecall(c.Request.Context(), key, req.Reason, req.OnSite); err != nil {
		h.writeGatewayError(c, err)
		return
	}

	job, _ := h.store.Get(key)
	c.JSON(http.StatusOK, job)
}

// writeGatewayError maps gateway failures onto the API contract: guard
// failures become user-facing validation messages, authorization failures
// the single session-expired response, everything else an upstream error.
func (h *Handler) writeGatewayError(c *gin.Context, err error) {
	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": verr.Error(),
			"code":  verr.Code,
			"field": verr.Field,
		})
		return
	}
	var terr *lifecycle.TransitionError
	if errors.As(err, &terr) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": terr.Error()})
		return
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired, please sign in again"})
		return
	}
	if errors.Is(err, gateway.ErrUnknownJob) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func meterOrSentinel(v *int64) int64 {
	if v == nil {
		return model.MeterReadingUnknown
	}
	return *v
}
