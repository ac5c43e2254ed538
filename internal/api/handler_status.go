package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConnection handles GET /api/connection, serving the push stream state
// for the UI's passive reconnecting indicator.
func (h *Handler) GetConnection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.session.State()})
}

// GetCategories handles GET /api/categories, serving the cached
// solution-category list.
func (h *Handler) GetCategories(c *gin.Context) {
	names, err := h.gateway.CategoryNames(c.Request.Context())
	if err != nil {
		h.writeGatewayError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}
