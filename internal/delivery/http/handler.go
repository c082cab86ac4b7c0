package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pakbuy/backend/internal/domain"
)

// Comparer is the pipeline entry point the handler depends on
type Comparer interface {
	Compare(ctx context.Context, query *domain.SearchQuery) (*domain.ComparisonResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service      Comparer
	sources      []string
	assistantURL string
}

// NewHandler creates a new HTTP handler
func NewHandler(service Comparer, sources []string, assistantURL string) *Handler {
	return &Handler{
		service:      service,
		sources:      sources,
		assistantURL: assistantURL,
	}
}

// Compare handles price comparison requests
func (h *Handler) Compare(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "comparison service not configured"})
		return
	}

	var query domain.SearchQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title text required"})
		return
	}

	result, err := h.service.Compare(c.Request.Context(), &query)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuery):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAllSourcesFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "pakbuy-backend",
		"sources":   h.sources,
		"assistant": h.assistantURL,
		"features": gin.H{
			"retry_logic":         true,
			"similarity_matching": true,
			"parallel_fetch":      true,
		},
	})
}

// Index returns the welcome page
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "pakbuy-backend",
		"version": "1.0.0",
		"endpoints": gin.H{
			"/health":         "Health check",
			"/api/v1/compare": "Compare prices (POST)",
		},
	})
}
