package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/pkg/response"
)

type aggregateService interface {
	Get(ctx context.Context, testID string) (*models.AggregateSnapshot, error)
	ListAll(ctx context.Context) ([]models.AggregateSnapshot, error)
}

// AggregateHandler serves the precomputed statistics snapshots.
type AggregateHandler struct {
	aggregates aggregateService
}

// NewAggregateHandler constructs handler.
func NewAggregateHandler(aggregates aggregateService) *AggregateHandler {
	return &AggregateHandler{aggregates: aggregates}
}

// Get returns the snapshot for one test.
func (h *AggregateHandler) Get(c *gin.Context) {
	snapshot, err := h.aggregates.Get(c.Request.Context(), c.Param("testId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot)
}

// List returns all snapshots, most recently updated first.
func (h *AggregateHandler) List(c *gin.Context) {
	snapshots, err := h.aggregates.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, map[string]interface{}{"count": len(snapshots)})
}
