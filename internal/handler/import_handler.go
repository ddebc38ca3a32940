package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markr-hq/markr-api/internal/models"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
	"github.com/markr-hq/markr-api/pkg/response"
)

type importService interface {
	Submit(ctx context.Context, content []byte, contentType string) (*models.ImportJob, error)
	JobStatus(ctx context.Context, jobID string) (*models.ImportJob, error)
}

// ImportHandler exposes document submission and job status endpoints.
type ImportHandler struct {
	imports importService
}

// NewImportHandler constructs handler.
func NewImportHandler(imports importService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Submit accepts a raw document for asynchronous processing. The declared
// Content-Type selects the parser; unsupported tags and structurally broken
// documents are rejected here without creating a job.
func (h *ImportHandler) Submit(c *gin.Context) {
	content, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "failed to read request body"))
		return
	}
	if len(content) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrMalformedDocument, "empty document"))
		return
	}

	job, err := h.imports.Submit(c.Request.Context(), content, c.GetHeader("Content-Type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus reports the lifecycle state of an import job.
func (h *ImportHandler) JobStatus(c *gin.Context) {
	job, err := h.imports.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}
