package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markr-hq/markr-api/internal/models"
	"github.com/markr-hq/markr-api/internal/service"
	"github.com/markr-hq/markr-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context) ([]models.Student, error)
	Results(ctx context.Context, number string) (*models.Student, []models.TestResult, error)
	TestResult(ctx context.Context, number, testID string) (*models.TestResult, error)
	Leaderboard(ctx context.Context, testID string) ([]models.TestRanking, error)
}

type exportService interface {
	Leaderboard(ctx context.Context, testID string, format service.ExportFormat) (*service.ExportResult, error)
}

// StudentHandler serves identity and per-test read paths.
type StudentHandler struct {
	students studentService
	exports  exportService
}

// NewStudentHandler constructs handler.
func NewStudentHandler(students studentService, exports exportService) *StudentHandler {
	return &StudentHandler{students: students, exports: exports}
}

// List returns all known students.
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, map[string]interface{}{"count": len(students)})
}

// Results returns a student with every stored result.
func (h *StudentHandler) Results(c *gin.Context) {
	student, results, err := h.students.Results(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"student": student, "results": results}
	response.JSON(c, http.StatusOK, payload, map[string]interface{}{"count": len(results)})
}

// TestResult returns one (student, test) record.
func (h *StudentHandler) TestResult(c *gin.Context) {
	result, err := h.students.TestResult(c.Request.Context(), c.Param("number"), c.Param("testId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Leaderboard returns the rank-ordered results for one test.
func (h *StudentHandler) Leaderboard(c *gin.Context) {
	rankings, err := h.students.Leaderboard(c.Request.Context(), c.Param("testId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, map[string]interface{}{"count": len(rankings)})
}

// Export streams the leaderboard as a CSV or PDF download.
func (h *StudentHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	result, err := h.exports.Leaderboard(c.Request.Context(), c.Param("testId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
