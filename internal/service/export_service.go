package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/markr-hq/markr-api/internal/models"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
	"github.com/markr-hq/markr-api/pkg/export"
)

// ExportFormat enumerates supported leaderboard export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type leaderboardLoader interface {
	Leaderboard(ctx context.Context, testID string) ([]models.TestRanking, error)
}

// ExportService renders a test leaderboard as a downloadable document.
type ExportService struct {
	students leaderboardLoader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// ExportResult is a rendered download.
type ExportResult struct {
	Content     []byte
	Filename    string
	ContentType string
}

// NewExportService constructs an export service.
func NewExportService(students leaderboardLoader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Leaderboard renders the rank-ordered results for one test.
func (s *ExportService) Leaderboard(ctx context.Context, testID string, format ExportFormat) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	rankings, err := s.students.Leaderboard(ctx, testID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"rank", "student_number", "student_name", "marks_obtained", "marks_available", "percentage"},
	}
	for i, ranking := range rankings {
		name := ""
		if ranking.StudentName != nil {
			name = *ranking.StudentName
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"rank":            strconv.Itoa(i + 1),
			"student_number":  ranking.StudentNumber,
			"student_name":    name,
			"marks_obtained":  strconv.Itoa(ranking.MarksObtained),
			"marks_available": strconv.Itoa(ranking.MarksAvailable),
			"percentage":      strconv.FormatFloat(ranking.Percentage(), 'f', 2, 64),
		})
	}

	switch format {
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Test %s results", testID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("test-%s-results.pdf", testID),
			ContentType: "application/pdf",
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("test-%s-results.csv", testID),
			ContentType: "text/csv",
		}, nil
	}
}
