package loader

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/markr-hq/markr-api/internal/models"
)

// CSVContentType is the flat tabular format.
const CSVContentType = "text/csv+markr"

var csvRequiredHeaders = []string{"student_number", "test_id", "marks_available", "marks_obtained"}

// CSVLoader parses the flat tabular format. The header row must carry
// student_number, test_id, marks_available and marks_obtained; student_name
// and scanned_on are optional columns.
type CSVLoader struct{}

// NewCSVLoader constructs a CSVLoader.
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// ContentType implements Loader.
func (l *CSVLoader) ContentType() string {
	return CSVContentType
}

// Validate checks CSV syntax and the required header set without building
// records.
func (l *CSVLoader) Validate(content []byte) error {
	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err == io.EOF {
		return malformedf("missing required headers: %s", strings.Join(csvRequiredHeaders, ", "))
	}
	if err != nil {
		return malformedf("invalid CSV: %v", err)
	}
	if _, err := headerIndex(header); err != nil {
		return err
	}
	for {
		if _, err := reader.Read(); err == io.EOF {
			return nil
		} else if err != nil {
			return malformedf("invalid CSV: %v", err)
		}
	}
}

// Parse implements Loader. An empty required cell or a non-numeric mark on
// any row is malformed, identifying the field.
func (l *CSVLoader) Parse(content []byte) ([]models.ScannedResult, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err == io.EOF {
		return nil, malformedf("missing required headers: %s", strings.Join(csvRequiredHeaders, ", "))
	}
	if err != nil {
		return nil, malformedf("invalid CSV: %v", err)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var results []models.ScannedResult
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformedf("invalid CSV: %v", err)
		}

		for _, name := range csvRequiredHeaders {
			if strings.TrimSpace(record[cols[name]]) == "" {
				return nil, malformedf("missing %s in row %d", name, row)
			}
		}

		available, err := strconv.Atoi(strings.TrimSpace(record[cols["marks_available"]]))
		if err != nil {
			return nil, malformedf("non-numeric marks_available in row %d", row)
		}
		obtained, err := strconv.Atoi(strings.TrimSpace(record[cols["marks_obtained"]]))
		if err != nil {
			return nil, malformedf("non-numeric marks_obtained in row %d", row)
		}

		result := models.ScannedResult{
			StudentNumber:  strings.TrimSpace(record[cols["student_number"]]),
			TestID:         strings.TrimSpace(record[cols["test_id"]]),
			MarksAvailable: &available,
			MarksObtained:  &obtained,
		}
		if idx, ok := cols["student_name"]; ok {
			result.StudentName = strings.TrimSpace(record[idx])
		}
		if idx, ok := cols["scanned_on"]; ok {
			result.ScannedOn = strings.TrimSpace(record[idx])
		}
		results = append(results, result)
	}
	return results, nil
}

// headerIndex maps column names to positions and rejects a header row missing
// any required column.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	var missing []string
	for _, name := range csvRequiredHeaders {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, malformedf("missing required headers: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}
