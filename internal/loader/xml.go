package loader

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/markr-hq/markr-api/internal/models"
)

// XMLContentType is the tagged hierarchical format produced by the scanning
// vendor.
const XMLContentType = "text/xml+markr"

const xmlRootElement = "mcq-test-results"

// XMLLoader parses mcq-test-results documents.
type XMLLoader struct{}

// NewXMLLoader constructs an XMLLoader.
func NewXMLLoader() *XMLLoader {
	return &XMLLoader{}
}

// ContentType implements Loader.
func (l *XMLLoader) ContentType() string {
	return XMLContentType
}

// Validate streams tokens through the decoder without building a document
// tree. Syntax errors and a wrong root element are malformed; nothing else is
// checked here.
func (l *XMLLoader) Validate(content []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return malformedf("invalid XML: %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok && !sawRoot {
			if start.Name.Local != xmlRootElement {
				return malformedf("invalid XML: unexpected root element <%s>", start.Name.Local)
			}
			sawRoot = true
		}
	}
	if !sawRoot {
		return malformedf("invalid XML: document is empty")
	}
	return nil
}

type xmlSummaryMarks struct {
	Available *int `xml:"available,attr"`
	Obtained  *int `xml:"obtained,attr"`
}

type xmlTestResult struct {
	ScannedOn     string           `xml:"scanned-on,attr"`
	StudentNumber *string          `xml:"student-number"`
	TestID        *string          `xml:"test-id"`
	StudentName   string           `xml:"student-name"`
	FirstName     string           `xml:"first-name"`
	LastName      string           `xml:"last-name"`
	Summary       *xmlSummaryMarks `xml:"summary-marks"`
}

type xmlDocument struct {
	XMLName xml.Name        `xml:"mcq-test-results"`
	Results []xmlTestResult `xml:"mcq-test-result"`
}

// Parse implements Loader. A record missing its student-number, test-id or
// summary-marks element is malformed; missing mark attributes are left absent
// for business validation to reject.
func (l *XMLLoader) Parse(content []byte) ([]models.ScannedResult, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, malformedf("invalid XML: %v", err)
	}

	results := make([]models.ScannedResult, 0, len(doc.Results))
	for _, node := range doc.Results {
		if node.StudentNumber == nil {
			return nil, malformedf("missing student-number")
		}
		if node.TestID == nil {
			return nil, malformedf("missing test-id")
		}
		if node.Summary == nil {
			return nil, malformedf("missing summary-marks")
		}
		results = append(results, models.ScannedResult{
			StudentNumber:  strings.TrimSpace(*node.StudentNumber),
			StudentName:    node.displayName(),
			TestID:         strings.TrimSpace(*node.TestID),
			MarksAvailable: node.Summary.Available,
			MarksObtained:  node.Summary.Obtained,
			ScannedOn:      node.ScannedOn,
		})
	}
	return results, nil
}

// displayName prefers an explicit student-name element and falls back to
// joining first-name and last-name. Absence of all yields an empty name.
func (n xmlTestResult) displayName() string {
	if name := strings.TrimSpace(n.StudentName); name != "" {
		return name
	}
	first := strings.TrimSpace(n.FirstName)
	last := strings.TrimSpace(n.LastName)
	return strings.TrimSpace(first + " " + last)
}
