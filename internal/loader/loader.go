// Package loader converts raw scanned-result documents into normalized
// records. Loaders perform structural validation only; business rules live
// on models.ScannedResult.
package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/markr-hq/markr-api/internal/models"
)

// ErrUnsupportedContentType signals that no loader is registered for the
// declared content type.
var ErrUnsupportedContentType = errors.New("unsupported content type")

// MalformedError marks a structural parse failure, distinct from a
// business-rule failure. Retrying a malformed document cannot succeed.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return e.Reason
}

func malformedf(format string, args ...interface{}) *MalformedError {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is a structural document error.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// Loader parses one document format.
type Loader interface {
	// ContentType returns the content type tag this loader accepts.
	ContentType() string
	// Validate is the cheap syntax-only pass run before a document is
	// queued. It never builds the record set.
	Validate(content []byte) error
	// Parse is the full pass run by the import worker, extracting records
	// and optional metadata (display names, scan timestamps).
	Parse(content []byte) ([]models.ScannedResult, error)
}

// Registry maps content types to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry builds a registry holding the given loaders.
func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{loaders: make(map[string]Loader, len(loaders))}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds or replaces the loader for its content type.
func (r *Registry) Register(l Loader) {
	r.loaders[l.ContentType()] = l
}

// Get resolves the loader for a declared content type. Parameters after a
// semicolon (charset and friends) are ignored.
func (r *Registry) Get(contentType string) (Loader, error) {
	normalized := contentType
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = normalized[:idx]
	}
	normalized = strings.ToLower(strings.TrimSpace(normalized))

	l, ok := r.loaders[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	return l, nil
}

// Default returns a registry with the XML and CSV loaders installed.
func Default() *Registry {
	return NewRegistry(NewXMLLoader(), NewCSVLoader())
}
