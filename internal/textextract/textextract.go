// Package textextract turns raw document bytes into plain text, one Extractor per format.
package textextract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Extractor converts one document format to plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(data []byte) (string, error)

func (f ExtractorFunc) Extract(data []byte) (string, error) { return f(data) }

var ErrUnsupportedFormat = errors.New("unsupported document format")

// FormatError reports a document that cannot be read as its declared format.
// Retrying it never helps.
type FormatError struct {
	Format string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Registry maps a lower-case format name (file extension without the dot) to
// its extractor.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with docx, pdf and txt support.
func NewRegistry() *Registry {
	return &Registry{extractors: map[string]Extractor{
		"docx": ExtractorFunc(extractDOCX),
		"pdf":  ExtractorFunc(extractPDF),
		"txt":  ExtractorFunc(extractTXT),
	}}
}

// Register adds or replaces the extractor for format.
func (r *Registry) Register(format string, e Extractor) {
	r.extractors[strings.ToLower(format)] = e
}

func (r *Registry) Supports(format string) bool {
	_, ok := r.extractors[strings.ToLower(format)]
	return ok
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.extractors))
	for f := range r.extractors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Extract runs the extractor for format and normalizes its output.
// Every failure is a *FormatError.
func (r *Registry) Extract(format string, data []byte) (string, error) {
	format = strings.ToLower(format)
	e, ok := r.extractors[format]
	if !ok {
		return "", &FormatError{Format: format, Err: ErrUnsupportedFormat}
	}
	text, err := e.Extract(data)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return "", err
		}
		return "", &FormatError{Format: format, Err: err}
	}
	return Normalize(text), nil
}

// FormatFromName infers the format from a file name's extension.
func FormatFromName(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Normalize unifies line endings, collapses runs of horizontal whitespace and
// squeezes three or more consecutive newlines down to one blank line.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankRuns.ReplaceAllString(text, "\n\n"))
}
