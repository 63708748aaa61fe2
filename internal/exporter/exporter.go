// Package exporter serializes processed documents and uploads the artifacts.
package exporter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"sceneflow-go/internal/aggregator"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/storage"
	"sceneflow-go/internal/types"
)

// Artifact is the exported document. Scenes keep document order.
type Artifact struct {
	FileName      string             `json:"file_name" yaml:"file_name"`
	CorrelationID string             `json:"correlation_id" yaml:"correlation_id"`
	GeneratedAt   time.Time          `json:"generated_at" yaml:"generated_at"`
	SceneCount    int                `json:"scene_count" yaml:"scene_count"`
	Summary       aggregator.Summary `json:"summary" yaml:"summary"`
	Preamble      string             `json:"preamble,omitempty" yaml:"preamble,omitempty"`
	Scenes        []types.Scene      `json:"scenes" yaml:"scenes"`
}

// Document is what the pipeline hands over for export.
type Document struct {
	Job      types.IncomingJob
	Preamble string
	Scenes   []types.Scene
	Summary  aggregator.Summary
}

type Uploaded struct {
	Format string
	Key    string
	URL    string
}

// Result lists uploaded artifacts; the first one is the primary artifact.
type Result struct {
	Artifacts []Uploaded
}

func (r Result) PrimaryURL() string {
	if len(r.Artifacts) == 0 {
		return ""
	}
	return r.Artifacts[0].URL
}

func (r Result) URLs() map[string]string {
	out := make(map[string]string, len(r.Artifacts))
	for _, a := range r.Artifacts {
		out[a.Format] = a.URL
	}
	return out
}

type Exporter struct {
	uploader storage.Uploader
	formats  []string
	log      *logger.Logger
	now      func() time.Time
}

func New(uploader storage.Uploader, formats []string, log *logger.Logger) (*Exporter, error) {
	if len(formats) == 0 {
		formats = []string{"json"}
	}
	for _, f := range formats {
		if !Supported(f) {
			return nil, fmt.Errorf("unsupported export format %q", f)
		}
	}
	return &Exporter{uploader: uploader, formats: formats, log: log.With("component", "exporter"), now: time.Now}, nil
}

// Export renders doc in every configured format and uploads each artifact
// under a fresh key. Any upload error fails the whole export.
func (e *Exporter) Export(ctx context.Context, doc Document) (Result, error) {
	art := Artifact{
		FileName:      doc.Job.FileName,
		CorrelationID: doc.Job.CorrelationID,
		GeneratedAt:   e.now().UTC(),
		SceneCount:    len(doc.Scenes),
		Summary:       doc.Summary,
		Preamble:      doc.Preamble,
		Scenes:        doc.Scenes,
	}

	id := uuid.New()
	var res Result
	for _, format := range e.formats {
		enc := encoders[strings.ToLower(format)]
		data, err := enc.Encode(art)
		if err != nil {
			return Result{}, fmt.Errorf("encode %s: %w", format, err)
		}
		key := ObjectKey(id, doc.Job.FileName, enc.Ext)
		url, err := e.uploader.Upload(ctx, key, enc.ContentType, data)
		if err != nil {
			return Result{}, err
		}
		e.log.WithField("correlation_id", doc.Job.CorrelationID).
			WithField("key", key).
			WithField("bytes", len(data)).
			Info("artifact uploaded")
		res.Artifacts = append(res.Artifacts, Uploaded{Format: enc.Ext, Key: key, URL: url})
	}
	return res, nil
}

// CompletionEvent builds the outbound message for an exported document.
func CompletionEvent(job types.IncomingJob, res Result, sceneCount int) types.CompletionEvent {
	return types.CompletionEvent{
		FileName:      job.FileName,
		CorrelationID: job.CorrelationID,
		StorageURL:    res.PrimaryURL(),
		SceneCount:    sceneCount,
		ReportURLs:    res.URLs(),
	}
}

// ObjectKey is "<id>_<base name>.<ext>" with the base name reduced to
// letters, digits, dash, dot and underscore.
func ObjectKey(id uuid.UUID, fileName, ext string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, base)
	clean = strings.Trim(clean, "._")
	if clean == "" {
		clean = "document"
	}
	return id.String() + "_" + clean + "." + ext
}
