// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sceneflow-go/internal/aggregator"
	"sceneflow-go/internal/enrich"
	"sceneflow-go/internal/exporter"
	"sceneflow-go/internal/fetcher"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/segmenter"
	"sceneflow-go/internal/textextract"
	"sceneflow-go/internal/types"
)

type Fetcher interface {
	Fetch(ctx context.Context, url, correlationID string) ([]byte, error)
}

type Extractor interface {
	Supports(format string) bool
	Extract(format string, data []byte) (string, error)
}

type Enricher interface {
	EnrichScene(ctx context.Context, sceneText string) (enrich.Enrichment, error)
	ProductionDetails(ctx context.Context, summary, sceneText string) (types.ProductionData, error)
	ProductionEnabled() bool
}

type Exporter interface {
	Export(ctx context.Context, doc exporter.Document) (exporter.Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev types.CompletionEvent) error
}

type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Enricher  Enricher
	Exporter  Exporter
	Publisher Publisher
}

type Options struct {
	// Concurrency bounds in-flight enrichment calls per document.
	Concurrency int
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *logger.Logger
}

func New(deps Deps, opts Options, log *logger.Logger) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Pipeline{deps: deps, opts: opts, log: log.With("component", "pipeline")}
}

// Process runs one job end to end and reports exactly one outcome.
func (p *Pipeline) Process(ctx context.Context, job types.IncomingJob) types.Outcome {
	log := p.log.WithJob(job)
	start := time.Now()

	format := strings.ToLower(job.FileType)
	if format == "" {
		format = textextract.FormatFromName(job.FileName)
	}
	if !p.deps.Extractor.Supports(format) {
		return types.Poison{Reason: fmt.Errorf("unsupported file type %q", format)}
	}

	// fetch
	t := time.Now()
	data, err := p.deps.Fetcher.Fetch(ctx, job.StorageURL, job.CorrelationID)
	if err != nil {
		var fe *fetcher.Error
		if errors.As(err, &fe) && fe.Permanent() {
			return types.Poison{Reason: err}
		}
		return types.Transient{Reason: err}
	}
	log.WithField("duration_ms", time.Since(t).Milliseconds()).Debug("fetch done")

	// extract
	t = time.Now()
	text, err := p.deps.Extractor.Extract(format, data)
	if err != nil {
		var fe *textextract.FormatError
		if errors.As(err, &fe) {
			return types.Poison{Reason: err}
		}
		return types.Transient{Reason: err}
	}
	if strings.TrimSpace(text) == "" {
		return types.Poison{Reason: errors.New("document has no extractable text")}
	}
	log.WithField("chars", len(text)).WithField("duration_ms", time.Since(t).Milliseconds()).Debug("extract done")

	// segment
	doc := segmenter.Segment(text)
	if len(doc.Scenes) == 0 {
		return types.Poison{Reason: errors.New("document produced no scenes")}
	}
	log.WithField("scenes", len(doc.Scenes)).Info("document segmented")

	// enrich
	t = time.Now()
	if err := p.enrichAll(ctx, log, doc.Scenes); err != nil {
		return types.Transient{Reason: err}
	}
	log.WithField("duration_ms", time.Since(t).Milliseconds()).Info("enrichment done")

	// export
	summary := aggregator.Aggregate(doc.Scenes)
	res, err := p.deps.Exporter.Export(ctx, exporter.Document{
		Job:      job,
		Preamble: doc.Preamble,
		Scenes:   doc.Scenes,
		Summary:  summary,
	})
	if err != nil {
		return types.Transient{Reason: fmt.Errorf("export: %w", err)}
	}

	// publish
	ev := exporter.CompletionEvent(job, res, len(doc.Scenes))
	if err := p.deps.Publisher.Publish(ctx, ev); err != nil {
		return types.Transient{Reason: fmt.Errorf("publish: %w", err)}
	}

	log.WithField("artifact_url", ev.StorageURL).
		WithField("failed_scenes", summary.FailedCount).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("document processed")
	return types.Success{ArtifactURL: ev.StorageURL, SceneCount: len(doc.Scenes)}
}

// enrichAll fills every scene in place. A service outage aborts the whole
// document; malformed output only marks the affected scene.
func (p *Pipeline) enrichAll(ctx context.Context, log *logger.Logger, scenes []types.Scene) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range scenes {
		g.Go(func() error {
			return p.enrichScene(gctx, log, &scenes[i])
		})
	}
	return g.Wait()
}

func (p *Pipeline) enrichScene(ctx context.Context, log *logger.Logger, sc *types.Scene) error {
	input := sc.Text
	if sc.Header != types.NotAvailable {
		input = strings.TrimSpace(sc.Header + "\n" + sc.Text)
	}
	scLog := log.With("scene_id", sc.ID)

	res, err := p.deps.Enricher.EnrichScene(ctx, input)
	var malformed *enrich.MalformedOutputError
	switch {
	case errors.As(err, &malformed):
		md := types.DefaultEnrichment()
		sc.Metadata = &md
		sc.Error = &types.SceneError{Kind: types.SceneErrMalformedOutput, Message: malformed.Err.Error(), Raw: malformed.Raw}
		scLog.WithError(err).Warn("scene metadata unavailable")
		return nil
	case err != nil:
		return fmt.Errorf("enrich %s: %w", sc.ID, err)
	}
	sc.Metadata = &res.Metadata
	sc.RawResponse = res.Raw

	if !p.deps.Enricher.ProductionEnabled() {
		return nil
	}
	prod, err := p.deps.Enricher.ProductionDetails(ctx, res.Metadata.KeyEventsSummary, input)
	switch {
	case errors.As(err, &malformed):
		sc.Error = &types.SceneError{Kind: types.SceneErrProductionUnavailable, Message: malformed.Err.Error(), Raw: malformed.Raw}
		scLog.WithError(err).Warn("production details unavailable")
		return nil
	case err != nil:
		return fmt.Errorf("production details %s: %w", sc.ID, err)
	}
	sc.Production = &prod
	return nil
}
