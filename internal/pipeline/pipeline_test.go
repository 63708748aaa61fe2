package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"sceneflow-go/internal/enrich"
	"sceneflow-go/internal/exporter"
	"sceneflow-go/internal/fetcher"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/textextract"
	"sceneflow-go/internal/types"
)

const script = "ИНТ. ОФИС - ДЕНЬ\nГерой входит.\n\nНАТ. УЛИЦА - НОЧЬ\nОн уходит."

type fakeFetcher struct {
	data []byte
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, url, correlationID string) ([]byte, error) {
	return f.data, f.err
}

type fakeEnricher struct {
	enrich     func(text string) (enrich.Enrichment, error)
	production func(summary string) (types.ProductionData, error)
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
}

func (f *fakeEnricher) EnrichScene(ctx context.Context, text string) (enrich.Enrichment, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	return f.enrich(text)
}

func (f *fakeEnricher) ProductionDetails(ctx context.Context, summary, text string) (types.ProductionData, error) {
	return f.production(summary)
}

func (f *fakeEnricher) ProductionEnabled() bool { return f.production != nil }

func okEnrich(text string) (enrich.Enrichment, error) {
	md := types.DefaultEnrichment()
	md.Setting = strings.SplitN(text, "\n", 2)[0]
	md.KeyEventsSummary = "summary of " + md.Setting
	return enrich.Enrichment{Metadata: md, Raw: map[string]any{"setting": md.Setting}}, nil
}

type fakeExporter struct {
	mu   sync.Mutex
	docs []exporter.Document
	err  error
}

func (f *fakeExporter) Export(ctx context.Context, doc exporter.Document) (exporter.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return exporter.Result{}, f.err
	}
	f.docs = append(f.docs, doc)
	return exporter.Result{Artifacts: []exporter.Uploaded{{Format: "json", Key: "k.json", URL: "mem://k.json"}}}, nil
}

type fakePublisher struct {
	events []types.CompletionEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev types.CompletionEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	fetch    fakeFetcher
	enricher *fakeEnricher
	exporter *fakeExporter
	pub      *fakePublisher
}

func newHarness() *harness {
	return &harness{
		fetch:    fakeFetcher{data: []byte(script)},
		enricher: &fakeEnricher{enrich: okEnrich},
		exporter: &fakeExporter{},
		pub:      &fakePublisher{},
	}
}

func (h *harness) run(job types.IncomingJob, concurrency int) types.Outcome {
	p := New(Deps{
		Fetcher:   h.fetch,
		Extractor: textextract.NewRegistry(),
		Enricher:  h.enricher,
		Exporter:  h.exporter,
		Publisher: h.pub,
	}, Options{Concurrency: concurrency}, logger.Discard())
	return p.Process(context.Background(), job)
}

var job = types.IncomingJob{FileName: "script.txt", StorageURL: "http://files/script.txt", CorrelationID: "corr-9"}

func TestProcessSuccess(t *testing.T) {
	h := newHarness()
	out := h.run(job, 2)

	s, ok := out.(types.Success)
	if !ok {
		t.Fatalf("outcome = %v", out)
	}
	if s.ArtifactURL != "mem://k.json" || s.SceneCount != 2 {
		t.Fatalf("success = %+v", s)
	}
	doc := h.exporter.docs[0]
	if doc.Scenes[0].ID != "Scene_001" || doc.Scenes[0].Metadata.Setting != "ИНТ. ОФИС - ДЕНЬ" {
		t.Fatalf("first scene = %+v", doc.Scenes[0])
	}
	if doc.Scenes[1].Metadata.Setting != "НАТ. УЛИЦА - НОЧЬ" || doc.Summary.EnrichedCount != 2 {
		t.Fatalf("second scene = %+v summary = %+v", doc.Scenes[1], doc.Summary)
	}
	if len(h.pub.events) != 1 || h.pub.events[0].CorrelationID != "corr-9" || h.pub.events[0].SceneCount != 2 {
		t.Fatalf("events = %+v", h.pub.events)
	}
}

func TestProcessMalformedSceneStillSucceeds(t *testing.T) {
	h := newHarness()
	h.enricher.enrich = func(text string) (enrich.Enrichment, error) {
		if strings.HasPrefix(text, "НАТ.") {
			return enrich.Enrichment{}, &enrich.MalformedOutputError{Raw: "oops", Err: errors.New("no JSON object in output")}
		}
		return okEnrich(text)
	}
	out := h.run(job, 1)
	if _, ok := out.(types.Success); !ok {
		t.Fatalf("outcome = %v", out)
	}
	bad := h.exporter.docs[0].Scenes[1]
	if bad.Error == nil || bad.Error.Kind != types.SceneErrMalformedOutput || bad.Error.Raw != "oops" {
		t.Fatalf("scene marker = %+v", bad.Error)
	}
	if bad.Metadata == nil || bad.Metadata.Setting != types.NotAvailable {
		t.Fatalf("failed scene metadata = %+v", bad.Metadata)
	}
	if h.exporter.docs[0].Summary.FailedCount != 1 {
		t.Fatalf("summary = %+v", h.exporter.docs[0].Summary)
	}
}

func TestProcessProductionDetails(t *testing.T) {
	h := newHarness()
	h.enricher.production = func(summary string) (types.ProductionData, error) {
		if strings.Contains(summary, "НАТ.") {
			return types.ProductionData{}, &enrich.MalformedOutputError{Raw: "?", Err: errors.New("bad")}
		}
		p := types.ProductionData{Props: []string{"стол"}}
		p.ApplyDefaults()
		return p, nil
	}
	if out := h.run(job, 2); out.String() == "" {
		t.Fatal("empty outcome")
	}
	scenes := h.exporter.docs[0].Scenes
	if scenes[0].Production == nil || scenes[0].Production.Props[0] != "стол" || scenes[0].Error != nil {
		t.Fatalf("first scene = %+v", scenes[0])
	}
	if scenes[1].Production != nil || scenes[1].Error == nil || scenes[1].Error.Kind != types.SceneErrProductionUnavailable {
		t.Fatalf("second scene = %+v", scenes[1])
	}
	if scenes[1].Metadata.Setting != "НАТ. УЛИЦА - НОЧЬ" {
		t.Fatal("metadata should survive a production failure")
	}
}

func TestProcessServiceUnavailableIsTransient(t *testing.T) {
	h := newHarness()
	h.enricher.enrich = func(text string) (enrich.Enrichment, error) {
		return enrich.Enrichment{}, &enrich.ServiceUnavailableError{Err: errors.New("connection refused"), Retryable: true}
	}
	out := h.run(job, 2)
	tr, ok := out.(types.Transient)
	if !ok {
		t.Fatalf("outcome = %v", out)
	}
	var su *enrich.ServiceUnavailableError
	if !errors.As(tr.Reason, &su) {
		t.Fatalf("reason = %v", tr.Reason)
	}
	if len(h.exporter.docs) != 0 || len(h.pub.events) != 0 {
		t.Fatal("nothing may be exported after a service outage")
	}
}

func TestProcessOutcomes(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *harness, j *types.IncomingJob)
		want  string
	}{
		{"fetch timeout", func(h *harness, j *types.IncomingJob) {
			h.fetch.err = &fetcher.Error{Kind: fetcher.KindTimeout, URL: j.StorageURL, Err: context.DeadlineExceeded}
		}, "transient"},
		{"fetch 503", func(h *harness, j *types.IncomingJob) {
			h.fetch.err = &fetcher.Error{Kind: fetcher.KindStatus, StatusCode: 503}
		}, "transient"},
		{"invalid url", func(h *harness, j *types.IncomingJob) {
			h.fetch.err = &fetcher.Error{Kind: fetcher.KindInvalidURL, Err: errors.New("bad")}
		}, "poison"},
		{"unsupported format", func(h *harness, j *types.IncomingJob) {
			j.FileName = "script.odt"
		}, "poison"},
		{"explicit type wins", func(h *harness, j *types.IncomingJob) {
			j.FileName = "script.bin"
			j.FileType = "TXT"
		}, "success"},
		{"corrupt document", func(h *harness, j *types.IncomingJob) {
			j.FileName = "script.docx"
		}, "poison"},
		{"empty text", func(h *harness, j *types.IncomingJob) {
			h.fetch.data = []byte(" \n\t ")
		}, "poison"},
		{"export failure", func(h *harness, j *types.IncomingJob) {
			h.exporter.err = errors.New("s3 down")
		}, "transient"},
		{"publish failure", func(h *harness, j *types.IncomingJob) {
			h.pub.err = errors.New("channel closed")
		}, "transient"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			j := job
			tc.setup(h, &j)
			out := h.run(j, 2)
			var got string
			switch out.(type) {
			case types.Success:
				got = "success"
			case types.Poison:
				got = "poison"
			case types.Transient:
				got = "transient"
			}
			if got != tc.want {
				t.Fatalf("outcome = %v, want %s", out, tc.want)
			}
		})
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("ИНТ. КОМНАТА - ДЕНЬ\nТекст.\n\n")
	}
	h := newHarness()
	h.fetch.data = []byte(sb.String())
	out := h.run(job, 3)
	if s, ok := out.(types.Success); !ok || s.SceneCount != 12 {
		t.Fatalf("outcome = %v", out)
	}
	if h.enricher.maxSeen.Load() > 3 {
		t.Fatalf("saw %d concurrent enrichment calls", h.enricher.maxSeen.Load())
	}
	for i, sc := range h.exporter.docs[0].Scenes {
		if sc.Metadata == nil {
			t.Fatalf("scene %d not enriched", i)
		}
	}
}
