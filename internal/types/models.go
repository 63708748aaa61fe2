package types

import "time"

// IncomingJob is one message from the input queue.
type IncomingJob struct {
	FileName      string    `json:"FileName"`
	StorageURL    string    `json:"StorageUrl"`
	FileType      string    `json:"FileType,omitempty"`
	CorrelationID string    `json:"CorrelationId"`
	FileSize      int64     `json:"FileSize,omitempty"`
	UploadedAt    time.Time `json:"UploadedAt,omitzero"`
}

// CompletionEvent is published to the output queue once a document is exported.
type CompletionEvent struct {
	FileName      string            `json:"FileName"`
	CorrelationID string            `json:"CorrelationId"`
	StorageURL    string            `json:"StorageUrl"`
	SceneCount    int               `json:"SceneCount"`
	ReportURLs    map[string]string `json:"ReportUrls,omitempty"`
}

// NotAvailable is the fallback for scalar fields the model leaves out.
const NotAvailable = "N/A"

// Scene is one segmented unit of a document, in document order.
type Scene struct {
	ID        string `json:"id" yaml:"id"`
	Number    string `json:"scene_number" yaml:"scene_number"`
	Header    string `json:"header" yaml:"header"`
	Location  string `json:"location" yaml:"location"`
	TimeOfDay string `json:"time_of_day" yaml:"time_of_day"`
	Placement string `json:"placement,omitempty" yaml:"placement,omitempty"`
	Text      string `json:"text" yaml:"text"`

	Metadata    *EnrichmentResult `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Production  *ProductionData   `json:"production_data,omitempty" yaml:"production_data,omitempty"`
	RawResponse map[string]any    `json:"raw_response,omitempty" yaml:"raw_response,omitempty"`
	Error       *SceneError       `json:"error,omitempty" yaml:"error,omitempty"`
}

// EnrichmentResult is the validated model output for one scene.
type EnrichmentResult struct {
	SceneNumber       string   `json:"scene_number" yaml:"scene_number"`
	Setting           string   `json:"setting" yaml:"setting"`
	LocationDetails   string   `json:"location_details" yaml:"location_details"`
	CharactersPresent []string `json:"characters_present" yaml:"characters_present"`
	KeyEventsSummary  string   `json:"key_events_summary" yaml:"key_events_summary"`
	EmotionalTone     string   `json:"emotional_tone" yaml:"emotional_tone"`
	DialogueSummary   string   `json:"dialogue_summary" yaml:"dialogue_summary"`
}

// DefaultEnrichment returns a result with every field at its fallback.
func DefaultEnrichment() EnrichmentResult {
	var r EnrichmentResult
	r.ApplyDefaults()
	return r
}

// ApplyDefaults fills blank fields with their fallbacks.
func (r *EnrichmentResult) ApplyDefaults() {
	for _, f := range []*string{&r.SceneNumber, &r.Setting, &r.LocationDetails, &r.KeyEventsSummary, &r.EmotionalTone, &r.DialogueSummary} {
		if *f == "" {
			*f = NotAvailable
		}
	}
	if r.CharactersPresent == nil {
		r.CharactersPresent = []string{}
	}
}

// ProductionData holds production requirements derived from a scene.
type ProductionData struct {
	Costume        string   `json:"costume" yaml:"costume"`
	MakeupAndHair  string   `json:"makeup_and_hair" yaml:"makeup_and_hair"`
	Props          []string `json:"props" yaml:"props"`
	Extras         string   `json:"extras" yaml:"extras"`
	Stunts         string   `json:"stunts" yaml:"stunts"`
	SpecialEffects string   `json:"special_effects" yaml:"special_effects"`
	Music          string   `json:"music" yaml:"music"`
}

func (p *ProductionData) ApplyDefaults() {
	for _, f := range []*string{&p.Costume, &p.MakeupAndHair, &p.Extras, &p.Stunts, &p.SpecialEffects, &p.Music} {
		if *f == "" {
			*f = NotAvailable
		}
	}
	if p.Props == nil {
		p.Props = []string{}
	}
}

type SceneErrorKind string

const (
	SceneErrMalformedOutput       SceneErrorKind = "malformed_output"
	SceneErrProductionUnavailable SceneErrorKind = "production_unavailable"
)

// SceneError marks a scene whose enrichment degraded.
type SceneError struct {
	Kind    SceneErrorKind `json:"kind" yaml:"kind"`
	Message string         `json:"message" yaml:"message"`
	Raw     string         `json:"raw,omitempty" yaml:"raw,omitempty"`
}
