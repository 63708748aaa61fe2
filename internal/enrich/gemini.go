package enrich

import (
	"context"
	"errors"
	"strings"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL, e.g. for a proxy.
	BaseURL string
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(req.Prompt),
		&genai.GenerateContentConfig{
			CandidateCount:   1,
			Temperature:      genai.Ptr(float32(req.Temperature)),
			ResponseMIMEType: "application/json",
			ResponseSchema:   toGenaiSchema(req.Schema),
		},
	)
	if err != nil {
		return "", classifyGemini(ctx, err)
	}
	return resp.Text(), nil
}

func classifyGemini(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceUnavailableError{Err: err, Retryable: retryableStatus(apiErr.Code)}
	}
	return classifyTransport(ctx, err)
}

// toGenaiSchema converts the reflected request schema into Gemini's subset of
// OpenAPI schema.
func toGenaiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
		out.Properties = map[string]*genai.Schema{}
		if s.Properties != nil {
			for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
				out.Properties[pair.Key] = toGenaiSchema(pair.Value)
				out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
			}
		}
		out.Required = s.Required
	case "array":
		out.Type = genai.TypeArray
		out.Items = toGenaiSchema(s.Items)
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	return out
}
