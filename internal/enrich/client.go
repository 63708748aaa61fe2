// Package enrich asks a text-generation service for structured scene metadata.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"sceneflow-go/internal/config"
	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/types"
)

type Options struct {
	Language              string
	Temperature           float64
	ProductionTemperature float64
	// RetryMaxElapsed bounds retries of retryable service errors. Zero disables retries.
	RetryMaxElapsed   time.Duration
	RateLimitRPS      float64
	ProductionDetails bool
}

// OptionsFromConfig maps the llm config section onto client options.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		Language:              cfg.Language,
		Temperature:           cfg.Temperature,
		ProductionTemperature: cfg.ProductionTemperature,
		RetryMaxElapsed:       cfg.RetryMaxElapsed,
		RateLimitRPS:          cfg.RateLimitRPS,
		ProductionDetails:     cfg.ProductionDetails,
	}
}

// NewGenerator builds the generator named by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		g, err := NewOpenAI(OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.Timeout})
		if err != nil {
			return nil, err
		}
		return g, nil
	case "gemini":
		g, err := NewGemini(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Enrichment is the parsed result of one scene call.
type Enrichment struct {
	Metadata types.EnrichmentResult
	// Raw is the decoded model object, kept for the artifact.
	Raw map[string]any
}

type Client struct {
	gen     Generator
	opts    Options
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewClient(gen Generator, opts Options, log *logger.Logger) *Client {
	if opts.Language == "" {
		opts.Language = "Russian"
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return &Client{gen: gen, opts: opts, limiter: limiter, log: log.With("component", "enrich")}
}

// ProductionEnabled reports whether callers should follow EnrichScene with
// ProductionDetails.
func (c *Client) ProductionEnabled() bool { return c.opts.ProductionDetails }

// EnrichScene returns metadata for one scene body. Errors are either
// *MalformedOutputError (never retried) or *ServiceUnavailableError.
func (c *Client) EnrichScene(ctx context.Context, sceneText string) (Enrichment, error) {
	raw, err := c.generate(ctx, Request{
		Prompt:      buildScenePrompt(sceneText, c.opts.Language),
		SchemaName:  "scene_metadata",
		Schema:      sceneRequestSchema,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return Enrichment{}, err
	}
	res, doc, err := parseEnrichment(raw)
	if err != nil {
		return Enrichment{}, err
	}
	return Enrichment{Metadata: res, Raw: doc}, nil
}

// ProductionDetails asks for production requirements of a scene, given the
// events summary from EnrichScene. Errors follow EnrichScene.
func (c *Client) ProductionDetails(ctx context.Context, summary, sceneText string) (types.ProductionData, error) {
	raw, err := c.generate(ctx, Request{
		Prompt:      buildProductionPrompt(summary, sceneText, c.opts.Language),
		SchemaName:  "production_details",
		Schema:      productionRequestSchema,
		Temperature: c.opts.ProductionTemperature,
	})
	if err != nil {
		return types.ProductionData{}, err
	}
	return parseProduction(raw)
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	var out string
	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(&ServiceUnavailableError{Err: err})
			}
		}
		text, err := c.gen.Generate(ctx, req)
		if err != nil {
			var su *ServiceUnavailableError
			if !errors.As(err, &su) {
				return backoff.Permanent(&ServiceUnavailableError{Err: err})
			}
			if !su.Retryable {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithField("attempt", attempt).Warn("generation failed, retrying")
			return err
		}
		out = text
		return nil
	}

	var bo backoff.BackOff = &backoff.StopBackOff{}
	if c.opts.RetryMaxElapsed > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 200 * time.Millisecond
		eb.MaxElapsedTime = c.opts.RetryMaxElapsed
		bo = eb
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		var su *ServiceUnavailableError
		if !errors.As(err, &su) {
			err = &ServiceUnavailableError{Err: err}
		}
		return "", err
	}
	return out, nil
}
