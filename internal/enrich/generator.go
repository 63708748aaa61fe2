package enrich

import (
	"context"
	"errors"
	"net"

	"github.com/invopop/jsonschema"
)

// Request is one structured generation call.
type Request struct {
	Prompt      string
	SchemaName  string
	Schema      *jsonschema.Schema
	Temperature float64
}

// Generator is the text-generation service. Implementations return the raw
// model text and report failures as *ServiceUnavailableError.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// classifyTransport handles errors that carry no HTTP status.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &ServiceUnavailableError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return &ServiceUnavailableError{Err: err, Retryable: true}
	}
	return &ServiceUnavailableError{Err: err}
}

func retryableStatus(code int) bool {
	return code == 429 || code/100 == 5
}
