package ports

import (
	"context"

	"github.com/bnema/continuity/internal/domain"
)

// ProviderOptions tune a single provider invocation. A zero value asks for
// the provider's defaults.
type ProviderOptions struct {
	// RelevanceThreshold filters out items the provider scores below it.
	RelevanceThreshold float64
	// MaxItems caps the number of items returned. Zero means no cap.
	MaxItems int
}

// Provider contributes context items for a query. Implementations must not
// panic; the assembler recovers anyway and treats the contribution as empty.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string, opts ProviderOptions) ([]domain.ContextItem, error)
}

// Embedder is the opaque embedding backend: text in, fixed-dimension vector
// out. Calls may fail or time out; callers degrade rather than propagate.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
