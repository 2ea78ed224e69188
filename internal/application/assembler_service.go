package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
	"github.com/google/uuid"
)

type AssemblerConfig struct {
	CacheTTL          time.Duration
	CompressionMaxLen int
}

// AssembleOptions carry the per-call knobs. DisableCache and the audit
// toggle are not part of the cache key; everything else is.
type AssembleOptions struct {
	MaxItems           int
	RelevanceThreshold float64
	DisableCache       bool
	SkipAudit          bool
}

func (o AssembleOptions) cacheKey(strategy, query string) string {
	return fmt.Sprintf("%s|%s|%d|%.3f", strategy, query, o.MaxItems, o.RelevanceThreshold)
}

// Assembler produces ranked, size-bounded context bundles from a closed set
// of providers composed by named strategies. Provider trouble never fails an
// assembly; it only shrinks the bundle.
type Assembler struct {
	providers  map[string]ports.Provider
	order      []string
	strategies map[string]Strategy
	data       *DataService
	embedder   ports.Embedder
	cache      *bundleCache
	clock      ports.Clock
	maxLen     int
}

// NewAssembler wires the assembler from its collaborators. Registering two
// providers under one name is an integration bug and fails construction.
// data and embedder may be nil: audit records and the semantic fallback are
// then skipped.
func NewAssembler(providers []ports.Provider, data *DataService, embedder ports.Embedder, clock ports.Clock, cfg AssemblerConfig) (*Assembler, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	byName := make(map[string]ports.Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		if _, exists := byName[p.Name()]; exists {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateProvider, p.Name())
		}
		byName[p.Name()] = p
		order = append(order, p.Name())
	}

	maxLen := cfg.CompressionMaxLen
	if maxLen <= 0 {
		maxLen = DefaultCompressionMaxLen
	}

	return &Assembler{
		providers:  byName,
		order:      order,
		strategies: builtinStrategies(),
		data:       data,
		embedder:   embedder,
		cache:      newBundleCache(clock, cfg.CacheTTL),
		clock:      clock,
		maxLen:     maxLen,
	}, nil
}

// GenerateContext assembles a bundle for the query under the named strategy.
// Only an unknown strategy is an error; everything else degrades.
func (a *Assembler) GenerateContext(ctx context.Context, strategyName, query string, opts AssembleOptions) (domain.ContextBundle, error) {
	strategy, ok := a.strategies[strategyName]
	if !ok {
		return domain.ContextBundle{}, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, strategyName)
	}

	key := opts.cacheKey(strategy.Name, query)
	if !opts.DisableCache {
		if bundle, hit := a.cache.get(key); hit {
			return bundle, nil
		}
	}

	items := a.runStrategy(ctx, strategy, query, opts)
	items = a.validateItems(items)
	domain.SortByPriority(items)
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	bundle := domain.ContextBundle{
		Strategy:    strategy.Name,
		Query:       query,
		Items:       items,
		Success:     len(items) > 0,
		GeneratedAt: a.clock.Now(),
	}

	if len(items) == 0 {
		bundle = a.fallback(ctx, bundle, query)
	}

	if bundle.Success && !opts.DisableCache {
		a.cache.put(key, bundle)
	}
	if bundle.Success && !opts.SkipAudit {
		a.recordAudit(ctx, bundle)
	}

	return bundle, nil
}

// RenderContext assembles and renders in one step.
func (a *Assembler) RenderContext(ctx context.Context, strategyName, query string, opts AssembleOptions, format RenderFormat) (string, domain.ContextBundle, error) {
	bundle, err := a.GenerateContext(ctx, strategyName, query, opts)
	if err != nil {
		return "", domain.ContextBundle{}, err
	}
	out, err := Render(bundle, format, a.maxLen)
	if err != nil {
		return "", bundle, err
	}
	return out, bundle, nil
}

func (a *Assembler) runStrategy(ctx context.Context, strategy Strategy, query string, opts AssembleOptions) []domain.ContextItem {
	steps := strategy.Steps
	if strategy.AllProviders {
		steps = make([]ProviderStep, 0, len(a.order))
		for _, name := range a.order {
			steps = append(steps, ProviderStep{Provider: name})
		}
	}

	var items []domain.ContextItem
	for _, step := range steps {
		provider, ok := a.providers[step.Provider]
		if !ok {
			slog.Debug("strategy step has no registered provider", "strategy", strategy.Name, "provider", step.Provider)
			continue
		}

		stepOpts := step.Options
		if opts.RelevanceThreshold > stepOpts.RelevanceThreshold {
			stepOpts.RelevanceThreshold = opts.RelevanceThreshold
		}

		contribution := a.fetch(ctx, provider, query, stepOpts)
		for i := range contribution {
			contribution[i].Priority = clampPriority(contribution[i].Priority + step.Boost)
		}
		items = append(items, contribution...)
	}
	return items
}

// fetch isolates one provider call: errors and panics are logged and turn
// into an empty contribution.
func (a *Assembler) fetch(ctx context.Context, provider ports.Provider, query string, opts ports.ProviderOptions) (items []domain.ContextItem) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panicked", "provider", provider.Name(), "panic", r)
			items = nil
		}
	}()

	items, err := provider.Fetch(ctx, query, opts)
	if err != nil {
		slog.Warn("provider failed, contribution dropped", "provider", provider.Name(), "error", err)
		return nil
	}
	return items
}

func (a *Assembler) validateItems(items []domain.ContextItem) []domain.ContextItem {
	valid := items[:0]
	for _, item := range items {
		if err := item.Validate(); err != nil {
			slog.Warn("context item dropped", "id", item.ID, "error", err)
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

// fallback attempts a single direct semantic lookup before conceding an
// empty bundle.
func (a *Assembler) fallback(ctx context.Context, bundle domain.ContextBundle, query string) domain.ContextBundle {
	if a.embedder == nil {
		bundle.Success = false
		return bundle
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("semantic fallback failed", "error", err)
		bundle.Success = false
		return bundle
	}

	bundle.Items = []domain.ContextItem{{
		Type:     ProviderSemantic,
		ID:       uuid.Must(uuid.NewV7()).String(),
		Title:    "Semantic recall",
		Content:  fmt.Sprintf("No strategy items matched; query %q embedded into a %d-dimension vector for direct similarity recall.", query, len(vector)),
		Priority: 0.5,
	}}
	bundle.Success = true
	bundle.Fallback = true
	return bundle
}

// assemblyAudit is the persisted trace of one assembly, kept for inspection.
type assemblyAudit struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	Query       string    `json:"query"`
	ItemCount   int       `json:"item_count"`
	Fallback    bool      `json:"fallback,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (a *Assembler) recordAudit(ctx context.Context, bundle domain.ContextBundle) {
	if a.data == nil {
		return
	}
	audit := assemblyAudit{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Strategy:    bundle.Strategy,
		Query:       bundle.Query,
		ItemCount:   len(bundle.Items),
		Fallback:    bundle.Fallback,
		GeneratedAt: bundle.GeneratedAt,
	}
	if !a.data.Store(ctx, assemblyNamespace, audit.ID, audit) {
		slog.Warn("assembly audit not persisted", "strategy", bundle.Strategy)
	}
}

func clampPriority(p float64) float64 {
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
