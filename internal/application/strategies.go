package application

import "github.com/bnema/continuity/internal/ports"

// Canonical provider names. The set is closed: strategies reference
// providers by these names, and wiring registers typed implementations for
// whichever of them are available in a given deployment.
const (
	ProviderVision        = "vision"
	ProviderSession       = "session"
	ProviderMetaCognitive = "metacognitive"
	ProviderAdaptive      = "adaptive"
	ProviderBoundary      = "boundary"
	ProviderSemantic      = "semantic"
)

// ProviderStep is one step of a strategy pipeline: which provider to call,
// with what options, and how much to boost the priority of what it returns.
type ProviderStep struct {
	Provider string
	Options  ports.ProviderOptions
	// Boost is added to each returned item's priority, clamped to 1.0.
	Boost float64
}

// Strategy is a fixed, named composition of provider steps. AllProviders
// bypasses Steps and calls every registered provider with defaults.
type Strategy struct {
	Name         string
	Steps        []ProviderStep
	AllProviders bool
}

// Built-in strategy names.
const (
	StrategyStandard      = "standard"
	StrategyMinimal       = "minimal"
	StrategyBoundary      = "boundary"
	StrategyComprehensive = "comprehensive"
	StrategyDebugging     = "debugging"
	StrategyArchitecture  = "architecture"
)

// domainBoost is the fixed priority delta the domain-focused strategies add.
const domainBoost = 0.2

func builtinStrategies() map[string]Strategy {
	strategies := []Strategy{
		{
			Name: StrategyStandard,
			Steps: []ProviderStep{
				{Provider: ProviderVision},
				{Provider: ProviderSession},
				{Provider: ProviderMetaCognitive},
				{Provider: ProviderAdaptive},
			},
		},
		{
			Name: StrategyMinimal,
			Steps: []ProviderStep{
				{Provider: ProviderVision},
				{Provider: ProviderSession},
				{Provider: ProviderAdaptive, Options: ports.ProviderOptions{MaxItems: 2, RelevanceThreshold: 0.3}},
			},
		},
		{
			Name: StrategyBoundary,
			Steps: []ProviderStep{
				{Provider: ProviderBoundary},
				{Provider: ProviderVision},
				{Provider: ProviderSession},
				{Provider: ProviderMetaCognitive},
				{Provider: ProviderAdaptive},
			},
		},
		{
			Name:         StrategyComprehensive,
			AllProviders: true,
		},
		{
			Name: StrategyDebugging,
			Steps: []ProviderStep{
				{Provider: ProviderBoundary},
				{Provider: ProviderSession, Boost: domainBoost},
				{Provider: ProviderAdaptive, Boost: domainBoost},
				{Provider: ProviderSemantic},
			},
		},
		{
			Name: StrategyArchitecture,
			Steps: []ProviderStep{
				{Provider: ProviderVision, Boost: domainBoost},
				{Provider: ProviderMetaCognitive, Boost: domainBoost},
				{Provider: ProviderSession},
				{Provider: ProviderSemantic},
			},
		},
	}

	byName := make(map[string]Strategy, len(strategies))
	for _, strategy := range strategies {
		byName[strategy.Name] = strategy
	}
	return byName
}

// StrategyNames lists the built-in strategies, for CLI help and validation.
func StrategyNames() []string {
	return []string{
		StrategyStandard,
		StrategyMinimal,
		StrategyBoundary,
		StrategyComprehensive,
		StrategyDebugging,
		StrategyArchitecture,
	}
}
