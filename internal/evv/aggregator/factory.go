package aggregator

import (
	"fmt"
	"log/slog"
	"time"

	"carebridge/internal/evv/rules"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// Factory resolves a state code to its registered aggregator provider.
// Registration happens once at process start; lookups are read-only.
type Factory struct {
	providers map[domain.StateCode]Provider
}

// FactoryConfig carries the endpoint URL for each aggregator name. States are
// taken from the rule catalog so the provider set and the rule set cannot
// drift apart.
type FactoryConfig struct {
	EndpointURLs map[string]string
	Timeout      time.Duration
}

// NewFactory builds one provider per catalog state, wiring each required
// aggregator to its configured endpoint.
func NewFactory(catalog *rules.Catalog, transport Transport, cfg FactoryConfig, logger *slog.Logger) (*Factory, error) {
	if catalog == nil {
		return nil, fmt.Errorf("rule catalog is required")
	}

	providers := make(map[domain.StateCode]Provider)
	for _, state := range catalog.Supported() {
		names, err := catalog.RequiredAggregators(state)
		if err != nil {
			return nil, err
		}
		targets := make([]Target, 0, len(names))
		for _, name := range names {
			url, ok := cfg.EndpointURLs[name]
			if !ok {
				return nil, fmt.Errorf("no endpoint configured for aggregator %s (state %s)", name, state)
			}
			targets = append(targets, Target{Name: name, URL: url})
		}
		provider, err := NewProvider(state, targets, transport, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		providers[state] = provider
	}
	return &Factory{providers: providers}, nil
}

// NewFactoryWith builds a factory from explicit providers. Used by tests.
func NewFactoryWith(providers ...Provider) *Factory {
	m := make(map[domain.StateCode]Provider, len(providers))
	for _, p := range providers {
		m[p.State()] = p
	}
	return &Factory{providers: m}
}

// Provider returns the provider for a state, or ErrStateNotSupported.
func (f *Factory) Provider(state domain.StateCode) (Provider, error) {
	p, ok := f.providers[state]
	if !ok {
		return nil, fmt.Errorf("aggregator provider for state %s: %w", state, sentinel.ErrStateNotSupported)
	}
	return p, nil
}
