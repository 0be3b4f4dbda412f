package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/lettrage/match"
	"github.com/xraph/lettrage/matching"
)

// DefaultTimeout bounds every plugin hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches hooks to them.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                 []OnInit
	onShutdown             []OnShutdown
	onSuggestionsGenerated []OnSuggestionsGenerated
	onMatchApproved        []OnMatchApproved
	onMatchRejected        []OnMatchRejected
	onMatchStale           []OnMatchStale
	strategies             map[string]MatchingStrategy
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:     slog.Default(),
		timeout:    DefaultTimeout,
		strategies: make(map[string]MatchingStrategy),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	if v, ok := p.(MatchingStrategy); ok {
		if _, dup := r.strategies[v.StrategyName()]; dup {
			return fmt.Errorf("plugin: duplicate matching strategy: %s", v.StrategyName())
		}
		r.strategies[v.StrategyName()] = v
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSuggestionsGenerated); ok {
		r.onSuggestionsGenerated = append(r.onSuggestionsGenerated, v)
	}
	if v, ok := p.(OnMatchApproved); ok {
		r.onMatchApproved = append(r.onMatchApproved, v)
	}
	if v, ok := p.(OnMatchRejected); ok {
		r.onMatchRejected = append(r.onMatchRejected, v)
	}
	if v, ok := p.(OnMatchStale); ok {
		r.onMatchStale = append(r.onMatchStale, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	check := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	check(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	check(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	check(reflect.TypeOf((*OnSuggestionsGenerated)(nil)).Elem(), "OnSuggestionsGenerated")
	check(reflect.TypeOf((*OnMatchApproved)(nil)).Elem(), "OnMatchApproved")
	check(reflect.TypeOf((*OnMatchRejected)(nil)).Elem(), "OnMatchRejected")
	check(reflect.TypeOf((*OnMatchStale)(nil)).Elem(), "OnMatchStale")
	check(reflect.TypeOf((*MatchingStrategy)(nil)).Elem(), "MatchingStrategy")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Strategy returns the matching strategy registered under name.
func (r *Registry) Strategy(name string) (matching.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.strategies[name]
	if !ok {
		return nil, false
	}
	return p.Strategy(), true
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.warn("OnInit", p.Name(), err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.warn("OnShutdown", p.Name(), err)
		}
	}
}

// EmitSuggestionsGenerated emits a matching run summary.
func (r *Registry) EmitSuggestionsGenerated(ctx context.Context, run RunSummary, matches []*match.Match) {
	r.mu.RLock()
	plugins := r.onSuggestionsGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSuggestionsGenerated(ctx, run, matches)
		}); err != nil {
			r.warn("OnSuggestionsGenerated", p.Name(), err)
		}
	}
}

// EmitMatchApproved emits an approval event.
func (r *Registry) EmitMatchApproved(ctx context.Context, m *match.Match) {
	r.mu.RLock()
	plugins := r.onMatchApproved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMatchApproved(ctx, m)
		}); err != nil {
			r.warn("OnMatchApproved", p.Name(), err)
		}
	}
}

// EmitMatchRejected emits a rejection event.
func (r *Registry) EmitMatchRejected(ctx context.Context, m *match.Match) {
	r.mu.RLock()
	plugins := r.onMatchRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMatchRejected(ctx, m)
		}); err != nil {
			r.warn("OnMatchRejected", p.Name(), err)
		}
	}
}

// EmitMatchStale emits a failed approval caused by concurrent lettering.
func (r *Registry) EmitMatchStale(ctx context.Context, m *match.Match, cause error) {
	r.mu.RLock()
	plugins := r.onMatchStale
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMatchStale(ctx, m, cause)
		}); err != nil {
			r.warn("OnMatchStale", p.Name(), err)
		}
	}
}

func (r *Registry) warn(hook, name string, err error) {
	r.logger.Warn("plugin "+hook+" failed",
		"plugin", name,
		"error", err,
	)
}

// callWithTimeout calls a plugin function with a timeout.
// A slow plugin must never hold up matching or review.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
