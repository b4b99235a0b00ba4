// Package router orders the configured generation backends and tracks their
// health through per-backend circuit breakers.
package router

import (
	"context"

	"github.com/foodanalyzer/food-analyzer/internal/circuitbreaker"
	"github.com/foodanalyzer/food-analyzer/internal/domain"
	"github.com/foodanalyzer/food-analyzer/internal/metrics"
	"github.com/foodanalyzer/food-analyzer/internal/provider"
)

type Router struct {
	generators map[string]provider.Generator
	order      []string
	breakers   map[string]*circuitbreaker.Breaker
}

// New builds a router over the given backends. defaultID is tried first;
// remaining backends follow in registration order.
func New(generators map[string]provider.Generator, defaultID string) *Router {
	order := make([]string, 0, len(generators))
	if _, ok := generators[defaultID]; ok {
		order = append(order, defaultID)
	}
	for id := range generators {
		if id != defaultID {
			order = append(order, id)
		}
	}

	breakers := make(map[string]*circuitbreaker.Breaker, len(generators))
	for id := range generators {
		breakers[id] = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}

	return &Router{
		generators: generators,
		order:      order,
		breakers:   breakers,
	}
}

// Candidates returns the backends whose circuit breakers currently allow
// traffic, primary first. An empty result means every breaker is open.
func (r *Router) Candidates(ctx context.Context) ([]provider.Generator, error) {
	var out []provider.Generator
	for _, id := range r.order {
		if err := r.breakers[id].Allow(ctx); err != nil {
			continue
		}
		out = append(out, r.generators[id])
	}
	if len(out) == 0 {
		return nil, domain.ErrGeneratorUnavailable
	}
	return out, nil
}

func (r *Router) RecordSuccess(ctx context.Context, id string) {
	if b, ok := r.breakers[id]; ok {
		b.RecordSuccess(ctx)
		metrics.SetCircuitBreakerState(id, int(b.State(ctx)))
	}
}

func (r *Router) RecordFailure(ctx context.Context, id string) {
	if b, ok := r.breakers[id]; ok {
		b.RecordFailure(ctx)
		metrics.SetCircuitBreakerState(id, int(b.State(ctx)))
	}
}

// BreakerStates reports the state of every backend's breaker, for the health
// endpoint.
func (r *Router) BreakerStates(ctx context.Context) map[string]string {
	states := make(map[string]string, len(r.breakers))
	for id, b := range r.breakers {
		states[id] = b.State(ctx).String()
	}
	return states
}

func (r *Router) ListGenerators() []string {
	return append([]string(nil), r.order...)
}

func (r *Router) GetGenerator(id string) (provider.Generator, bool) {
	g, ok := r.generators[id]
	return g, ok
}
