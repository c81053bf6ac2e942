package handler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Registry resolves a `provider:model` string to a registered Handler. It
// is a constructed value passed through the runner, never a package-level
// singleton, which keeps tests hermetic.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler // "provider:model" -> Handler
	byModel  map[string]Handler // "provider" -> default Handler for any model
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		byModel:  make(map[string]Handler),
	}
}

// Register binds a Handler to an exact "provider:model" rate key.
func (r *Registry) Register(providerModel string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[providerModel] = h
}

// RegisterProviderDefault binds a Handler as the fallback for any model of
// the given provider not individually registered.
func (r *Registry) RegisterProviderDefault(provider string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byModel[provider] = h
}

// Resolve returns the Handler bound to providerModel ("provider:model"),
// falling back to a provider-wide default if one was registered.
func (r *Registry) Resolve(providerModel string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[providerModel]; ok {
		return h, nil
	}

	provider, _, err := splitProviderModel(providerModel)
	if err != nil {
		return nil, err
	}
	if h, ok := r.byModel[provider]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("handler: no handler registered for %q", providerModel)
}

// WarmStartAll runs WarmStart once per distinct registered handler (a
// handler registered under several keys warms once). The first failure is
// returned; remaining handlers are still warmed.
func (r *Registry) WarmStartAll(ctx context.Context, logger *log.Logger) error {
	r.mu.RLock()
	seen := make(map[Handler]struct{}, len(r.handlers)+len(r.byModel))
	var distinct []Handler
	for _, h := range r.handlers {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}
	for _, h := range r.byModel {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, h := range distinct {
		if err := h.WarmStart(ctx, logger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// List returns every registered "provider:model" key.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

func splitProviderModel(providerModel string) (provider, model string, err error) {
	idx := strings.IndexByte(providerModel, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("handler: invalid provider:model string %q", providerModel)
	}
	return providerModel[:idx], providerModel[idx+1:], nil
}
