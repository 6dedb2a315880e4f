package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in order until one returns a completion.
// Clinics usually configure Gemini alone; registering an OpenAI-compatible
// endpoint after it gives the narrative flow a backup.
type Router struct {
	mu    sync.RWMutex
	chain []routedProvider
}

type routedProvider struct {
	name     string
	provider Provider
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Register appends a provider to the fallback chain.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(r.chain, routedProvider{name: name, provider: provider})
}

// Complete runs the request down the chain and returns the first success.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rp := range r.chain {
		resp, err := rp.provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("narrative provider failed, trying next",
				"provider", rp.name,
				"error", err,
			)
			continue
		}
		slog.Debug("narrative completion",
			"provider", rp.name,
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}
	return CompletionResponse{}, fmt.Errorf("no provider produced a completion")
}

// HasProvider reports whether any provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chain) > 0
}
