package tts

import (
	"context"
	"strings"
)

// Artifact is an opaque reference to a stored audio result.
type Artifact struct {
	URL string
}

// Provider is the synthesis capability shared by the hosted and local engines.
type Provider interface {
	Name() string
	// HasVoice reports whether the provider can synthesize the given voice.
	// Providers without an enumerated catalog accept any non-empty voice.
	HasVoice(voice string) bool
	Synthesize(ctx context.Context, text, voice string, speed float64) (*Artifact, error)
}

// Registry is the closed set of known providers, keyed by lowercase name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}
