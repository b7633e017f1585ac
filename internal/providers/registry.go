package providers

import (
	"sort"

	"github.com/rs/zerolog"
)

// Registry maps provider names to clients with a default fallback for empty
// or unknown names.
type Registry struct {
	clients     map[string]Client
	defaultName string
	logger      zerolog.Logger
}

func NewRegistry(defaultName string, logger zerolog.Logger) *Registry {
	return &Registry{
		clients:     map[string]Client{},
		defaultName: defaultName,
		logger:      logger,
	}
}

func (r *Registry) Register(name string, client Client) {
	r.clients[name] = client
}

// Lookup resolves the requested provider, falling back to the default. The
// second return value is the name actually selected.
func (r *Registry) Lookup(requested string) (Client, string) {
	if client, ok := r.clients[requested]; ok {
		return client, requested
	}
	if requested != "" {
		r.logger.Warn().Str("provider", requested).Msg("providers: unknown provider, using default")
	}
	client, ok := r.clients[r.defaultName]
	if !ok {
		return nil, requested
	}
	return client, r.defaultName
}

// Default returns the fallback provider name.
func (r *Registry) Default() string {
	return r.defaultName
}

// Names lists registered providers in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
