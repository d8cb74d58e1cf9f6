// Package catalog holds the static provider/model catalog.
//
// The catalog is constructed once at startup and never mutated, so a
// *Store can be shared across goroutines without locking. Configuration
// reloads build a fresh Store and swap it through a Holder.
package catalog

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNotFound is returned for unknown provider or model ids.
// Callers are expected to treat it as a normal outcome, not a failure.
var ErrNotFound = errors.New("catalog: not found")

// Model describes a single model offered by a provider.
type Model struct {
	ID                string `json:"id" koanf:"id"`
	Name              string `json:"name" koanf:"name"`
	Description       string `json:"description,omitempty" koanf:"description"`
	MaxTokens         int    `json:"maxTokens,omitempty" koanf:"max_tokens"`
	SupportsFunctions bool   `json:"supportsFunctions,omitempty" koanf:"supports_functions"`
	IsDefault         bool   `json:"isDefault,omitempty" koanf:"is_default"`
}

// Provider describes a hosted model provider. Disabled providers stay
// in the catalog for introspection but fail selection validation.
type Provider struct {
	ID                string  `json:"id" koanf:"id"`
	Name              string  `json:"name" koanf:"name"`
	Description       string  `json:"description,omitempty" koanf:"description"`
	IsEnabled         bool    `json:"isEnabled" koanf:"enabled"`
	SupportsStreaming bool    `json:"supportsStreaming" koanf:"supports_streaming"`
	Models            []Model `json:"models" koanf:"models"`
}

// Selection is a (provider, model) pair chosen for outgoing requests.
type Selection struct {
	ProviderID string `json:"providerId" koanf:"provider_id"`
	ModelID    string `json:"modelId" koanf:"model_id"`
}

// Store answers read-only catalog queries.
type Store struct {
	providers  []Provider
	byID       map[string]int
	defaultSel Selection
}

// New builds a Store from the given providers, in the given order.
// Provider ids must be unique; model ids must be unique within their
// provider.
func New(providers []Provider, defaultSel Selection) (*Store, error) {
	byID := make(map[string]int, len(providers))
	for i, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider at index %d has empty id", i)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		byID[p.ID] = i

		seen := make(map[string]struct{}, len(p.Models))
		for _, m := range p.Models {
			if m.ID == "" {
				return nil, fmt.Errorf("provider %q has a model with empty id", p.ID)
			}
			if _, dup := seen[m.ID]; dup {
				return nil, fmt.Errorf("provider %q has duplicate model id %q", p.ID, m.ID)
			}
			seen[m.ID] = struct{}{}
		}
	}

	return &Store{
		providers:  providers,
		byID:       byID,
		defaultSel: defaultSel,
	}, nil
}

// Providers returns all providers, enabled and disabled, in configured order.
func (s *Store) Providers() []Provider {
	out := make([]Provider, len(s.providers))
	copy(out, s.providers)
	return out
}

// EnabledProviders returns only the providers available for selection.
func (s *Store) EnabledProviders() []Provider {
	var out []Provider
	for _, p := range s.providers {
		if p.IsEnabled {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the provider with the given id, or ErrNotFound.
func (s *Store) Get(id string) (Provider, error) {
	i, ok := s.byID[id]
	if !ok {
		return Provider{}, ErrNotFound
	}
	return s.providers[i], nil
}

// ModelsFor returns the models of the given provider, or ErrNotFound
// for an unknown provider id.
func (s *Store) ModelsFor(providerID string) ([]Model, error) {
	p, err := s.Get(providerID)
	if err != nil {
		return nil, err
	}
	models := make([]Model, len(p.Models))
	copy(models, p.Models)
	return models, nil
}

// IsValidSelection reports whether providerID names an enabled provider
// and modelID one of its models. Requests with an invalid pair must be
// rejected before any network call.
func (s *Store) IsValidSelection(providerID, modelID string) bool {
	p, err := s.Get(providerID)
	if err != nil || !p.IsEnabled {
		return false
	}
	for _, m := range p.Models {
		if m.ID == modelID {
			return true
		}
	}
	return false
}

// DefaultModelFor returns the model flagged as default for the
// provider, falling back to the first model in declaration order.
// ErrNotFound means the provider is unknown or has no models.
func (s *Store) DefaultModelFor(providerID string) (Model, error) {
	p, err := s.Get(providerID)
	if err != nil {
		return Model{}, err
	}
	for _, m := range p.Models {
		if m.IsDefault {
			return m, nil
		}
	}
	if len(p.Models) == 0 {
		return Model{}, ErrNotFound
	}
	return p.Models[0], nil
}

// DefaultSelection returns the selection new sessions should start
// from: the configured default when it is still valid, otherwise the
// first enabled provider's default model. ok is false when no enabled
// provider has any model.
func (s *Store) DefaultSelection() (Selection, bool) {
	if s.IsValidSelection(s.defaultSel.ProviderID, s.defaultSel.ModelID) {
		return s.defaultSel, true
	}
	for _, p := range s.providers {
		if !p.IsEnabled {
			continue
		}
		m, err := s.DefaultModelFor(p.ID)
		if err != nil {
			continue
		}
		return Selection{ProviderID: p.ID, ModelID: m.ID}, true
	}
	return Selection{}, false
}

// Holder publishes the current Store and lets configuration reloads
// swap it atomically.
type Holder struct {
	cur atomic.Pointer[Store]
}

// NewHolder creates a Holder seeded with the given store.
func NewHolder(s *Store) *Holder {
	h := &Holder{}
	h.cur.Store(s)
	return h
}

// Load returns the current store.
func (h *Holder) Load() *Store { return h.cur.Load() }

// Swap replaces the current store.
func (h *Holder) Swap(s *Store) { h.cur.Store(s) }
