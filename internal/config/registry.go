package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	tokenizer map[string]func(ProviderEntry) (tokenizer.Tokenizer, error)
	speech    map[string]func(ProviderEntry) (speech.Engine, error)
	reasoner  map[string]func(ProviderEntry) (reasoner.Reasoner, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tokenizer: make(map[string]func(ProviderEntry) (tokenizer.Tokenizer, error)),
		speech:    make(map[string]func(ProviderEntry) (speech.Engine, error)),
		reasoner:  make(map[string]func(ProviderEntry) (reasoner.Reasoner, error)),
	}
}

// RegisterTokenizer registers a tokenizer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTokenizer(name string, factory func(ProviderEntry) (tokenizer.Tokenizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokenizer[name] = factory
}

// RegisterSpeech registers a speech-engine factory under name.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (speech.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterReasoner registers a reasoner factory under name.
func (r *Registry) RegisterReasoner(name string, factory func(ProviderEntry) (reasoner.Reasoner, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasoner[name] = factory
}

// CreateTokenizer instantiates a tokenizer using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name.
func (r *Registry) CreateTokenizer(entry ProviderEntry) (tokenizer.Tokenizer, error) {
	r.mu.RLock()
	factory, ok := r.tokenizer[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tokenizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSpeech instantiates a speech engine using the factory registered
// under entry.Name.
func (r *Registry) CreateSpeech(entry ProviderEntry) (speech.Engine, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateReasoner instantiates a reasoner using the factory registered
// under entry.Name.
func (r *Registry) CreateReasoner(entry ProviderEntry) (reasoner.Reasoner, error) {
	r.mu.RLock()
	factory, ok := r.reasoner[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: reasoner/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
