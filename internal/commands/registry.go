// Package commands holds the slash-command handler registry. Handlers are
// registered once at startup and looked up per interaction; a single handler
// can be swapped at runtime without touching the rest of the table.
package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"
)

// Handler processes one application command interaction.
type Handler func(ctx context.Context, event *events.ApplicationCommandInteractionCreate) error

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register adds a handler under the given name. Registering the same name
// twice is a wiring mistake and fails loudly.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("failed to register command: name and handler are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("failed to register command %q: already registered", name)
	}
	r.handlers[name] = h
	r.log.Debug("command registered", zap.String("command", name))
	return nil
}

// Lookup returns the handler for the command name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Reload swaps the handler for an already registered command. Other entries
// are untouched and lookups in flight keep the handler they already got.
func (r *Registry) Reload(name string, h Handler) error {
	if h == nil {
		return fmt.Errorf("failed to reload command %q: handler is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; !exists {
		return fmt.Errorf("failed to reload command %q: not registered", name)
	}
	r.handlers[name] = h
	r.log.Info("command reloaded", zap.String("command", name))
	return nil
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
