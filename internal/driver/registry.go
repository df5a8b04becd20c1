// internal/driver/registry.go
package driver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"instrument-service/internal/model"
	"instrument-service/internal/timeutil"
	"instrument-service/internal/units"
	"instrument-service/pkg/driver"
)

// ErrUnknownKind is returned when no factory is registered for a kind
var ErrUnknownKind = errors.New("unknown instrument kind")

// Dependencies are handed to every factory. Defaults fill settings that
// neither the instrument nor its kind provide.
type Dependencies struct {
	Converter *units.Converter
	Clock     timeutil.Clock
	Defaults  map[string]interface{}
	Logger    *zap.Logger
}

// Factory creates an uninitialized instrument from its definition
type Factory func(def *model.InstrumentDefinition, deps Dependencies) (driver.Instrument, error)

// Registry maps a config kind to the factory building it
type Registry struct {
	factories map[string]Factory
	deps      Dependencies
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(converter *units.Converter, logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		deps: Dependencies{
			Converter: converter,
			Clock:     timeutil.RealClock{},
			Logger:    logger,
		},
		logger: logger,
	}
}

// SetClock replaces the clock passed to factories
func (r *Registry) SetClock(clock timeutil.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Clock = clock
}

// SetDefaults sets the settings applied beneath every instrument
func (r *Registry) SetDefaults(defaults map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Defaults = defaults
}

// Register registers a factory under kind, replacing any previous one
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[normalizeKind(kind)] = factory
	r.logger.Debug("Driver registered", zap.String("kind", kind))
}

// Create builds the instrument described by def
func (r *Registry) Create(def *model.InstrumentDefinition) (driver.Instrument, error) {
	r.mu.RLock()
	factory, exists := r.factories[normalizeKind(def.Kind)]
	deps := r.deps
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q (instrument %s)", ErrUnknownKind, def.Kind, def.Name)
	}

	inst, err := factory(def, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument %s: %w", def.Name, err)
	}
	return inst, nil
}

// Kinds returns the registered kinds in sorted order
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// IsSupported checks if a kind has a factory
func (r *Registry) IsSupported(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[normalizeKind(kind)]
	return exists
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
