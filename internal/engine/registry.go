package engine

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry indexes loaded bundles by name and dialect.
type Registry struct {
	sync.RWMutex
	bundles   map[string]*Bundle   // name -> bundle
	byDialect map[string][]*Bundle // dialect -> bundles
	logger    *zap.Logger
}

// NewRegistry creates a new bundle registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		bundles:   make(map[string]*Bundle),
		byDialect: make(map[string][]*Bundle),
		logger:    logger.With(zap.String("component", "engine-registry")),
	}
}

// Register adds a bundle to the registry.
func (r *Registry) Register(bundle *Bundle) error {
	r.Lock()
	defer r.Unlock()

	name := bundle.Name()

	if _, exists := r.bundles[name]; exists {
		return &BundleAlreadyRegisteredError{BundleName: name}
	}

	r.bundles[name] = bundle

	dialect := bundle.Dialect()
	r.byDialect[dialect] = append(r.byDialect[dialect], bundle)

	r.logger.Info("Engine bundle registered",
		zap.String("name", name),
		zap.String("dialect", dialect),
	)

	return nil
}

// Get retrieves a bundle by name.
func (r *Registry) Get(name string) (*Bundle, bool) {
	r.RLock()
	defer r.RUnlock()

	bundle, ok := r.bundles[name]
	return bundle, ok
}

// LookupByDialect returns the bundles for a dialect in registration order.
func (r *Registry) LookupByDialect(dialect string) []*Bundle {
	r.RLock()
	defer r.RUnlock()

	bundles := r.byDialect[dialect]
	result := make([]*Bundle, len(bundles))
	copy(result, bundles)
	return result
}

// List returns all registered bundles sorted by name.
func (r *Registry) List() []*Bundle {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Bundle, 0, len(r.bundles))
	for _, bundle := range r.bundles {
		result = append(result, bundle)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Unregister removes a bundle from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	bundle, ok := r.bundles[name]
	if !ok {
		return
	}

	dialect := bundle.Dialect()
	bundles := r.byDialect[dialect]
	for i, b := range bundles {
		if b.Name() == name {
			r.byDialect[dialect] = append(bundles[:i], bundles[i+1:]...)
			break
		}
	}
	if len(r.byDialect[dialect]) == 0 {
		delete(r.byDialect, dialect)
	}

	delete(r.bundles, name)

	r.logger.Info("Engine bundle unregistered", zap.String("name", name))
}

// Count returns the number of registered bundles.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.bundles)
}
