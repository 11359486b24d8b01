package llm

import "sync"

// defaultPreference is the fixed order used to resolve the default provider:
// the aggregator first, then the primary vendor, then whichever provider was
// registered first.
var defaultPreference = []ProviderID{ProviderOpenRouter, ProviderOpenAI}

// Registry maps provider identifiers to registered provider instances.
// It holds references only; provider lifecycle is owned by the caller.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]Provider
	order     []ProviderID
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderID]Provider),
	}
}

// Register adds or replaces the provider registered under id.
func (r *Registry) Register(id ProviderID, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.providers[id] = p
}

// Unregister removes the provider registered under id, if any.
func (r *Registry) Unregister(id ProviderID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; !exists {
		return
	}
	delete(r.providers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the provider registered under id.
func (r *Registry) Get(id ProviderID) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	return p, ok
}

// Has reports whether a provider is registered under id.
func (r *Registry) Has(id ProviderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[id]
	return ok
}

// List returns the registered provider identifiers in registration order.
func (r *Registry) List() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, len(r.order))
	copy(ids, r.order)
	return ids
}

// Default resolves the default provider by preference order, falling back to
// the first registered provider. Returns false if the registry is empty.
func (r *Registry) Default() (ProviderID, Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range defaultPreference {
		if p, ok := r.providers[id]; ok {
			return id, p, true
		}
	}
	if len(r.order) > 0 {
		id := r.order[0]
		return id, r.providers[id], true
	}
	return "", nil, false
}
