package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownType is returned by Resolve when no pair is registered for the
// requested TypeID.
var ErrUnknownType = errors.New("plugin: unknown declaration type")

// Registry stores plugin pairs by TypeID. It is filled once at startup and
// sealed; after that every method is a read.
type Registry struct {
	mu     sync.RWMutex
	pairs  map[TypeID]Pair
	sealed bool
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		pairs: make(map[TypeID]Pair),
	}
}

// Register adds a pair under id. Duplicate ids, incomplete pairs and writes
// to a sealed registry return an error.
func (r *Registry) Register(id TypeID, pair Pair) error {
	id = NormalizeType(string(id))
	if id == "" {
		return fmt.Errorf("plugin: type id is required")
	}
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("plugin: type %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("plugin: registry is sealed, cannot register %q", id)
	}
	if _, exists := r.pairs[id]; exists {
		return fmt.Errorf("plugin: type %q already registered", id)
	}

	r.pairs[id] = pair
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(id TypeID, pair Pair) {
	if err := r.Register(id, pair); err != nil {
		panic(err)
	}
}

// Seal freezes the registry. Subsequent Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve retrieves the pair registered for id.
func (r *Registry) Resolve(id TypeID) (Pair, error) {
	id = NormalizeType(string(id))

	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, ok := r.pairs[id]
	if !ok {
		return Pair{}, fmt.Errorf("%w %q", ErrUnknownType, id)
	}
	return pair, nil
}

// Types returns the registered type ids in sorted order.
func (r *Registry) Types() []TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]TypeID, 0, len(r.pairs))
	for id := range r.pairs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Has reports whether a pair is registered for id.
func (r *Registry) Has(id TypeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.pairs[NormalizeType(string(id))]
	return ok
}

// Len reports the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}
