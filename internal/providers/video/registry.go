package video

import "fmt"

// Registry is the static table of configured adapters, keyed by provider and
// model variant. Shared logic never branches on provider names; it resolves a
// key here and talks to the Adapter interface.
type Registry struct {
	adapters map[Key]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[Key]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Key()] = a
	}
	return &Registry{adapters: m}
}

// Get resolves an adapter by key.
func (r *Registry) Get(key Key) (Adapter, error) {
	a, ok := r.adapters[key]
	if !ok {
		return nil, fmt.Errorf("video: no adapter registered for %s", key)
	}
	return a, nil
}

// Keys lists the registered adapter keys.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.adapters))
	for k := range r.adapters {
		keys = append(keys, k)
	}
	return keys
}
