package runtime

import (
	"sync"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/event"
)

// Registry owns the set of known runtimes and the active pointer.
// Membership is fixed by Init; only SetActive mutates state afterwards.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	bus      *event.Bus
	pending  []Runtime
	ordered  []*Runtime
	byID     map[string]*Runtime
	active   *Runtime
	initDone bool
}

// NewRegistry creates a registry for the given runtimes. Nothing is checked
// or published until Init is called.
func NewRegistry(bus *event.Bus, runtimes ...Runtime) *Registry {
	return &Registry{
		bus:     bus,
		pending: runtimes,
	}
}

// Init populates the registry and establishes the active runtime: the one
// named by preferredID when it is registered, otherwise the first one.
// It publishes a RuntimeChangedEvent with an empty previous id.
func (r *Registry) Init(preferredID string) error {
	r.mu.Lock()
	if r.initDone {
		r.mu.Unlock()
		return errors.NewValidationError("runtime registry already initialized")
	}
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return errors.ErrNoRuntimes
	}

	ordered := make([]*Runtime, 0, len(r.pending))
	byID := make(map[string]*Runtime, len(r.pending))
	for i := range r.pending {
		rt := r.pending[i]
		if rt.ID == "" {
			r.mu.Unlock()
			return errors.NewValidationError("runtime id must not be empty").WithField("name").WithValue(rt.Name)
		}
		if _, dup := byID[rt.ID]; dup {
			r.mu.Unlock()
			return errors.Wrapf(errors.ErrDuplicateRuntime, "runtime %q", rt.ID)
		}
		byID[rt.ID] = &rt
		ordered = append(ordered, &rt)
	}

	active := ordered[0]
	if preferred, ok := byID[preferredID]; ok {
		active = preferred
	}

	r.ordered = ordered
	r.byID = byID
	r.active = active
	r.pending = nil
	r.initDone = true
	r.mu.Unlock()

	r.publish("", active)
	return nil
}

// Get looks up a runtime by id.
func (r *Registry) Get(id string) (*Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byID[id]
	return rt, ok
}

// Active returns the active runtime, or nil before Init.
func (r *Registry) Active() *Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Values returns all runtimes in registration order.
func (r *Registry) Values() []*Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Runtime, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Next returns the runtime registered after the active one, wrapping around.
func (r *Registry) Next() *Runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil
	}
	for i, rt := range r.ordered {
		if rt == r.active {
			return r.ordered[(i+1)%len(r.ordered)]
		}
	}
	return r.ordered[0]
}

// SetActive makes rt the active runtime and publishes a RuntimeChangedEvent.
// Setting the already-active runtime is allowed and still publishes, with
// equal previous and current ids. A runtime that is not registered is
// rejected with ErrUnknownRuntime and nothing changes.
func (r *Registry) SetActive(rt *Runtime) error {
	if rt == nil {
		return errors.Wrap(errors.ErrUnknownRuntime, "nil runtime")
	}

	r.mu.Lock()
	if !r.initDone {
		r.mu.Unlock()
		return errors.ErrRegistryNotInitialized
	}
	registered, ok := r.byID[rt.ID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrapf(errors.ErrUnknownRuntime, "runtime %q", rt.ID)
	}
	previous := r.active
	r.active = registered
	r.mu.Unlock()

	r.publish(previous.ID, registered)
	return nil
}

// publish runs without the lock so handlers may call back into the registry.
func (r *Registry) publish(previousID string, current *Runtime) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(event.NewRuntimeChangedEvent(previousID, current.ID, current.Name))
}
