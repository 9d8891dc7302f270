package gatt

import (
	"sync"

	"github.com/cornelk/hashmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry maps protocol identifiers to the sessions that own them. The
// characteristic index is the routing hot path (every inbound request and
// every descriptor write goes through it) and is therefore backed by a
// lock-free map; the service index preserves registration order, which is
// the deterministic priority order the advertiser uses when more services
// are registered than fit in one advertisement payload.
type Registry struct {
	mu       sync.Mutex // guards services mutation; chars map is safe on its own
	services *orderedmap.OrderedMap[string, Session]
	chars    *hashmap.Map[string, Session]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: orderedmap.New[string, Session](),
		chars:    hashmap.New[string, Session](),
	}
}

// AddService indexes all characteristics of the session's descriptor.
// Fails with ErrInvalidUUID if any descriptor UUID is malformed and with
// ErrDuplicateService if the service UUID is already registered.
func (r *Registry) AddService(session Session) error {
	desc := session.Descriptor()

	if _, err := ValidateUUID(desc.UUID); err != nil {
		return &RegistryError{Failure: InvalidUUID, UUID: desc.UUID}
	}
	for _, c := range desc.Characteristics {
		if _, err := ValidateUUID(c.UUID); err != nil {
			return &RegistryError{Failure: InvalidUUID, UUID: c.UUID}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services.Get(desc.UUID); exists {
		return &RegistryError{Failure: DuplicateService, UUID: desc.UUID}
	}
	r.services.Set(desc.UUID, session)
	for _, c := range desc.Characteristics {
		r.chars.Set(c.UUID, session)
	}
	return nil
}

// RemoveService purges the service and all its characteristic routes.
// Called at session teardown so the registry never outlives a session.
func (r *Registry) RemoveService(serviceUUID string) error {
	id := NormalizeUUID(serviceUUID)

	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.services.Get(id)
	if !exists {
		return &RegistryError{Failure: UnknownService, UUID: id}
	}
	for _, c := range session.Descriptor().Characteristics {
		r.chars.Del(c.UUID)
	}
	r.services.Delete(id)
	return nil
}

// Owner returns the session owning a characteristic, or an
// ErrUnknownCharacteristic registry error.
func (r *Registry) Owner(charUUID string) (Session, error) {
	id := NormalizeUUID(charUUID)
	session, ok := r.chars.Get(id)
	if !ok {
		return nil, &RegistryError{Failure: UnknownCharacteristic, UUID: id}
	}
	return session, nil
}

// ServiceUUIDs returns all registered service UUIDs in registration order.
func (r *Registry) ServiceUUIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	uuids := make([]string, 0, r.services.Len())
	for pair := r.services.Oldest(); pair != nil; pair = pair.Next() {
		uuids = append(uuids, pair.Key)
	}
	return uuids
}

// Sessions returns all registered sessions in registration order.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]Session, 0, r.services.Len())
	for pair := r.services.Oldest(); pair != nil; pair = pair.Next() {
		sessions = append(sessions, pair.Value)
	}
	return sessions
}

// Clear removes every route. Called at multiplexer shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for pair := r.services.Oldest(); pair != nil; pair = pair.Next() {
		for _, c := range pair.Value.Descriptor().Characteristics {
			r.chars.Del(c.UUID)
		}
	}
	r.services = orderedmap.New[string, Session]()
}
