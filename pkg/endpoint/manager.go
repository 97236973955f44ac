package endpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
)

// EventType is the kind of registry change delivered to observers.
type EventType int

const (
	// EventAdded is sent after an endpoint was registered.
	EventAdded EventType = iota

	// EventRemoved is sent after an endpoint was unregistered.
	EventRemoved
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventAdded:
		return "ADDED"
	case EventRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Observer is notified of registry changes. Observers must not register or
// unregister endpoints from within the callback.
type Observer func(event EventType, id uint16)

// SubscriptionID identifies an observer subscription.
type SubscriptionID uint64

// RootEndpointID is reserved for the device's root endpoint.
const RootEndpointID uint16 = 0

// Registry errors.
var (
	ErrReservedID        = errors.New("endpoint id 0 is reserved for the root endpoint")
	ErrNilEndpoint       = errors.New("endpoint is nil")
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
	ErrRegistryFull      = errors.New("no free endpoint ids")
)

type subscription struct {
	id       SubscriptionID
	observer Observer
}

// Manager is the endpoint registry.
type Manager struct {
	// changeMu serializes registry changes together with their notifications.
	changeMu sync.Mutex

	mu        sync.RWMutex
	endpoints map[uint16]Endpoint
	observers []subscription
	nextSubID SubscriptionID
	nextID    uint16

	logger *slog.Logger
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		endpoints: make(map[uint16]Endpoint),
		nextID:    1,
	}
}

// SetLogger sets the logger for registry changes. Pass nil to disable.
func (m *Manager) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// Register adds an endpoint under id and notifies observers.
func (m *Manager) Register(id uint16, ep Endpoint) error {
	if id == RootEndpointID {
		return ErrReservedID
	}
	if ep == nil {
		return ErrNilEndpoint
	}

	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	m.mu.Lock()
	if _, exists := m.endpoints[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrDuplicateEndpoint, id)
	}
	m.endpoints[id] = ep
	m.mu.Unlock()

	m.debugLog("endpoint added", "endpoint", id)
	m.notify(EventAdded, id)
	return nil
}

// RegisterNext registers ep under the next free id and returns it.
// Ids are handed out in increasing order, wrapping past 65535 and skipping
// ids in use.
func (m *Manager) RegisterNext(ep Endpoint) (uint16, error) {
	if ep == nil {
		return 0, ErrNilEndpoint
	}

	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	m.mu.Lock()
	if len(m.endpoints) >= math.MaxUint16 {
		m.mu.Unlock()
		return 0, ErrRegistryFull
	}
	id := m.nextID
	for {
		if id == RootEndpointID {
			id++
			continue
		}
		if _, used := m.endpoints[id]; !used {
			break
		}
		id++
	}
	m.endpoints[id] = ep
	m.nextID = id + 1
	m.mu.Unlock()

	m.debugLog("endpoint added", "endpoint", id)
	m.notify(EventAdded, id)
	return id, nil
}

// Unregister removes the endpoint under id and notifies observers.
// Unregistering an unknown id does nothing.
func (m *Manager) Unregister(id uint16) {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	m.mu.Lock()
	if _, exists := m.endpoints[id]; !exists {
		m.mu.Unlock()
		return
	}
	delete(m.endpoints, id)
	m.mu.Unlock()

	m.debugLog("endpoint removed", "endpoint", id)
	m.notify(EventRemoved, id)
}

// Lookup returns the endpoint registered under id.
func (m *Manager) Lookup(id uint16) (Endpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.endpoints[id]
	return ep, ok
}

// EndpointIDs returns the registered ids, sorted.
func (m *Manager) EndpointIDs() []uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint16, 0, len(m.endpoints))
	for id := range m.endpoints {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered endpoints.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.endpoints)
}

// Subscribe adds an observer and returns its handle. Observers are called
// in subscription order.
func (m *Manager) Subscribe(observer Observer) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSubID++
	m.observers = append(m.observers, subscription{id: m.nextSubID, observer: observer})
	return m.nextSubID
}

// Unsubscribe removes an observer. Unknown handles are ignored.
func (m *Manager) Unsubscribe(id SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = slices.DeleteFunc(m.observers, func(s subscription) bool {
		return s.id == id
	})
}

// notify runs the observers with changeMu held.
func (m *Manager) notify(event EventType, id uint16) {
	m.mu.RLock()
	observers := slices.Clone(m.observers)
	m.mu.RUnlock()

	for _, s := range observers {
		s.observer(event, id)
	}
}

func (m *Manager) debugLog(msg string, args ...any) {
	m.mu.RLock()
	logger := m.logger
	m.mu.RUnlock()
	if logger != nil {
		logger.Debug(msg, args...)
	}
}
