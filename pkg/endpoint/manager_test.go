package endpoint_test

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/endpoint/mocks"
)

type event struct {
	kind endpoint.EventType
	id   uint16
}

func recordEvents(m *endpoint.Manager) *[]event {
	var events []event
	m.Subscribe(func(kind endpoint.EventType, id uint16) {
		events = append(events, event{kind, id})
	})
	return &events
}

func TestRegisterNotifiesObservers(t *testing.T) {
	m := endpoint.NewManager()
	events := recordEvents(m)
	ep := mocks.NewMockEndpoint(t)

	require.NoError(t, m.Register(3, ep))

	got, ok := m.Lookup(3)
	require.True(t, ok)
	assert.Same(t, ep, got)
	assert.Equal(t, []event{{endpoint.EventAdded, 3}}, *events)
	assert.Equal(t, []uint16{3}, m.EndpointIDs())
}

func TestRegisterErrors(t *testing.T) {
	m := endpoint.NewManager()
	events := recordEvents(m)
	ep := mocks.NewMockEndpoint(t)

	assert.ErrorIs(t, m.Register(endpoint.RootEndpointID, ep), endpoint.ErrReservedID)
	assert.ErrorIs(t, m.Register(1, nil), endpoint.ErrNilEndpoint)

	require.NoError(t, m.Register(1, ep))
	assert.ErrorIs(t, m.Register(1, mocks.NewMockEndpoint(t)), endpoint.ErrDuplicateEndpoint)

	got, _ := m.Lookup(1)
	assert.Same(t, ep, got, "duplicate register must not replace the endpoint")
	assert.Len(t, *events, 1)
}

func TestUnregister(t *testing.T) {
	m := endpoint.NewManager()
	require.NoError(t, m.Register(5, mocks.NewMockEndpoint(t)))
	events := recordEvents(m)

	m.Unregister(5)
	_, ok := m.Lookup(5)
	assert.False(t, ok)
	assert.Equal(t, []event{{endpoint.EventRemoved, 5}}, *events)

	// Unknown ids are a no-op.
	m.Unregister(5)
	m.Unregister(42)
	assert.Len(t, *events, 1)
	assert.Empty(t, m.EndpointIDs())
}

func TestObserversRunInSubscriptionOrder(t *testing.T) {
	m := endpoint.NewManager()
	var order []string
	first := m.Subscribe(func(endpoint.EventType, uint16) { order = append(order, "first") })
	m.Subscribe(func(endpoint.EventType, uint16) { order = append(order, "second") })
	m.Subscribe(func(endpoint.EventType, uint16) { order = append(order, "third") })

	require.NoError(t, m.Register(1, mocks.NewMockEndpoint(t)))
	assert.Equal(t, []string{"first", "second", "third"}, order)

	order = nil
	m.Unsubscribe(first)
	m.Unsubscribe(first)
	m.Unregister(1)
	assert.Equal(t, []string{"second", "third"}, order)
}

func TestObserverCanLookup(t *testing.T) {
	m := endpoint.NewManager()
	var seen bool
	m.Subscribe(func(kind endpoint.EventType, id uint16) {
		_, ok := m.Lookup(id)
		seen = ok == (kind == endpoint.EventAdded)
	})

	require.NoError(t, m.Register(9, mocks.NewMockEndpoint(t)))
	assert.True(t, seen)
	m.Unregister(9)
	assert.True(t, seen)
}

func TestRegisterNext(t *testing.T) {
	m := endpoint.NewManager()
	events := recordEvents(m)

	id1, err := m.RegisterNext(mocks.NewMockEndpoint(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id1)

	require.NoError(t, m.Register(2, mocks.NewMockEndpoint(t)))

	id3, err := m.RegisterNext(mocks.NewMockEndpoint(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(3), id3, "ids in use are skipped")

	m.Unregister(1)
	id4, err := m.RegisterNext(mocks.NewMockEndpoint(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(4), id4, "freed ids are not reused immediately")

	_, err = m.RegisterNext(nil)
	assert.ErrorIs(t, err, endpoint.ErrNilEndpoint)

	assert.Equal(t, []uint16{2, 3, 4}, m.EndpointIDs())
	assert.Len(t, *events, 5)
}

func TestRegistryMirrorStaysConsistent(t *testing.T) {
	m := endpoint.NewManager()
	mirror := make(map[uint16]struct{})
	m.Subscribe(func(kind endpoint.EventType, id uint16) {
		switch kind {
		case endpoint.EventAdded:
			mirror[id] = struct{}{}
		case endpoint.EventRemoved:
			delete(mirror, id)
		}
	})

	ep := mocks.NewMockEndpoint(t)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		id := uint16(rng.Intn(16))
		if rng.Intn(2) == 0 {
			_ = m.Register(id, ep)
		} else {
			m.Unregister(id)
		}

		ids := make([]uint16, 0, len(mirror))
		for id := range mirror {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		require.Equal(t, m.EndpointIDs(), ids, "step %d", i)
	}
}

func TestRegistryConcurrentChanges(t *testing.T) {
	m := endpoint.NewManager()
	var (
		mu     sync.Mutex
		mirror = make(map[uint16]struct{})
	)
	m.Subscribe(func(kind endpoint.EventType, id uint16) {
		mu.Lock()
		defer mu.Unlock()
		if kind == endpoint.EventAdded {
			mirror[id] = struct{}{}
		} else {
			delete(mirror, id)
		}
	})

	ep := mocks.NewMockEndpoint(t)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				id := uint16(rng.Intn(32))
				if rng.Intn(2) == 0 {
					_ = m.Register(id, ep)
				} else {
					m.Unregister(id)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, mirror, m.Len())
	for _, id := range m.EndpointIDs() {
		assert.Contains(t, mirror, id)
	}
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "ADDED", endpoint.EventAdded.String())
	assert.Equal(t, "REMOVED", endpoint.EventRemoved.String())
	assert.Equal(t, "UNKNOWN", endpoint.EventType(7).String())
}
