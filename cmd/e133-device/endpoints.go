package main

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/e133-protocol/e133-go/cmd/e133-device/interactive"
	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/rdm"
	"github.com/e133-protocol/e133-go/pkg/responder"
)

// endpointSet owns the dummy responders registered with the manager.
// Endpoint n answers as the base UID with n added to the device id.
type endpointSet struct {
	manager *endpoint.Manager
	stats   *device.TCPConnectionStats
	base    rdm.UID
	labels  responder.Config

	mu         sync.Mutex
	responders map[uint16]*responder.DummyResponder
}

func newEndpointSet(manager *endpoint.Manager, stats *device.TCPConnectionStats, base rdm.UID, labels responder.Config) *endpointSet {
	return &endpointSet{
		manager:    manager,
		stats:      stats,
		base:       base,
		labels:     labels,
		responders: make(map[uint16]*responder.DummyResponder),
	}
}

// root returns the endpoint serving id 0.
func (s *endpointSet) root() endpoint.Endpoint {
	r := s.newResponder(endpoint.RootEndpointID)
	s.mu.Lock()
	s.responders[endpoint.RootEndpointID] = r
	s.mu.Unlock()
	return endpoint.NewResponderEndpoint(r)
}

func (s *endpointSet) newResponder(id uint16) *responder.DummyResponder {
	cfg := s.labels
	cfg.UID = rdm.NewUID(s.base.ManufacturerID, s.base.DeviceID+uint32(id))
	return responder.New(cfg)
}

// AddEndpoint registers a new responder under the lowest free id.
func (s *endpointSet) AddEndpoint() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uint16(1)
	for {
		if _, used := s.responders[id]; !used {
			break
		}
		if id == math.MaxUint16 {
			return 0, endpoint.ErrRegistryFull
		}
		id++
	}

	r := s.newResponder(id)
	if err := s.manager.Register(id, endpoint.NewResponderEndpoint(r)); err != nil {
		return 0, err
	}
	s.responders[id] = r
	return id, nil
}

// RemoveEndpoint unregisters the endpoint under id.
func (s *endpointSet) RemoveEndpoint(id uint16) error {
	if id == endpoint.RootEndpointID {
		return fmt.Errorf("the root endpoint cannot be removed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.responders[id]; !ok {
		return fmt.Errorf("no endpoint %d", id)
	}
	s.manager.Unregister(id)
	delete(s.responders, id)
	return nil
}

// RemoveAll unregisters every endpoint except the root.
func (s *endpointSet) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.responders {
		if id == endpoint.RootEndpointID {
			continue
		}
		s.manager.Unregister(id)
		delete(s.responders, id)
	}
}

// Endpoints lists the endpoints ordered by id.
func (s *endpointSet) Endpoints() []interactive.EndpointInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]interactive.EndpointInfo, 0, len(s.responders))
	for id, r := range s.responders {
		infos = append(infos, interactive.EndpointInfo{
			ID:          id,
			UID:         r.UID(),
			Label:       r.DeviceLabel(),
			Identifying: r.Identifying(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Stats returns the TCP session statistics.
func (s *endpointSet) Stats() device.StatsSnapshot {
	return s.stats.Snapshot()
}

// ResetStats zeroes the TCP session counters.
func (s *endpointSet) ResetStats() {
	s.stats.ResetCounters()
}

var _ interactive.Controller = (*endpointSet)(nil)
