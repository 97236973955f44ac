package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/endpoint"
	"github.com/e133-protocol/e133-go/pkg/endpoint/mocks"
)

type message struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte, retained bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, message{topic, append([]byte(nil), payload...), retained})
	return nil
}

func (p *fakePublisher) on(topic string) []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []message
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func runReporter(t *testing.T, r *Reporter, interval time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, interval)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "stage/dev1"}
	assert.Equal(t, "stage/dev1/status", topics.Status())
	assert.Equal(t, "stage/dev1/endpoints/12", topics.Endpoint(12))
	assert.Equal(t, "stage/dev1/events", topics.Events())
	assert.Equal(t, "stage/dev1/stats", topics.Stats())

	assert.Equal(t, DefaultTopicPrefix+"/stats", Topics{}.Stats())
}

func TestReporterPublishesEndpointChanges(t *testing.T) {
	pub := &fakePublisher{}
	topics := Topics{Prefix: "test"}
	r := NewReporter(pub, topics, nil)

	registry := endpoint.NewManager()
	registry.Subscribe(r.EndpointChanged)
	runReporter(t, r, time.Hour)

	require.NoError(t, registry.Register(3, mocks.NewMockEndpoint(t)))
	registry.Unregister(3)

	require.Eventually(t, func() bool {
		return len(pub.on(topics.Events())) == 2 && len(pub.on(topics.Endpoint(3))) == 2
	}, time.Second, 5*time.Millisecond)

	events := pub.on(topics.Events())
	var added, removed EndpointEvent
	require.NoError(t, json.Unmarshal(events[0].payload, &added))
	require.NoError(t, json.Unmarshal(events[1].payload, &removed))
	assert.Equal(t, "ADDED", added.Event)
	assert.Equal(t, uint16(3), added.Endpoint)
	assert.Equal(t, "REMOVED", removed.Event)
	assert.False(t, events[0].retained)

	presence := pub.on(topics.Endpoint(3))
	assert.True(t, presence[0].retained)
	assert.JSONEq(t, `{"endpoint":3,"present":true}`, string(presence[0].payload))
	assert.True(t, presence[1].retained)
	assert.Empty(t, presence[1].payload)
}

func TestReporterPublishesStatsOnChange(t *testing.T) {
	pub := &fakePublisher{}
	stats := device.NewTCPConnectionStats()
	topics := Topics{Prefix: "test"}
	r := NewReporter(pub, topics, stats)
	runReporter(t, r, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(pub.on(topics.Stats())) == 1
	}, time.Second, 5*time.Millisecond)

	// Unchanged statistics are not republished.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, pub.on(topics.Stats()), 1)

	var first StatsMessage
	require.NoError(t, json.Unmarshal(pub.on(topics.Stats())[0].payload, &first))
	assert.False(t, first.Connected)
	assert.Zero(t, first.ConnectionEvents)

	stats.ResetCounters()
	assert.Len(t, pub.on(topics.Stats()), 1)
}

func TestPublishStats(t *testing.T) {
	pub := &fakePublisher{}
	r := NewReporter(pub, Topics{}, device.NewTCPConnectionStats())

	require.NoError(t, r.PublishStats())
	msgs := pub.on(Topics{}.Stats())
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].retained)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Contains(t, got, "connection_events")
	assert.Contains(t, got, "unhealthy_events")
	assert.Contains(t, got, "peer_address")
	assert.Equal(t, false, got["connected"])

	pub.err = errors.New("broker gone")
	assert.Error(t, r.PublishStats())
}

func TestStatsMessageJSON(t *testing.T) {
	msg := StatsMessage{
		StatsSnapshot: device.StatsSnapshot{
			ConnectionEvents: 4,
			UnhealthyEvents:  1,
			PeerAddress:      netip.MustParseAddrPort("192.0.2.1:4000"),
		},
		Connected: true,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"connection_events": 4,
		"unhealthy_events": 1,
		"peer_address": "192.0.2.1:4000",
		"connected": true,
		"timestamp": "2026-01-02T03:04:05Z"
	}`, string(data))
}

func TestEndpointChangedDropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{}
	r := NewReporter(pub, Topics{}, nil)

	for i := 0; i < eventQueueSize+10; i++ {
		r.EndpointChanged(endpoint.EventAdded, uint16(i+1))
	}
	assert.Len(t, r.events, eventQueueSize)

	// Queued events are flushed when Run stops.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx, time.Hour)
	assert.Len(t, pub.on(Topics{}.Events()), eventQueueSize)
}
