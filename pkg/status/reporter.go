package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/endpoint"
)

// DefaultStatsInterval is how often Run checks the statistics for changes.
const DefaultStatsInterval = 5 * time.Second

// eventQueueSize bounds the endpoint events waiting for Run.
const eventQueueSize = 64

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// EndpointEvent is the payload of the events topic.
type EndpointEvent struct {
	Event     string    `json:"event"`
	Endpoint  uint16    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
}

// EndpointPresence is the retained payload of an endpoint topic.
type EndpointPresence struct {
	Endpoint uint16 `json:"endpoint"`
	Present  bool   `json:"present"`
}

// StatsMessage is the payload of the stats topic.
type StatsMessage struct {
	device.StatsSnapshot
	Connected bool      `json:"connected"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter publishes endpoint changes and session statistics.
//
// EndpointChanged is a registry observer; it only queues the event so the
// registry is never blocked on the broker. Run publishes the queue and the
// statistics.
type Reporter struct {
	pub    Publisher
	topics Topics
	stats  *device.TCPConnectionStats
	logger *slog.Logger

	events chan EndpointEvent

	last      device.StatsSnapshot
	published bool
}

// NewReporter creates a reporter. stats may be nil to skip statistics.
func NewReporter(pub Publisher, topics Topics, stats *device.TCPConnectionStats) *Reporter {
	return &Reporter{
		pub:    pub,
		topics: topics,
		stats:  stats,
		events: make(chan EndpointEvent, eventQueueSize),
	}
}

// SetLogger sets the logger for publish failures.
func (r *Reporter) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// EndpointChanged implements endpoint.Observer.
func (r *Reporter) EndpointChanged(event endpoint.EventType, id uint16) {
	ev := EndpointEvent{Event: event.String(), Endpoint: id, Timestamp: time.Now().UTC()}
	select {
	case r.events <- ev:
	default:
		r.warn("status event queue full, dropping event", "event", ev.Event, "endpoint", id)
	}
}

// Run publishes queued endpoint events and, every interval, the statistics
// if they changed. It returns when ctx is done.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.publishStatsIfChanged()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case ev := <-r.events:
			r.publishEvent(ev)
		case <-ticker.C:
			r.publishStatsIfChanged()
		}
	}
}

// PublishStats publishes the current statistics unconditionally.
func (r *Reporter) PublishStats() error {
	if r.stats == nil {
		return nil
	}
	snap := r.stats.Snapshot()
	if err := r.publishJSON(r.topics.Stats(), StatsMessage{
		StatsSnapshot: snap,
		Connected:     snap.Connected(),
		Timestamp:     time.Now().UTC(),
	}, true); err != nil {
		return err
	}
	r.last = snap
	r.published = true
	return nil
}

func (r *Reporter) publishStatsIfChanged() {
	if r.stats == nil {
		return
	}
	if r.published && r.stats.Snapshot() == r.last {
		return
	}
	if err := r.PublishStats(); err != nil {
		r.warn("failed to publish stats", "error", err)
	}
}

func (r *Reporter) publishEvent(ev EndpointEvent) {
	if err := r.publishJSON(r.topics.Events(), ev, false); err != nil {
		r.warn("failed to publish endpoint event", "endpoint", ev.Endpoint, "error", err)
	}

	var err error
	if ev.Event == endpoint.EventAdded.String() {
		err = r.publishJSON(r.topics.Endpoint(ev.Endpoint), EndpointPresence{Endpoint: ev.Endpoint, Present: true}, true)
	} else {
		// An empty retained message clears the topic.
		err = r.pub.Publish(r.topics.Endpoint(ev.Endpoint), nil, true)
	}
	if err != nil {
		r.warn("failed to publish endpoint presence", "endpoint", ev.Endpoint, "error", err)
	}
}

func (r *Reporter) drain() {
	for {
		select {
		case ev := <-r.events:
			r.publishEvent(ev)
		default:
			return
		}
	}
}

func (r *Reporter) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.pub.Publish(topic, payload, retained)
}

func (r *Reporter) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
