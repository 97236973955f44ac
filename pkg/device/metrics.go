package device

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons reported by Metrics.
const (
	dropMalformed     = "malformed"
	dropNoEndpoint    = "no_endpoint"
	dropBadRDM        = "bad_rdm"
	dropBroadcast     = "broadcast"
	dropFailed        = "failed"
	dropSendFailed    = "send_failed"
	dropRejectedConns = "rejected_connection"
)

// Metrics holds the request counters of a Device.
type Metrics struct {
	RequestsReceived *prometheus.CounterVec
	RepliesSent      prometheus.Counter
	Dropped          *prometheus.CounterVec
	HeartbeatsSent   prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RequestsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e133",
			Name:      "requests_received_total",
			Help:      "RDM requests dispatched to endpoints, by transport.",
		}, []string{"transport"}),
		RepliesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "e133",
			Name:      "replies_sent_total",
			Help:      "RDM replies sent over UDP.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e133",
			Name:      "dropped_total",
			Help:      "Messages and connections dropped without a reply, by reason.",
		}, []string{"reason"}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "e133",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeats sent on the TCP session.",
		}),
	}

	for _, c := range []prometheus.Collector{m.RequestsReceived, m.RepliesSent, m.Dropped, m.HeartbeatsSent} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) requestReceived(transport string) {
	if m != nil {
		m.RequestsReceived.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) replySent() {
	if m != nil {
		m.RepliesSent.Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) heartbeatSent() {
	if m != nil {
		m.HeartbeatsSent.Inc()
	}
}
