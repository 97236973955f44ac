package device

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/e133-protocol/e133-go/pkg/log"
	"github.com/e133-protocol/e133-go/pkg/pdu"
	"github.com/e133-protocol/e133-go/pkg/transport"
)

// DefaultSourceName is the E1.33 source name used in replies.
const DefaultSourceName = "e133-go device"

// Config configures a Device.
type Config struct {
	// IPAddress is the local address to listen on. Empty listens on all
	// interfaces. The port is always the E1.33 port.
	IPAddress string

	// SourceName is sent in the E1.33 header of replies and heartbeats.
	SourceName string

	// HeartbeatInterval is the TCP health check period, used both for
	// sending and for expecting heartbeats.
	HeartbeatInterval time.Duration

	// Logger is the operational logger (optional).
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger

	// Metrics receives request and session counters (optional).
	Metrics *Metrics
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SourceName:        DefaultSourceName,
		HeartbeatInterval: transport.DefaultHeartbeatInterval,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.IPAddress != "" {
		if _, err := netip.ParseAddr(c.IPAddress); err != nil {
			return fmt.Errorf("%w: ip address %q: %v", ErrInvalidConfig, c.IPAddress, err)
		}
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
	}
	if len(c.SourceName) > pdu.SourceNameSize-1 {
		return fmt.Errorf("%w: source name longer than %d bytes", ErrInvalidConfig, pdu.SourceNameSize-1)
	}
	return nil
}
