package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e133-protocol/e133-go/pkg/device"
	"github.com/e133-protocol/e133-go/pkg/rdm"
	"github.com/e133-protocol/e133-go/pkg/status"
	"github.com/e133-protocol/e133-go/pkg/transport"
)

// Config is the root configuration of the device binary.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
	Capture   CaptureConfig   `yaml:"capture"`
}

// DeviceConfig holds the E1.33 settings.
type DeviceConfig struct {
	IPAddress         string        `yaml:"ip_address"`
	SourceName        string        `yaml:"source_name"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// EndpointsConfig describes the dummy responders behind the endpoints.
// The root endpoint uses UID; endpoint n uses UID's device id plus n.
type EndpointsConfig struct {
	UID               string `yaml:"uid"`
	Count             int    `yaml:"count"`
	ManufacturerLabel string `yaml:"manufacturer_label"`
	DeviceLabel       string `yaml:"device_label"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// MQTTConfig configures the status bridge.
type MQTTConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	QoS           int           `yaml:"qos"`
	TopicPrefix   string        `yaml:"topic_prefix"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// LoggingConfig configures operational logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CaptureConfig configures the protocol capture file.
type CaptureConfig struct {
	Path string `yaml:"path"`
}

// Load reads path, applies environment overrides and validates the result.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			SourceName:        device.DefaultSourceName,
			HeartbeatInterval: transport.DefaultHeartbeatInterval,
		},
		Endpoints: EndpointsConfig{
			UID:   "7a70:00000001",
			Count: 1,
		},
		Metrics: MetricsConfig{
			Address: ":9133",
			Path:    "/metrics",
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "e133-device",
			QoS:           1,
			TopicPrefix:   status.DefaultTopicPrefix,
			StatsInterval: status.DefaultStatsInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnvOverrides applies E133_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("E133_IP_ADDRESS"); v != "" {
		cfg.Device.IPAddress = v
	}
	if v := os.Getenv("E133_SOURCE_NAME"); v != "" {
		cfg.Device.SourceName = v
	}
	if v := os.Getenv("E133_ENDPOINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Endpoints.Count = n
		}
	}
	if v := os.Getenv("E133_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("E133_MQTT_BROKER"); v != "" {
		cfg.MQTT.Enabled = true
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("E133_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("E133_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("E133_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("E133_CAPTURE_PATH"); v != "" {
		cfg.Capture.Path = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	dc := c.DeviceConfig()
	if err := dc.Validate(); err != nil {
		errs = append(errs, "device: "+err.Error())
	}

	if _, err := rdm.ParseUID(c.Endpoints.UID); err != nil {
		errs = append(errs, "endpoints.uid: "+err.Error())
	}
	if c.Endpoints.Count < 0 || c.Endpoints.Count > 0xfff0 {
		errs = append(errs, "endpoints.count must be between 0 and 65520")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, "metrics.address is required when metrics are enabled")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DeviceConfig returns the library configuration for the device. Loggers
// and metrics are left for the caller.
func (c *Config) DeviceConfig() device.Config {
	dc := device.DefaultConfig()
	dc.IPAddress = c.Device.IPAddress
	dc.SourceName = c.Device.SourceName
	dc.HeartbeatInterval = c.Device.HeartbeatInterval
	return dc
}

// StatusConfig returns the MQTT connection settings.
func (c *Config) StatusConfig() status.Config {
	return status.Config{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Username:    c.MQTT.Username,
		Password:    c.MQTT.Password,
		QoS:         byte(c.MQTT.QoS),
		TopicPrefix: c.MQTT.TopicPrefix,
	}
}

// RootUID returns the UID of the root endpoint's responder.
func (c *Config) RootUID() rdm.UID {
	uid, _ := rdm.ParseUID(c.Endpoints.UID)
	return uid
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
