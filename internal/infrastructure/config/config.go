package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/pseudodev/internal/device"
)

// Config is the root configuration structure for pseudodevd.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Registry  RegistryConfig      `yaml:"registry"`
	Devices   []device.Descriptor `yaml:"devices"`
	Database  DatabaseConfig      `yaml:"database"`
	MQTT      MQTTConfig          `yaml:"mqtt"`
	API       APIConfig           `yaml:"api"`
	WebSocket WebSocketConfig     `yaml:"websocket"`
	InfluxDB  InfluxDBConfig      `yaml:"influxdb"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	Logging   LoggingConfig       `yaml:"logging"`
	Security  SecurityConfig      `yaml:"security"`
}

// RegistryConfig sizes the device table.
type RegistryConfig struct {
	// MaxDevices is the number of slots. Default: 5
	MaxDevices int `yaml:"max_devices"`

	// MaxCapacity is the largest buffer one device may request, in bytes.
	// Default: 1048576 (1 MiB)
	MaxCapacity int `yaml:"max_capacity"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains admin HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// TelemetryConfig controls the registry statistics reporter.
type TelemetryConfig struct {
	// Interval between samples in seconds. Default: 10
	Interval int `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains operator token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PSEUDODEV_SECTION_KEY
// For example: PSEUDODEV_DATABASE_PATH, PSEUDODEV_REGISTRY_MAX_DEVICES
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			MaxDevices:  device.DefaultSize,
			MaxCapacity: device.DefaultMaxCapacity,
		},
		Database: DatabaseConfig{
			Path:        "./data/pseudodev.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			TopicPrefix: "pseudodev",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pseudodevd",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Telemetry: TelemetryConfig{
			Interval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PSEUDODEV_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Registry
	if err := envInt("PSEUDODEV_REGISTRY_MAX_DEVICES", &cfg.Registry.MaxDevices); err != nil {
		return err
	}
	if err := envInt("PSEUDODEV_REGISTRY_MAX_CAPACITY", &cfg.Registry.MaxCapacity); err != nil {
		return err
	}

	// Database
	if v := os.Getenv("PSEUDODEV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if err := envBool("PSEUDODEV_MQTT_ENABLED", &cfg.MQTT.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("PSEUDODEV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PSEUDODEV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PSEUDODEV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if err := envBool("PSEUDODEV_API_ENABLED", &cfg.API.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("PSEUDODEV_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if err := envInt("PSEUDODEV_API_PORT", &cfg.API.Port); err != nil {
		return err
	}

	// InfluxDB
	if err := envBool("PSEUDODEV_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("PSEUDODEV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PSEUDODEV_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("PSEUDODEV_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Registry validation
	if c.Registry.MaxDevices < 1 {
		errs = append(errs, "registry.max_devices must be at least 1")
	}
	if c.Registry.MaxCapacity < 1 {
		errs = append(errs, "registry.max_capacity must be at least 1")
	}

	// Static device table
	if len(c.Devices) > c.Registry.MaxDevices && c.Registry.MaxDevices > 0 {
		errs = append(errs, fmt.Sprintf("devices: %d entries exceed registry.max_devices (%d)", len(c.Devices), c.Registry.MaxDevices))
	}
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if err := device.ValidateDescriptor(d, c.Registry.MaxCapacity); err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d]: %v", i, err))
		}
		if seen[d.Identity] {
			errs = append(errs, fmt.Sprintf("devices[%d]: duplicate identity %q", i, d.Identity))
		}
		seen[d.Identity] = true
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Telemetry validation
	if c.Telemetry.Interval < 1 {
		errs = append(errs, "telemetry.interval must be at least 1 second")
	}

	// Security validation - the JWT secret guards probe and remove over HTTP.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when api is enabled (set PSEUDODEV_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTelemetryInterval returns the telemetry sample interval as a Duration.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}

// GetAccessTokenTTL returns the operator token lifetime as a Duration.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
