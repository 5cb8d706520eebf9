package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// Config represents the application configuration.
type Config struct {
	Version string         `yaml:"version"`
	DataDir string         `yaml:"data_dir"`
	Logging LoggingConfig  `yaml:"logging"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Servers []ServerConfig `yaml:"servers"`
	Notify  NotifyConfig   `yaml:"notify"`
	History HistoryConfig  `yaml:"history"`
	HTTP    HTTPConfig     `yaml:"http"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MonitorConfig holds the polling settings shared by every server.
type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MaxProjects  *int          `yaml:"max_projects,omitempty"` // unset means the default, <=0 disables the cap
	FilterPrefix string        `yaml:"filter_prefix"`
	LoadState    *bool         `yaml:"load_state,omitempty"`
}

// ServerConfig describes one monitored Jenkins server.
type ServerConfig struct {
	Name              string        `yaml:"name"`
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username,omitempty"`
	APIToken          string        `yaml:"api_token,omitempty"`
	VerifyCertificate *bool         `yaml:"verify_certificate,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	FilterPrefix      string        `yaml:"filter_prefix,omitempty"` // overrides monitor.filter_prefix
	MaxProjects       *int          `yaml:"max_projects,omitempty"`  // overrides monitor.max_projects when set
	Retry             RetryConfig   `yaml:"retry,omitempty"`
}

// RetryConfig configures client side retries of failed remote requests.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// NotifyConfig enables notification sinks. Sinks without an address are disabled.
type NotifyConfig struct {
	Log     *bool         `yaml:"log,omitempty"`
	Webhook WebhookConfig `yaml:"webhook"`
	NATS    NATSConfig    `yaml:"nats"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// WebhookConfig posts change sets as JSON to URL.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// NATSConfig publishes change sets to Subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// KafkaConfig produces change sets to Topic.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HistoryConfig configures the change history store.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Driver  string `yaml:"driver"` // sqlite|postgres
	DSN     string `yaml:"dsn"`
}

// HTTPConfig configures the status and metrics listener. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadsState reports whether monitors read their persisted snapshot at startup.
func (m MonitorConfig) LoadsState() bool { return m.LoadState == nil || *m.LoadState }

// ProjectLimit returns the project cap; <=0 means no cap.
func (m MonitorConfig) ProjectLimit() int {
	if m.MaxProjects == nil {
		return DefaultMaxProjects
	}
	return *m.MaxProjects
}

// ProjectLimit returns the project cap of the server; <=0 means no cap.
func (s ServerConfig) ProjectLimit() int {
	if s.MaxProjects == nil {
		return DefaultMaxProjects
	}
	return *s.MaxProjects
}

// VerifiesCertificate reports whether TLS certificates are verified (default true).
func (s ServerConfig) VerifiesCertificate() bool {
	return s.VerifyCertificate == nil || *s.VerifyCertificate
}

// LogEnabled reports whether the log sink is enabled (default true).
func (n NotifyConfig) LogEnabled() bool { return n.Log == nil || *n.Log }

// IsEnabled reports whether change history is recorded (default true).
func (h HistoryConfig) IsEnabled() bool { return h.Enabled == nil || *h.Enabled }

// Server returns the server configuration with the given name.
func (c *Config) Server(name string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// Load reads, expands, defaults and validates the configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes configuration bytes, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse config").Fatal().Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	verify := true
	maxProjects := DefaultMaxProjects
	example := Config{
		Version: "1",
		DataDir: DefaultDataDir,
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Monitor: MonitorConfig{Interval: DefaultInterval, MaxProjects: &maxProjects},
		Servers: []ServerConfig{{
			Name:              "ci",
			URL:               "https://ci.example.com",
			Username:          "monitor",
			APIToken:          "${JENKINS_API_TOKEN}",
			VerifyCertificate: &verify,
			Timeout:           DefaultTimeout,
		}},
		Notify: NotifyConfig{
			NATS:  NATSConfig{Subject: DefaultSubject},
			Kafka: KafkaConfig{Topic: DefaultSubject},
		},
		History: HistoryConfig{Driver: HistoryDriverSQLite},
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// serverNameFromURL derives a display name from the server address.
func serverNameFromURL(raw string) string {
	name := raw
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	return strings.TrimSuffix(name, "/")
}
