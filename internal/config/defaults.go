package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultDataDir     = "./buildwatch-data"
	DefaultInterval    = 15 * time.Minute
	DefaultMaxProjects = 50
	DefaultTimeout     = 30 * time.Second
	DefaultSubject     = "buildwatch.changes"
	DefaultHTTPAddr    = ":9464"

	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type generalDefaults struct{}

func (generalDefaults) Domain() string { return "general" }

func (generalDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

type monitorDefaults struct{}

func (monitorDefaults) Domain() string { return "monitor" }

func (monitorDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = DefaultInterval
	}
	if cfg.Monitor.MaxProjects == nil {
		n := DefaultMaxProjects
		cfg.Monitor.MaxProjects = &n
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Name == "" {
			s.Name = serverNameFromURL(s.URL)
		}
		if s.Timeout <= 0 {
			s.Timeout = DefaultTimeout
		}
		if s.FilterPrefix == "" {
			s.FilterPrefix = cfg.Monitor.FilterPrefix
		}
		if s.MaxProjects == nil {
			n := *cfg.Monitor.MaxProjects
			s.MaxProjects = &n
		}
		if s.Retry.Mode != "" {
			s.Retry.Mode = NormalizeRetryBackoff(string(s.Retry.Mode))
		}
	}
	return nil
}

type notifyDefaults struct{}

func (notifyDefaults) Domain() string { return "notify" }

func (notifyDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Notify.NATS.Subject == "" {
		cfg.Notify.NATS.Subject = DefaultSubject
	}
	if cfg.Notify.Kafka.Topic == "" {
		cfg.Notify.Kafka.Topic = DefaultSubject
	}
	if cfg.Notify.Webhook.Timeout <= 0 {
		cfg.Notify.Webhook.Timeout = 10 * time.Second
	}
	return nil
}

type historyDefaults struct{}

func (historyDefaults) Domain() string { return "history" }

func (historyDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.History.Driver == "" {
		cfg.History.Driver = HistoryDriverSQLite
	}
	if cfg.History.DSN == "" && cfg.History.Driver == HistoryDriverSQLite {
		cfg.History.DSN = filepath.Join(cfg.DataDir, "history.db")
	}
	return nil
}

// defaultAppliers run in order; later domains may read values set by earlier ones.
var defaultAppliers = []DefaultApplier{
	generalDefaults{},
	monitorDefaults{},
	notifyDefaults{},
	historyDefaults{},
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
