package config

import (
	"strings"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	if len(cfg.Servers) == 0 {
		return errors.ValidationError("at least one server must be configured").
			WithContext("field", "servers").
			Build()
	}
	if cfg.Monitor.Interval <= 0 {
		return errors.ValidationError("monitor interval must be positive").
			WithContext("field", "monitor.interval").
			WithContext("value", cfg.Monitor.Interval.String()).
			Build()
	}

	seen := make(map[string]struct{}, len(cfg.Servers))
	for i, s := range cfg.Servers {
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			return errors.ValidationError("server url must start with http:// or https://").
				WithContext("field", "servers.url").
				WithContext("index", i).
				WithContext("value", s.URL).
				Build()
		}
		if _, dup := seen[s.Name]; dup {
			return errors.ValidationError("duplicate server name").
				WithContext("field", "servers.name").
				WithContext("value", s.Name).
				Build()
		}
		seen[s.Name] = struct{}{}
		if s.Retry.MaxRetries < 0 {
			return errors.ValidationError("retry.max_retries cannot be negative").
				WithContext("field", "servers.retry.max_retries").
				WithContext("server", s.Name).
				Build()
		}
	}

	switch cfg.History.Driver {
	case HistoryDriverSQLite, HistoryDriverPostgres:
	default:
		return errors.ValidationError("unsupported history driver").
			WithContext("field", "history.driver").
			WithContext("value", cfg.History.Driver).
			Build()
	}
	if cfg.History.IsEnabled() && cfg.History.Driver == HistoryDriverPostgres && cfg.History.DSN == "" {
		return errors.ValidationError("history.dsn is required for the postgres driver").
			WithContext("field", "history.dsn").
			Build()
	}
	return nil
}
