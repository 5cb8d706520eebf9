package notify

import (
	"log/slog"

	"git.home.luguber.info/inful/buildwatch/internal/config"
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

// SinksFromConfig builds the sinks enabled in cfg. Sinks built before a failure
// are closed again.
func SinksFromConfig(cfg config.NotifyConfig, logger *slog.Logger) ([]Sink, error) {
	var sinks []Sink
	fail := func(err error, sink string) ([]Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, errors.WrapError(err, errors.CategoryNotify, "failed to set up notification sink").
			WithContext("sink", sink).
			Build()
	}

	if cfg.LogEnabled() {
		sinks = append(sinks, NewLogSink(logger))
	}
	if cfg.Webhook.URL != "" {
		s, err := NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.Headers)
		if err != nil {
			return fail(err, "webhook")
		}
		sinks = append(sinks, s)
	}
	if cfg.NATS.URL != "" {
		s, err := NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fail(err, "nats")
		}
		sinks = append(sinks, s)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		s, err := NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fail(err, "kafka")
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
