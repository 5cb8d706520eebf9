package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/buildwatch/internal/eventstore"
	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/buildwatch/internal/notify"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Server string        `short:"s" help:"Only changes of this server"`
	Prefix string        `short:"p" help:"Only jobs whose key starts with this prefix"`
	Since  time.Duration `help:"Only changes recorded within this duration (e.g. 24h)"`
	Limit  int           `short:"n" help:"Maximum number of changes" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := eventstore.Open(ctx, cfg.History)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.ConfigError("change history is disabled").
			WithContext("field", "history.enabled").
			Build()
	}
	defer func() { _ = store.Close() }()

	q := eventstore.Query{Server: h.Server, KeyPrefix: h.Prefix, Limit: h.Limit}
	if h.Since > 0 {
		q.Since = time.Now().Add(-h.Since)
	}
	changes, err := store.Recent(ctx, q)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(g.Out, "no changes recorded")
		return nil
	}
	for _, c := range changes {
		_, _ = fmt.Fprintln(g.Out, formatChange(c))
	}
	return nil
}

// formatChange renders "<time> <server> <prev symbol> -> <state line>".
func formatChange(c eventstore.Change) string {
	var b strings.Builder
	b.WriteString(c.RecordedAt.Local().Format(time.DateTime))
	b.WriteByte(' ')
	b.WriteString(c.Server)
	b.WriteByte(' ')
	b.WriteString(notify.Symbol(c.PreviousColor))
	b.WriteString(" -> ")
	b.WriteString(notify.FormatState(state.BuildState{
		Key:      c.Key,
		BuildID:  c.BuildID,
		Color:    c.Color,
		Culprits: c.Culprits,
	}))
	return b.String()
}
