package notify

import (
	"cmp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/buildwatch/internal/monitor"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

const moreSuffix = "...and more"

// Symbol maps a build result to the marker shown in messages.
func Symbol(color string) string {
	switch color {
	case "SUCCESS":
		return "✅"
	case "UNSTABLE":
		return "⚠"
	case "FAILURE":
		return "⛔"
	default:
		return "?"
	}
}

// FormatState renders one job as "<symbol> <name> (<culprits>)".
func FormatState(bs state.BuildState) string {
	var b strings.Builder
	b.WriteString(Symbol(bs.Color))
	b.WriteByte(' ')
	b.WriteString(strings.TrimPrefix(bs.Key, "/"))
	if len(bs.Culprits) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(bs.Culprits, ", "))
		b.WriteByte(')')
	}
	return b.String()
}

// FormatChanges renders a change set as a "<server>:" header plus one line per
// job in its new state.
func FormatChanges(server string, changes []monitor.ChangeRecord) string {
	lines := make([]string, 0, len(changes)+1)
	lines = append(lines, server+":")
	for _, c := range changes {
		lines = append(lines, FormatState(c.Current))
	}
	return strings.Join(lines, "\n")
}

// SortedStates orders a snapshot by color, then key.
func SortedStates(snapshot state.Snapshot) []state.BuildState {
	states := make([]state.BuildState, 0, len(snapshot))
	for _, bs := range snapshot {
		states = append(states, bs)
	}
	slices.SortFunc(states, func(a, b state.BuildState) int {
		return cmp.Or(cmp.Compare(a.Color, b.Color), cmp.Compare(a.Key, b.Key))
	})
	return states
}

// Truncated reports whether a snapshot reached the project cap, so that more
// jobs may exist than are listed.
func Truncated(snapshot state.Snapshot, maxProjects int) bool {
	return maxProjects > 0 && len(snapshot) >= maxProjects
}

// FormatStatus renders the full status listing of one server.
func FormatStatus(server string, snapshot state.Snapshot, maxProjects int) string {
	states := SortedStates(snapshot)
	lines := make([]string, 0, len(states)+2)
	lines = append(lines, server+":")
	for _, bs := range states {
		lines = append(lines, FormatState(bs))
	}
	if Truncated(snapshot, maxProjects) {
		lines = append(lines, moreSuffix)
	}
	return strings.Join(lines, "\n")
}
