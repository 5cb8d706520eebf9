package monitor

import "git.home.luguber.info/inful/buildwatch/internal/state"

// Diff reports the change caused by storing next under key. A first observation
// is not a change; neither is a new build with the same color.
func Diff(snapshot state.Snapshot, key string, next state.BuildState) (ChangeRecord, bool) {
	previous, ok := snapshot[key]
	if !ok || previous.Color == next.Color {
		return ChangeRecord{}, false
	}
	return ChangeRecord{Previous: previous, Current: next}, true
}

// Apply executes directives against snapshot in order and returns the changes in
// the same order. The returned slice is never nil.
func Apply(snapshot state.Snapshot, directives []Directive) []ChangeRecord {
	changes := []ChangeRecord{}
	for _, d := range directives {
		next, ok := d.State.Get()
		if !ok {
			delete(snapshot, d.Key)
			continue
		}
		if change, changed := Diff(snapshot, d.Key, next); changed {
			changes = append(changes, change)
		}
		snapshot[d.Key] = next
	}
	return changes
}
