package state

import "slices"

// BuildState is the recorded outcome of the latest completed build of one job.
type BuildState struct {
	Key      string   `json:"name"`
	BuildID  int      `json:"id"`
	Color    string   `json:"color"`
	Culprits []string `json:"culprits"`
}

// Clone returns a copy that shares no memory with b.
func (b BuildState) Clone() BuildState {
	b.Culprits = slices.Clone(b.Culprits)
	if b.Culprits == nil {
		b.Culprits = []string{}
	}
	return b
}

// Snapshot maps job keys to their recorded state.
type Snapshot map[string]BuildState

// Clone returns a deep copy of s. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the job keys in lexical order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
