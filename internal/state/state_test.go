package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

func TestFileNameFor(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"ci.example.com", "jenkins-ci.example.com.json"},
		{"https://ci.example.com/", "jenkins-ci.example.com.json"},
		{"ci.example.com/jenkins", "jenkins-ci.example.com.jenkins.json"},
		{"http://localhost:8080/ci/", "jenkins-localhost.8080.ci.json"},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			assert.Equal(t, tt.want, FileNameFor(tt.server))
		})
	}
}

func TestLoadCreatesPlaceholder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store := NewJSONStore(dir, "ci.example.com")

	snapshot, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, snapshot)
	assert.NotNil(t, snapshot)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewJSONStore(t.TempDir(), "ci.example.com")
	want := Snapshot{
		"/A":    {Key: "/A", BuildID: 3, Color: "FAILURE", Culprits: []string{"Ann", "unknown"}},
		"/B/b1": {Key: "/B/b1", BuildID: 9, Color: "SUCCESS", Culprits: []string{}},
	}
	require.NoError(t, store.Save(t.Context(), want))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not remain")
}

func TestLoadReadsLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(dir, "ci.example.com")
	doc := `{"/A":{"name":"/A","id":4,"color":"UNSTABLE","culprits":["Bob"],"extra":true},"/B":{"name":"/B","id":1,"color":"SUCCESS"}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o600))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, BuildState{Key: "/A", BuildID: 4, Color: "UNSTABLE", Culprits: []string{"Bob"}}, got["/A"])
	assert.Equal(t, []string{}, got["/B"].Culprits)
}

func TestLoadPrefixesUnslashedKeys(t *testing.T) {
	store := NewJSONStore(t.TempDir(), "ci.example.com")
	doc := `{"A":{"name":"A","id":2,"color":"FAILURE"},"B":{"name":"B","id":1,"color":"FAILURE"},"/B":{"name":"/B","id":5,"color":"SUCCESS"}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o600))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/A", "/B"}, got.Keys())
	assert.Equal(t, BuildState{Key: "/A", BuildID: 2, Color: "FAILURE", Culprits: []string{}}, got["/A"])
	assert.Equal(t, 5, got["/B"].BuildID, "the slash-prefixed entry wins")
}

func TestLoadNullDocument(t *testing.T) {
	store := NewJSONStore(t.TempDir(), "ci")
	require.NoError(t, os.WriteFile(store.Path(), []byte("null"), 0o600))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadCorruptDocument(t *testing.T) {
	for name, doc := range map[string]string{
		"truncated": `{"/A": {"name": "/A"`,
		"array":     `[1,2,3]`,
		"empty":     ``,
	} {
		t.Run(name, func(t *testing.T) {
			store := NewJSONStore(t.TempDir(), "ci")
			require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o600))

			_, err := store.Load(t.Context())
			var corrupt *CorruptStateError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, store.Path(), corrupt.Path)
			assert.Equal(t, errors.CategoryState, errors.GetCategory(err))
		})
	}
}

func TestSaveCancelledLeavesFileUntouched(t *testing.T) {
	store := NewJSONStore(t.TempDir(), "ci")
	original := Snapshot{"/A": {Key: "/A", BuildID: 1, Color: "SUCCESS", Culprits: []string{}}}
	require.NoError(t, store.Save(t.Context(), original))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.Error(t, store.Save(ctx, Snapshot{}))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestSaveIsDeterministic(t *testing.T) {
	store := NewJSONStore(t.TempDir(), "ci")
	s := Snapshot{
		"/b": {Key: "/b", BuildID: 2, Color: "SUCCESS", Culprits: []string{}},
		"/a": {Key: "/a", BuildID: 1, Color: "FAILURE", Culprits: []string{"x"}},
	}
	require.NoError(t, store.Save(t.Context(), s))
	first, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	require.NoError(t, store.Save(t.Context(), s.Clone()))
	second, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshotClone(t *testing.T) {
	s := Snapshot{"/A": {Key: "/A", Culprits: []string{"Ann"}}}
	c := s.Clone()
	c["/A"].Culprits[0] = "changed"
	delete(c, "/A")

	assert.Equal(t, "Ann", s["/A"].Culprits[0])
	assert.Equal(t, []string{"/A"}, s.Keys())
	assert.NotNil(t, Snapshot(nil).Clone())
}
