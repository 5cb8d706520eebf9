package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/buildwatch/internal/foundation/errors"
)

const emptyDocument = "{}"

// JSONStore keeps the snapshot of one server in a JSON file.
type JSONStore struct {
	dataDir string
	path    string
	mu      sync.Mutex
}

// NewJSONStore returns a store for the server identified by serverName.
// Nothing touches the disk until Load or Save.
func NewJSONStore(dataDir, serverName string) *JSONStore {
	return &JSONStore{
		dataDir: dataDir,
		path:    filepath.Join(dataDir, FileNameFor(serverName)),
	}
}

// Path returns the location of the snapshot document.
func (js *JSONStore) Path() string { return js.path }

// FileNameFor derives the document name from a server address: the scheme is
// dropped, a trailing slash trimmed and path or port separators replaced by dots.
func FileNameFor(server string) string {
	name := server
	if idx := strings.Index(name, "://"); idx >= 0 {
		name = name[idx+3:]
	}
	name = strings.TrimSuffix(name, "/")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '?', '#', '*', '"', '<', '>', '|', ' ':
			return '.'
		}
		return r
	}, name)
	return "jenkins-" + name + ".json"
}

// Load reads the snapshot, creating the data directory and an empty document first
// when none exists. Unknown fields are ignored; a malformed document yields
// *CorruptStateError.
func (js *JSONStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	js.mu.Lock()
	defer js.mu.Unlock()

	if err := js.ensureFile(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(js.path)
	if err != nil {
		return nil, errors.FileSystemError("failed to read state file").
			WithCause(err).
			WithContext("path", js.path).
			Build()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &CorruptStateError{Path: js.path, Err: fmt.Errorf("empty document")}
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &CorruptStateError{Path: js.path, Err: err}
	}
	return normalizeKeys(snapshot), nil
}

// normalizeKeys fills in nil culprits and gives keys written without the leading
// "/" the form the walker emits, so such entries can be updated and evicted.
// An existing "/"-form entry wins over its unprefixed twin.
func normalizeKeys(raw Snapshot) Snapshot {
	snapshot := make(Snapshot, len(raw))
	for key, bs := range raw {
		if bs.Culprits == nil {
			bs.Culprits = []string{}
		}
		if !strings.HasPrefix(key, "/") {
			key = "/" + key
			if _, ok := raw[key]; ok {
				continue
			}
		}
		bs.Key = key
		snapshot[key] = bs
	}
	return snapshot
}

// Save replaces the document with snapshot. Serialization happens before the
// file is touched, so a failure leaves the previous document intact.
func (js *JSONStore) Save(ctx context.Context, snapshot Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.StateError("failed to marshal state").
			WithCause(err).
			WithContext("path", js.path).
			Build()
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	if err := os.MkdirAll(js.dataDir, 0o750); err != nil {
		return errors.FileSystemError("failed to create data directory").
			WithCause(err).
			WithContext("path", js.dataDir).
			Build()
	}
	if err := writeFileAtomic(js.path, data); err != nil {
		return errors.FileSystemError("failed to write state file").
			WithCause(err).
			WithContext("path", js.path).
			Build()
	}
	return nil
}

func (js *JSONStore) ensureFile() error {
	if err := os.MkdirAll(js.dataDir, 0o750); err != nil {
		return errors.FileSystemError("failed to create data directory").
			WithCause(err).
			WithContext("path", js.dataDir).
			Build()
	}
	if _, err := os.Stat(js.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.FileSystemError("failed to stat state file").
			WithCause(err).
			WithContext("path", js.path).
			Build()
	}
	if err := writeFileAtomic(js.path, []byte(emptyDocument)); err != nil {
		return errors.FileSystemError("failed to create state file").
			WithCause(err).
			WithContext("path", js.path).
			Build()
	}
	return nil
}

// writeFileAtomic writes data to path via a synced temporary file and rename.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}
