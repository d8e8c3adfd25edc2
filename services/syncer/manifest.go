package syncer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const manifestVersion = 1

// Manifest is the durable store of first-seen timestamps, the only state
// that survives across runs. A (collection, asset) entry is write-once: once
// recorded, the first-seen timestamp never changes, which keeps retention
// age immune to upstream timestamp rewrites.
type Manifest struct {
	mu          sync.Mutex
	path        string
	version     int
	collections map[string]map[string]time.Time
}

type manifestFile struct {
	Version     int                             `json:"version"`
	Collections map[string]map[string]time.Time `json:"collections"`
}

// LoadManifest reads the manifest at path. An absent, unreadable, or corrupt
// file yields an empty manifest together with the underlying error so the
// caller can log it; missing history is never fatal.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{
		path:        path,
		version:     manifestVersion,
		collections: make(map[string]map[string]time.Time),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, fmt.Errorf("read manifest: %w", err)
	}

	var file manifestFile
	if err := json.Unmarshal(data, &file); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	if file.Collections != nil {
		m.collections = file.Collections
	}

	return m, nil
}

// Get returns the recorded first-seen timestamp for the given identity.
func (m *Manifest) Get(collection, assetID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.collections[collection]
	if !ok {
		return time.Time{}, false
	}
	firstSeen, ok := entries[assetID]
	return firstSeen, ok
}

// Touch records now as the first-seen timestamp for the given identity if it
// has none, and returns the recorded value either way. Calling it again with
// a later now is a no-op, which is what makes repeated runs idempotent with
// respect to age.
func (m *Manifest) Touch(collection, assetID string, now time.Time) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, ok := m.collections[collection]
	if !ok {
		entries = make(map[string]time.Time)
		m.collections[collection] = entries
	}
	if firstSeen, ok := entries[assetID]; ok {
		return firstSeen
	}

	firstSeen := now.UTC()
	entries[assetID] = firstSeen
	return firstSeen
}

// Len reports the total number of recorded identities.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, entries := range m.collections {
		total += len(entries)
	}
	return total
}

// Save writes the manifest to its path atomically: the full document is
// written to a temporary file in the same directory and renamed over the
// destination, so a crash mid-write never corrupts committed history.
func (m *Manifest) Save() error {
	m.mu.Lock()
	file := manifestFile{
		Version:     m.version,
		Collections: m.collections,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	return writeFileAtomic(m.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}
