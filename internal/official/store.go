package official

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// storedSnapshot is the on-disk form of the catalog. Only successful
// official fetches are persisted; derived sources (cache, cache_fallback,
// fallback) are computed per request and never written back.
type storedSnapshot struct {
	Items     []RateOption `json:"items"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Source    string       `json:"source"`
}

// SnapshotStore persists the latest catalog snapshot as a single JSON
// document. Writes are last-writer-wins; the temp-file-plus-rename dance
// guarantees readers never observe a partially written file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store backed by the given file path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load reads the persisted snapshot. Returns (nil, nil) when no usable
// snapshot exists: a missing, corrupt or empty file is treated the same
// way, as absence, so a bad file can never break the catalog endpoint.
func (s *SnapshotStore) Load() (*CatalogSnapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, nil
	}
	if stored.UpdatedAt.IsZero() {
		return nil, nil
	}

	items := normalizeRateOptions(stored.Items)
	if len(items) == 0 {
		return nil, nil
	}

	return &CatalogSnapshot{
		Items:     items,
		UpdatedAt: stored.UpdatedAt,
		Source:    SourceOfficial,
	}, nil
}

// Save atomically replaces the persisted snapshot.
func (s *SnapshotStore) Save(snap *CatalogSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	raw, err := json.MarshalIndent(storedSnapshot{
		Items:     snap.Items,
		UpdatedAt: snap.UpdatedAt,
		Source:    SourceOfficial,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
