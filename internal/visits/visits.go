// Package visits implements the site's visit counter.
//
// A visit is one fingerprint (client IP + user agent) seen at most once per
// dedupe window; repeat hits inside the window refresh the fingerprint but
// do not increment the total. State lives in a single JSON file.
package visits

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDedupeWindow matches the original deployment's 12 hours.
const DefaultDedupeWindow = 12 * time.Hour

const maxUserAgentLen = 512

// Stats is the caller-facing outcome of recording a visit.
type Stats struct {
	TotalVisits  int       `json:"totalVisits"`
	UpdatedAt    time.Time `json:"updatedAt"`
	CountedVisit bool      `json:"countedVisit"`
}

// fileState is the on-disk shape. RecentVisitors maps fingerprint to the
// unix-milli timestamp of the last hit.
type fileState struct {
	Total          int              `json:"total"`
	UpdatedAt      *time.Time       `json:"updatedAt"`
	RecentVisitors map[string]int64 `json:"recentVisitors"`
}

// Counter records deduplicated visits. All file access is serialized by
// the mutex; concurrent requests see a consistent read-modify-write.
type Counter struct {
	mu     sync.Mutex
	path   string
	window time.Duration
	log    *zap.Logger
}

// NewCounter creates a counter backed by the given file. A zero window
// selects DefaultDedupeWindow.
func NewCounter(path string, window time.Duration, log *zap.Logger) *Counter {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Counter{path: path, window: window, log: log.Named("visits")}
}

// Fingerprint derives the anonymous visitor identity from IP and user
// agent. Neither value is stored in the clear.
func Fingerprint(ip, userAgent string) string {
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// Record registers a hit for the fingerprint and returns updated stats.
func (c *Counter) Record(fingerprint string) (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	state := c.load()

	// Drop fingerprints that fell out of the window.
	recent := make(map[string]int64, len(state.RecentVisitors))
	for fp, stamp := range state.RecentVisitors {
		if now.Sub(time.UnixMilli(stamp)) < c.window {
			recent[fp] = stamp
		}
	}

	_, seen := recent[fingerprint]
	counted := !seen
	if counted {
		state.Total++
	}
	recent[fingerprint] = now.UnixMilli()

	state.UpdatedAt = &now
	state.RecentVisitors = recent

	if err := c.save(state); err != nil {
		return nil, err
	}

	return &Stats{
		TotalVisits:  state.Total,
		UpdatedAt:    now,
		CountedVisit: counted,
	}, nil
}

// load reads the state file, treating a missing or corrupt file as empty
// so the counter can never wedge the endpoint.
func (c *Counter) load() *fileState {
	empty := &fileState{RecentVisitors: map[string]int64{}}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warn("visits state read failed", zap.Error(err))
		}
		return empty
	}

	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		c.log.Warn("visits state corrupt, resetting", zap.Error(err))
		return empty
	}
	if state.Total < 0 {
		state.Total = 0
	}
	if state.RecentVisitors == nil {
		state.RecentVisitors = map[string]int64{}
	}
	return &state
}

func (c *Counter) save(state *fileState) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal visits state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".visits-*.json")
	if err != nil {
		return fmt.Errorf("create temp visits file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write visits state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close visits state: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace visits state: %w", err)
	}
	return nil
}
