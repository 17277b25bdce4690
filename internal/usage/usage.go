// Package usage mirrors the backend's monthly quota counter for display.
// The backend owns the real count; the client only records the latest
// value it has seen and never decrements or resets it locally.
package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// MonthlyLimit is the remote strategy's per-user request cap.
const MonthlyLimit = 50

// Snapshot is the last quota state reported by the relay.
type Snapshot struct {
	UsageCount int       `json:"usageCount"`
	Limit      int       `json:"limit"`
	YearMonth  string    `json:"yearMonth"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CurrentPeriod returns the quota period key for now, e.g. "2026-08".
func CurrentPeriod(now time.Time) string {
	return now.Format("2006-01")
}

// Store persists the snapshot in the data directory.
type Store struct {
	filePath string
}

func NewStore(dataDir string) *Store {
	return &Store{filePath: filepath.Join(dataDir, "usage.json")}
}

// Load returns the saved snapshot, or nil when none has been recorded.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read usage snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage snapshot: %w", err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically so a crash mid-write can never leave
// a truncated file behind.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	snap.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage snapshot: %w", err)
	}

	if err := renameio.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write usage snapshot: %w", err)
	}
	return nil
}
