package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// usageSnapshot mirrors the quota state back to clients after each
// successful extraction.
type usageSnapshot struct {
	UsageCount int    `json:"usageCount"`
	Limit      int    `json:"limit"`
	YearMonth  string `json:"yearMonth"`
}

// QuotaStore counts remote extractions per user and calendar month. One
// record per (user, period), created on first use, incremented per
// successful extraction, never decremented. Counts are persisted to a
// single JSON file with atomic replace.
type QuotaStore struct {
	mu       sync.Mutex
	filePath string
	limit    int
	counts   map[string]int
}

func NewQuotaStore(dataDir string, limit int) (*QuotaStore, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &QuotaStore{
		filePath: filepath.Join(dataDir, "quota.json"),
		limit:    limit,
		counts:   make(map[string]int),
	}

	data, err := os.ReadFile(store.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read quota file: %w", err)
	}
	if err := json.Unmarshal(data, &store.counts); err != nil {
		return nil, fmt.Errorf("corrupt quota file: %w", err)
	}
	return store, nil
}

// Check reports the user's current count for the period and whether the
// limit is already reached.
func (q *QuotaStore) Check(userID string, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := q.counts[quotaKey(userID, now)]
	if count >= q.limit {
		return count, ErrQuotaExceeded
	}
	return count, nil
}

// Increment records one successful extraction and persists the new count.
func (q *QuotaStore) Increment(userID string, now time.Time) (*usageSnapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := quotaKey(userID, now)
	q.counts[key]++

	if err := q.persist(); err != nil {
		// Roll back so a persistence outage never burns quota
		q.counts[key]--
		return nil, err
	}

	return &usageSnapshot{
		UsageCount: q.counts[key],
		Limit:      q.limit,
		YearMonth:  periodKey(now),
	}, nil
}

// Limit returns the configured monthly cap.
func (q *QuotaStore) Limit() int {
	return q.limit
}

// persist assumes the lock is held.
func (q *QuotaStore) persist() error {
	data, err := json.MarshalIndent(q.counts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal quota counts: %w", err)
	}
	if err := renameio.WriteFile(q.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write quota file: %w", err)
	}
	return nil
}

func quotaKey(userID string, now time.Time) string {
	return userID + ":" + periodKey(now)
}

func periodKey(now time.Time) string {
	return now.Format("2006-01")
}

// quotaMessage is the exact string quota-limited clients are shown and
// classify on. Do not reword it.
func quotaMessage(count, limit int) string {
	return fmt.Sprintf("Monthly limit exceeded. You have used %d/%d requests this month.", count, limit)
}
