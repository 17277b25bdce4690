package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestQuotaCheckAndIncrement(t *testing.T) {
	store, err := NewQuotaStore(t.TempDir(), 3)
	require.NoError(t, err)

	count, err := store.Check("u-1", testNow)
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 1; i <= 3; i++ {
		snap, err := store.Increment("u-1", testNow)
		require.NoError(t, err)
		assert.Equal(t, i, snap.UsageCount)
		assert.Equal(t, 3, snap.Limit)
		assert.Equal(t, "2025-06", snap.YearMonth)
	}

	count, err = store.Check("u-1", testNow)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 3, count)
}

func TestQuotaIsPerUser(t *testing.T) {
	store, err := NewQuotaStore(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = store.Increment("u-1", testNow)
	require.NoError(t, err)

	_, err = store.Check("u-1", testNow)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	count, err := store.Check("u-2", testNow)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQuotaResetsAcrossPeriods(t *testing.T) {
	store, err := NewQuotaStore(t.TempDir(), 1)
	require.NoError(t, err)

	_, err = store.Increment("u-1", testNow)
	require.NoError(t, err)
	_, err = store.Check("u-1", testNow)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// A new month starts a fresh counter; the old record stays untouched
	july := testNow.AddDate(0, 1, 0)
	count, err := store.Check("u-1", july)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQuotaPersists(t *testing.T) {
	dir := t.TempDir()

	first, err := NewQuotaStore(dir, 50)
	require.NoError(t, err)
	_, err = first.Increment("u-1", testNow)
	require.NoError(t, err)
	_, err = first.Increment("u-1", testNow)
	require.NoError(t, err)

	second, err := NewQuotaStore(dir, 50)
	require.NoError(t, err)
	count, err := second.Check("u-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestQuotaMessageFormat(t *testing.T) {
	assert.Equal(t,
		"Monthly limit exceeded. You have used 50/50 requests this month.",
		quotaMessage(50, 50))
}
