// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.CacheConfig{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		TTL:  24 * time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(key string) *types.CacheEntry {
	doi := "10.1000/xyz"
	return &types.CacheEntry{
		Key:       key,
		Query:     "(psoriasis[MeSH]) AND (phytotherapy[MeSH])",
		Condition: "psoriasis",
		Articles: []types.Article{
			{
				PMID:            "38111111",
				Title:           "Curcumin in plaque psoriasis",
				Authors:         []string{"Smith J", "Nguyen A"},
				Journal:         "Phytotherapy Research",
				Year:            "2021",
				Abstract:        "A randomized trial.",
				DOI:             &doi,
				MeshTerms:       []string{"Psoriasis", "Curcumin"},
				PublicationType: []string{"Randomized Controlled Trial"},
			},
		},
		TotalCount: 2417,
	}
}

func TestKeyDeterministic(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"identical", "psoriasis[MeSH]", "psoriasis[MeSH]"},
		{"case variation", "Psoriasis[MeSH]", "psoriasis[mesh]"},
		{"whitespace variation", "  psoriasis[MeSH]  ", "psoriasis[mesh]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Key(tt.a, "psoriasis", 20, 1), Key(tt.b, "psoriasis", 20, 1))
		})
	}
}

func TestKeyDistinguishesTuples(t *testing.T) {
	base := Key("q", "c", 20, 1)
	assert.NotEqual(t, base, Key("other", "c", 20, 1), "different query")
	assert.NotEqual(t, base, Key("q", "other", 20, 1), "different condition")
	assert.NotEqual(t, base, Key("q", "c", 10, 1), "different page size")
	assert.NotEqual(t, base, Key("q", "c", 20, 2), "different page")
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := Key("(psoriasis[MeSH]) AND (phytotherapy[MeSH])", "psoriasis", 20, 1)
	want := testEntry(key)
	require.NoError(t, s.Upsert(ctx, want))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Query, got.Query)
	assert.Equal(t, want.Condition, got.Condition)
	assert.Equal(t, want.TotalCount, got.TotalCount)
	assert.Equal(t, want.Articles, got.Articles)
	assert.False(t, got.Expired(time.Now()))
}

func TestStoreMissingKey(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), Key("nothing", "", 20, 1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreExpiredReadsAsMiss(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := Key("stale", "", 20, 1)
	// Freeze the clock in the past for the write, then restore it.
	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	require.NoError(t, s.Upsert(ctx, testEntry(key)))
	s.now = time.Now

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry must read identically to a missing key")
}

func TestStoreUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := Key("q", "", 20, 1)
	first := testEntry(key)
	require.NoError(t, s.Upsert(ctx, first))

	second := testEntry(key)
	second.TotalCount = 9
	second.Articles = nil
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.TotalCount)
	assert.Empty(t, got.Articles)
}

func TestStoreUpsertSetsExpiry(t *testing.T) {
	s := newTestStore(t)

	entry := testEntry(Key("q", "", 20, 1))
	require.NoError(t, s.Upsert(context.Background(), entry))

	remaining := time.Until(entry.ExpiresAt)
	assert.Greater(t, remaining, 23*time.Hour)
	assert.LessOrEqual(t, remaining, 24*time.Hour)
}

func TestStorePruneExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	require.NoError(t, s.Upsert(ctx, testEntry(Key("old-1", "", 20, 1))))
	require.NoError(t, s.Upsert(ctx, testEntry(Key("old-2", "", 20, 1))))
	s.now = time.Now
	require.NoError(t, s.Upsert(ctx, testEntry(Key("fresh", "", 20, 1))))

	n, err := s.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Get(ctx, Key("fresh", "", 20, 1))
	require.NoError(t, err)
	assert.NotNil(t, got, "fresh entry must survive pruning")
}

func TestStoreConcurrentUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := Key("contended", "", 20, 1)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			e := testEntry(key)
			e.TotalCount = n
			done <- s.Upsert(ctx, e)
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got, "last write must be readable, not corrupted")
	assert.NotEmpty(t, got.Articles)
}
