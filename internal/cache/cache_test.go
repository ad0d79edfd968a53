package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperguessr/paper-guess-service/internal/domain"
)

func newTestCache(t *testing.T, maxSize int) *PaperCache {
	t.Helper()
	return New(Config{
		Path:    filepath.Join(t.TempDir(), "cache.json"),
		MaxSize: maxSize,
	}, nil, zerolog.Nop())
}

func testRecord(year, seq int) *domain.PaperRecord {
	key := domain.PaperKey{Year: year, Sequence: seq}
	return &domain.PaperRecord{
		Key:       key,
		Year:      year,
		Sequence:  seq,
		Title:     fmt.Sprintf("Paper %s", key),
		Image:     []byte{0x89, 0x50, 0x4e, 0x47},
		CreatedAt: time.Now().UTC(),
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, 10)
	rec := testRecord(2021, 42)

	require.NoError(t, c.Put(rec.Key.CacheKey(), rec))

	got := c.Get("2021_0042")
	require.NotNil(t, got)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("2021_0042"))
	assert.Nil(t, c.Get("2021_0001"))
}

func TestPut_RejectsIncompleteRecords(t *testing.T) {
	c := newTestCache(t, 10)

	noTitle := testRecord(2020, 1)
	noTitle.Title = ""
	assert.Error(t, c.Put(noTitle.Key.CacheKey(), noTitle))

	noImage := testRecord(2020, 2)
	noImage.Image = nil
	assert.Error(t, c.Put(noImage.Key.CacheKey(), noImage))

	assert.Zero(t, c.Len())
}

func TestGet_ReturnsACopy(t *testing.T) {
	c := newTestCache(t, 10)
	rec := testRecord(2019, 7)
	require.NoError(t, c.Put(rec.Key.CacheKey(), rec))

	got := c.Get("2019_0007")
	got.CitationCount = 999

	assert.Zero(t, c.Get("2019_0007").CitationCount,
		"mutating a returned record must not affect the cached one")
}

func TestPatchCitations(t *testing.T) {
	c := newTestCache(t, 10)
	rec := testRecord(2018, 3)
	require.NoError(t, c.Put(rec.Key.CacheKey(), rec))

	c.PatchCitations("2018_0003", 25)
	assert.Equal(t, 25, c.Get("2018_0003").CitationCount)

	// A later lookup must never downgrade or overwrite the patched value.
	c.PatchCitations("2018_0003", 7)
	assert.Equal(t, 25, c.Get("2018_0003").CitationCount)

	// Zero and negative counts are not upgrades.
	other := testRecord(2018, 4)
	require.NoError(t, c.Put(other.Key.CacheKey(), other))
	c.PatchCitations("2018_0004", 0)
	c.PatchCitations("2018_0004", -5)
	assert.Zero(t, c.Get("2018_0004").CitationCount)

	// Patching a missing key is a no-op.
	c.PatchCitations("1999_0001", 10)
}

func TestSample(t *testing.T) {
	c := newTestCache(t, 10)

	assert.Nil(t, c.Sample(), "sampling an empty cache returns nil")

	seen := make(map[string]bool)
	for seq := 1; seq <= 5; seq++ {
		rec := testRecord(2022, seq)
		require.NoError(t, c.Put(rec.Key.CacheKey(), rec))
	}
	for i := 0; i < 200; i++ {
		rec := c.Sample()
		require.NotNil(t, rec)
		seen[rec.Key.CacheKey()] = true
	}

	assert.Len(t, seen, 5, "repeated sampling should reach every record")
}

func TestPersistAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(Config{Path: path, MaxSize: 10}, nil, zerolog.Nop())

	rec := testRecord(2021, 42)
	rec.DOI = "10.1007/s00145-020-09368-7"
	rec.CitationCount = 13
	require.NoError(t, c.Put(rec.Key.CacheKey(), rec))
	c.Persist()

	restored := New(Config{Path: path, MaxSize: 10}, nil, zerolog.Nop())
	restored.Load()

	got := restored.Get("2021_0042")
	require.NotNil(t, got)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.DOI, got.DOI)
	assert.Equal(t, 13, got.CitationCount)
	assert.Equal(t, rec.Image, got.Image)
	assert.Equal(t, domain.PaperKey{Year: 2021, Sequence: 42}, got.Key,
		"the key must be rebuilt from the persisted year and sequence")
}

func TestPersist_TrimsToMaxSizeNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := New(Config{Path: path, MaxSize: 3}, nil, zerolog.Nop())

	base := time.Now().UTC()
	for seq := 1; seq <= 5; seq++ {
		rec := testRecord(2020, seq)
		rec.CreatedAt = base.Add(time.Duration(seq) * time.Minute)
		require.NoError(t, c.Put(rec.Key.CacheKey(), rec))
	}
	c.Persist()

	restored := New(Config{Path: path, MaxSize: 3}, nil, zerolog.Nop())
	restored.Load()

	assert.Equal(t, 3, restored.Len())
	assert.False(t, restored.Has("2020_0001"))
	assert.False(t, restored.Has("2020_0002"))
	assert.True(t, restored.Has("2020_0003"))
	assert.True(t, restored.Has("2020_0004"))
	assert.True(t, restored.Has("2020_0005"))
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	c := New(Config{Path: filepath.Join(t.TempDir(), "nope.json"), MaxSize: 10}, nil, zerolog.Nop())
	c.Load()
	assert.Zero(t, c.Len())
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := New(Config{Path: path, MaxSize: 10}, nil, zerolog.Nop())
	c.Load()
	assert.Zero(t, c.Len())
}

func TestLoad_DropsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	stored := map[string]*domain.PaperRecord{
		"2020_0001": testRecord(2020, 1),
		"2020_0002": {Year: 2020, Sequence: 2, Title: "no image"},
	}
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	c := New(Config{Path: path, MaxSize: 10}, nil, zerolog.Nop())
	c.Load()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("2020_0001"))
	assert.False(t, c.Has("2020_0002"))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, 2000, cfg.MaxSize)
	assert.NotEmpty(t, cfg.Path)
}
