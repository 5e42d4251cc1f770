package legacy

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ptgott/savedsync/keystore"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/recordcache"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	big      *storage.MemoryDB
	keys     *keystore.Store
	cache    *recordcache.Cache
	importer *Importer
}

func newTestEnv(t *testing.T, maxSize int64) testEnv {
	t.Helper()
	big := storage.NewMemoryDB(0)
	cache := recordcache.New(big, metrics.Nop())
	c := keystore.Config{MaxSize: maxSize}
	conf, err := c.CheckAndSetDefaults()
	require.NoError(t, err)
	keys := keystore.New(storage.NewMemoryDB(0), cache, conf, metrics.Nop())
	return testEnv{
		big:      big,
		keys:     keys,
		cache:    cache,
		importer: NewImporter(big, keys, cache, metrics.Nop()),
	}
}

func (te testEnv) putLegacy(t *testing.T, blob string) {
	t.Helper()
	require.NoError(t, te.big.Put(storage.KVEntry{Key: []byte(DefaultName), Value: []byte(blob)}))
}

func (te testEnv) legacyGone(t *testing.T) bool {
	t.Helper()
	_, err := te.big.Read([]byte(DefaultName))
	return errors.Is(err, storage.ErrNotFound)
}

func TestMigrate(t *testing.T) {
	te := newTestEnv(t, 0)
	_, err := te.keys.Write([]saved.Key{"us:existing"})
	require.NoError(t, err)

	te.putLegacy(t, `[
		{"region":"us","itemId":"abc","title":"Budget passes","sourcePublishedAt":"2024-05-01T12:00:00Z"},
		{"region":"jp","id":"def","title":"Typhoon season"},
		{"region":"jp","title":"No ID at all"}
	]`)

	n, err := te.importer.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []saved.Key{"us:abc", "jp:def", "us:existing"}, te.keys.Read())
	r, ok := te.cache.Get("jp:def")
	require.True(t, ok)
	assert.Equal(t, "Typhoon season", r.Title)
	assert.True(t, te.legacyGone(t))
}

func TestMigrateRunsOnce(t *testing.T) {
	te := newTestEnv(t, 0)
	te.putLegacy(t, `[{"region":"us","itemId":"abc","title":"Budget passes"}]`)

	n, err := te.importer.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	first := te.keys.Read()

	n, err = te.importer.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, first, te.keys.Read())
}

func TestMigrateNoOp(t *testing.T) {
	testCases := []struct {
		description string
		blob        string
	}{
		{
			description: "absent",
		},
		{
			description: "empty array",
			blob:        `[]`,
		},
		{
			description: "malformed",
			blob:        `{"not":"an array"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			te := newTestEnv(t, 0)
			if tc.blob != "" {
				te.putLegacy(t, tc.blob)
			}
			n, err := te.importer.Migrate()
			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Empty(t, te.keys.Read())
			assert.True(t, te.legacyGone(t))
		})
	}
}

// Legacy data gets no exemption from the key store budget.
func TestMigrateRespectsBudget(t *testing.T) {
	te := newTestEnv(t, 400)
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 20; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"region":"us","itemId":"item-%02d-%v","title":"Story %v"}`, i, strings.Repeat("x", 20), i)
	}
	b.WriteString("]")
	te.putLegacy(t, b.String())

	_, err := te.importer.Migrate()
	require.NoError(t, err)

	keys := te.keys.Read()
	require.NotEmpty(t, keys)
	assert.Less(t, len(keys), 20)
	// The newest legacy entry survives.
	assert.Equal(t, saved.Key("us:item-19-"+strings.Repeat("x", 20)), keys[len(keys)-1])
	// Trimmed keys don't linger in the cache.
	assert.ElementsMatch(t, keys, te.cache.Keys())
}

func TestMigrateKeepsCachedRecords(t *testing.T) {
	te := newTestEnv(t, 0)
	require.NoError(t, te.cache.Put(saved.Record{Region: "us", ItemID: "abc", Title: "Budget passes after late vote"}))

	te.putLegacy(t, `[
		{"region":"us","itemId":"abc","title":"Budget vote expected"},
		{"region":"jp","itemId":"def","title":"Typhoon season"}
	]`)

	n, err := te.importer.Migrate()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	testCases := []struct {
		key   saved.Key
		title string
	}{
		{key: "us:abc", title: "Budget passes after late vote"},
		{key: "jp:def", title: "Typhoon season"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.key), func(t *testing.T) {
			r, ok := te.cache.Get(tc.key)
			require.True(t, ok)
			assert.Equal(t, tc.title, r.Title)
		})
	}
	assert.Equal(t, []saved.Key{"us:abc", "jp:def"}, te.keys.Read())
}
