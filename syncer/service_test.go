package syncer

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/ptgott/savedsync/auth"
	"github.com/ptgott/savedsync/catalog"
	"github.com/ptgott/savedsync/keystore"
	"github.com/ptgott/savedsync/legacy"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/mocks"
	"github.com/ptgott/savedsync/recordcache"
	"github.com/ptgott/savedsync/remote"
	"github.com/ptgott/savedsync/saved"
	"github.com/ptgott/savedsync/storage"
)

// =============================================================================
// Service Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	remote      *mocks.MockSavedSet
	fetcher     *mocks.MockFetcher
	keyMedium   *storage.MemoryDB
	cacheMedium *storage.MemoryDB
	metrics     *metrics.Metrics
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.remote = mocks.NewMockSavedSet(s.ctrl)
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.keyMedium = storage.NewMemoryDB(0)
	s.cacheMedium = storage.NewMemoryDB(0)
	s.metrics = metrics.New(prometheus.NewRegistry())
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) newService(token string) *Service {
	svc, err := New(
		s.keyMedium,
		s.cacheMedium,
		s.remote,
		s.fetcher,
		auth.NewStaticToken(token),
		Config{Concurrency: 4},
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	return svc
}

// keyStore and cache give tests direct access to the same media the service
// uses.
func (s *ServiceSuite) keyStore() *keystore.Store {
	conf, _ := (&keystore.Config{}).CheckAndSetDefaults()
	return keystore.New(s.keyMedium, s.cache(), conf, metrics.Nop())
}

func (s *ServiceSuite) cache() *recordcache.Cache {
	return recordcache.New(s.cacheMedium, metrics.Nop())
}

func (s *ServiceSuite) seedKeys(keys ...saved.Key) {
	_, err := s.keyStore().Write(keys)
	s.Require().NoError(err)
}

func (s *ServiceSuite) seedRecords(records ...saved.Record) {
	s.Require().NoError(s.cache().PutMany(records))
}

func at(day int) *time.Time {
	t := time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func rec(k saved.Key, day int) saved.Record {
	r := saved.Record{Region: k.Region(), ItemID: k.ItemID(), Title: "Story " + string(k)}
	if day > 0 {
		r.SourcePublishedAt = at(day)
	}
	return r
}

func keysOf(records []saved.Record) []saved.Key {
	out := make([]saved.Key, len(records))
	for i, r := range records {
		out[i], _ = r.Key()
	}
	return out
}

// expectFetches makes the mock catalog resolve each key with rec
func (s *ServiceSuite) expectFetches(days map[saved.Key]int) {
	for k, d := range days {
		s.fetcher.EXPECT().Fetch(gomock.Any(), k).Return(rec(k, d), nil)
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil key medium returns error", func() {
		_, err := New(nil, s.cacheMedium, nil, s.fetcher, nil, Config{})
		s.Error(err)
		s.Contains(err.Error(), "key store medium is required")
	})

	s.Run("nil catalog returns error", func() {
		_, err := New(s.keyMedium, s.cacheMedium, nil, nil, nil, Config{})
		s.Error(err)
		s.Contains(err.Error(), "catalog fetcher is required")
	})

	s.Run("invalid key store config returns error", func() {
		_, err := New(s.keyMedium, s.cacheMedium, nil, s.fetcher, nil, Config{
			KeyStore: keystore.Config{MaxSize: -1},
		})
		s.Error(err)
	})
}

// =============================================================================
// Anonymous Loads
// =============================================================================

func (s *ServiceSuite) TestAnonymousLoadHydratesMissingRecords() {
	s.seedKeys("us:abc", "jp:def")
	s.seedRecords(rec("us:abc", 1))
	s.expectFetches(map[saved.Key]int{"jp:def": 2})

	got, err := s.newService("").LoadSavedItems(context.Background())
	s.Require().NoError(err)

	s.Equal([]saved.Key{"jp:def", "us:abc"}, keysOf(got))
	s.ElementsMatch([]saved.Key{"us:abc", "jp:def"}, s.cache().Keys())
}

func (s *ServiceSuite) TestLoadIsIdempotent() {
	s.seedKeys("us:a", "us:b", "us:c", "us:d")
	s.seedRecords(rec("us:c", 0))
	// Equal timestamps, so ordering must come from the tie-break
	s.expectFetches(map[saved.Key]int{"us:a": 3, "us:b": 3, "us:d": 0})

	svc := s.newService("")
	first, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	second, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal([]saved.Key{"us:a", "us:b", "us:c", "us:d"}, keysOf(first))
}

func (s *ServiceSuite) TestFailedHydrationIsRetriedNextLoad() {
	s.seedKeys("us:abc", "us:flaky")
	s.seedRecords(rec("us:abc", 1))

	gomock.InOrder(
		s.fetcher.EXPECT().Fetch(gomock.Any(), saved.Key("us:flaky")).Return(saved.Record{}, catalog.ErrUnresolvable),
		s.fetcher.EXPECT().Fetch(gomock.Any(), saved.Key("us:flaky")).Return(rec("us:flaky", 5), nil),
	)

	svc := s.newService("")
	got, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:abc"}, keysOf(got))
	// The key itself isn't lost
	s.Equal([]saved.Key{"us:abc", "us:flaky"}, s.keyStore().Read())

	got, err = svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:flaky", "us:abc"}, keysOf(got))
}

func (s *ServiceSuite) TestEmptyLoad() {
	got, err := s.newService("").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *ServiceSuite) TestMalformedKeyStoreLoadsEmpty() {
	s.Require().NoError(s.keyMedium.Put(storage.KVEntry{Key: []byte("saved_keys"), Value: []byte("%%%")}))
	got, err := s.newService("").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Empty(got)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.MalformedBlobsTotal.WithLabelValues(metrics.StoreKeys)))
}

// =============================================================================
// Authenticated Loads
// =============================================================================

func (s *ServiceSuite) TestAuthenticatedLoadImportsLocalExtras() {
	s.seedKeys("us:abc", "us:xyz")
	s.seedRecords(rec("us:abc", 1), rec("us:xyz", 2))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"us:abc"}, nil)
	s.remote.EXPECT().ImportKeys(gomock.Any(), []saved.Key{"us:xyz"}).Return([]saved.Key{"us:abc", "us:xyz"}, nil)

	got, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)

	s.ElementsMatch([]saved.Key{"us:abc", "us:xyz"}, s.keyStore().Read())
	s.Equal([]saved.Key{"us:xyz", "us:abc"}, keysOf(got))
}

func (s *ServiceSuite) TestAuthenticatedLoadPullsServerKeys() {
	s.seedKeys("us:abc")
	s.seedRecords(rec("us:abc", 1))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"jp:def", "us:abc"}, nil)
	s.expectFetches(map[saved.Key]int{"jp:def": 4})

	got, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)

	// The server-only key is appended as the newest
	s.Equal([]saved.Key{"us:abc", "jp:def"}, s.keyStore().Read())
	s.Equal([]saved.Key{"jp:def", "us:abc"}, keysOf(got))
	// Merge happens before hydration, so the new server key is cached too
	s.ElementsMatch([]saved.Key{"jp:def", "us:abc"}, s.cache().Keys())
}

// Disjoint local and server sets merge to their union.
func (s *ServiceSuite) TestDisjointMergeIsUnion() {
	s.seedKeys("us:local")
	s.seedRecords(rec("us:local", 1), rec("us:server", 2))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"us:server"}, nil)
	s.remote.EXPECT().ImportKeys(gomock.Any(), []saved.Key{"us:local"}).Return([]saved.Key{"us:server", "us:local"}, nil)

	_, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.ElementsMatch([]saved.Key{"us:local", "us:server"}, s.keyStore().Read())
}

// The server's ordering never replaces local insertion order, which decides
// what gets trimmed first.
func (s *ServiceSuite) TestMergeKeepsLocalOrder() {
	s.seedKeys("us:old", "us:new")
	s.seedRecords(rec("us:old", 1), rec("us:new", 2))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"us:new", "us:old"}, nil)

	_, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:old", "us:new"}, s.keyStore().Read())
}

func (s *ServiceSuite) TestImportResultKeepsLocalOrder() {
	s.seedKeys("us:a", "us:b", "us:c")
	s.seedRecords(rec("us:a", 1), rec("us:b", 2), rec("us:c", 3), rec("us:d", 4))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"us:d", "us:c"}, nil)
	s.remote.EXPECT().ImportKeys(gomock.Any(), []saved.Key{"us:a", "us:b"}).
		Return([]saved.Key{"us:d", "us:c", "us:b", "us:a"}, nil)

	_, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:a", "us:b", "us:c", "us:d"}, s.keyStore().Read())
}

func (s *ServiceSuite) TestListFailureFallsBackToLocal() {
	s.seedKeys("us:abc", "us:xyz")
	s.seedRecords(rec("us:abc", 1), rec("us:xyz", 2))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return(nil, remote.ErrRemoteUnavailable)
	// No import is attempted

	got, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:xyz", "us:abc"}, keysOf(got))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.RemoteFailuresTotal.WithLabelValues(metrics.OpListKeys)))
}

func (s *ServiceSuite) TestImportFailureKeepsLocalKeys() {
	s.seedKeys("us:xyz")
	s.seedRecords(rec("us:abc", 1), rec("us:xyz", 2))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return([]saved.Key{"us:abc"}, nil)
	s.remote.EXPECT().ImportKeys(gomock.Any(), []saved.Key{"us:xyz"}).Return(nil, remote.ErrRemoteUnavailable)

	got, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:xyz", "us:abc"}, s.keyStore().Read())
	s.Len(got, 2)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.RemoteFailuresTotal.WithLabelValues(metrics.OpImportKeys)))
}

// The server is authoritative for what it returns, but local keys it left
// out are kept.
func (s *ServiceSuite) TestServerRejectionKeepsLocalKey() {
	s.seedKeys("us:unknown")
	s.seedRecords(rec("us:unknown", 1))

	s.remote.EXPECT().ListKeys(gomock.Any()).Return(nil, nil)
	s.remote.EXPECT().ImportKeys(gomock.Any(), []saved.Key{"us:unknown"}).Return([]saved.Key{}, nil)

	_, err := s.newService("token").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:unknown"}, s.keyStore().Read())
}

func (s *ServiceSuite) TestNoTokenSkipsRemote() {
	s.seedKeys("us:abc")
	s.seedRecords(rec("us:abc", 1))
	// The mock fails the test on any remote call
	got, err := s.newService("").LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Len(got, 1)
}

// =============================================================================
// Legacy Migration
// =============================================================================

func (s *ServiceSuite) TestLegacyMigrationRunsOnce() {
	s.Require().NoError(s.cacheMedium.Put(storage.KVEntry{
		Key:   []byte(legacy.DefaultName),
		Value: []byte(`[{"region":"us","itemId":"abc","title":"Budget passes","sourcePublishedAt":"2024-05-01T00:00:00Z"}]`),
	}))
	s.seedKeys("jp:def")
	s.seedRecords(rec("jp:def", 3))

	svc := s.newService("")
	first, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"jp:def", "us:abc"}, keysOf(first))

	_, err = s.cacheMedium.Read([]byte(legacy.DefaultName))
	s.True(errors.Is(err, storage.ErrNotFound))

	second, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.LegacyMigrationsTotal))
}

// =============================================================================
// Toggle
// =============================================================================

func (s *ServiceSuite) TestToggleIsItsOwnInverse() {
	s.seedKeys("us:abc")
	s.seedRecords(rec("us:abc", 1))
	svc := s.newService("")
	before := s.keyStore().Read()

	res, err := svc.ToggleSaved(context.Background(), rec("jp:def", 2))
	s.Require().NoError(err)
	s.True(res.Saved)
	s.Equal([]saved.Key{"us:abc", "jp:def"}, s.keyStore().Read())
	_, cached := s.cache().Get("jp:def")
	s.True(cached)

	res, err = svc.ToggleSaved(context.Background(), rec("jp:def", 2))
	s.Require().NoError(err)
	s.False(res.Saved)
	s.Equal(before, s.keyStore().Read())
	_, cached = s.cache().Get("jp:def")
	s.False(cached)
}

// A freshly saved item loads without a catalog fetch.
func (s *ServiceSuite) TestToggledItemNeedsNoHydration() {
	svc := s.newService("")
	_, err := svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Require().NoError(err)

	got, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:abc"}, keysOf(got))
}

func (s *ServiceSuite) TestAuthenticatedToggleSyncsServer() {
	svc := s.newService("token")
	gomock.InOrder(
		s.remote.EXPECT().AddKey(gomock.Any(), saved.Key("us:abc")).Return(nil),
		s.remote.EXPECT().RemoveKey(gomock.Any(), saved.Key("us:abc")).Return(nil),
	)

	res, err := svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Require().NoError(err)
	s.True(res.Saved)
	res, err = svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Require().NoError(err)
	s.False(res.Saved)
}

func (s *ServiceSuite) TestServerFailureDoesNotBreakToggle() {
	svc := s.newService("token")
	s.remote.EXPECT().AddKey(gomock.Any(), saved.Key("us:abc")).Return(remote.ErrRemoteUnavailable)

	res, err := svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Require().NoError(err)
	s.True(res.Saved)
	s.Equal([]saved.Key{"us:abc"}, s.keyStore().Read())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.RemoteFailuresTotal.WithLabelValues(metrics.OpAddKey)))
}

func (s *ServiceSuite) TestToggleRejectsInvalidRecord() {
	_, err := s.newService("").ToggleSaved(context.Background(), saved.Record{Region: "us"})
	s.Error(err)
	s.Empty(s.keyStore().Read())
}

// A save the key store can't persist leaves nothing behind in the cache.
func (s *ServiceSuite) TestFailedSaveUncachesRecord() {
	svc, err := New(&storage.NoOpDB{}, s.cacheMedium, nil, s.fetcher, nil, Config{})
	s.Require().NoError(err)

	res, err := svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Error(err)
	s.False(res.Saved)
	s.Empty(s.cache().Keys())
}

// The key list can live in a cookie jar, as it does in production.
func (s *ServiceSuite) TestCookieBackedKeyStore() {
	origin, _ := url.Parse("https://news.example.com")
	jar, err := storage.NewCookieStore(origin, nil)
	s.Require().NoError(err)

	svc, err := New(jar, s.cacheMedium, nil, s.fetcher, nil, Config{})
	s.Require().NoError(err)

	_, err = svc.ToggleSaved(context.Background(), rec("us:abc", 1))
	s.Require().NoError(err)
	got, err := svc.LoadSavedItems(context.Background())
	s.Require().NoError(err)
	s.Equal([]saved.Key{"us:abc"}, keysOf(got))
}
