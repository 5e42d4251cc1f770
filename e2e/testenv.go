package e2e

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ptgott/savedsync/app"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	regions  []string // Catalog regions to populate
	numItems int      // How many items each region holds
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	*fakeBackend
	tempDirPath string
}

// startTestEnvironment spins up a fake backend and a storage directory that
// outlives each simulated session. Cleanup is registered with t.
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) *testEnvironment {
	t.Helper()
	te := &testEnvironment{
		fakeBackend: startFakeBackend(c.regions, c.numItems),
		tempDirPath: t.TempDir(),
	}
	t.Cleanup(te.close)
	return te
}

// session simulates one visit: the app is opened against the shared storage
// directory and closed (flushing BadgerDB and the cookie jar) when fn returns.
func (te *testEnvironment) session(t *testing.T, opts appConfigOptions, fn func(a *app.App)) {
	t.Helper()
	opts.BackendURL = te.server.URL
	opts.StorageDir = te.tempDirPath
	conf, err := createUserConfig(opts)
	if err != nil {
		t.Fatalf("can't create the app config: %v", err)
	}

	// Each session gets its own registry since promauto panics on duplicate
	// registration.
	a, err := app.Open(&conf, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("can't open the app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			t.Errorf("can't close the app: %v", err)
		}
	}()
	fn(a)
}
