package testsupport

import (
	"testing"

	"bindery/internal/artifacts"
	"bindery/internal/catalog"
	"bindery/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenArtifacts opens an artifacts.Store for tests and registers cleanup.
func MustOpenArtifacts(t testing.TB, cfg *config.Config) *artifacts.Store {
	t.Helper()

	store, err := artifacts.Open(cfg)
	if err != nil {
		t.Fatalf("artifacts.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
