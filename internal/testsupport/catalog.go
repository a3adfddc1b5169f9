package testsupport

import (
	"testing"

	"singalong/internal/catalog"
	"singalong/internal/config"
)

// MustOpenCatalog opens the catalog database described by cfg and closes it
// when the test ends.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.CatalogDBPath(), cfg.SongsDir())
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
