package testsupport

import (
	"context"
	"testing"

	"logsite/internal/config"
	"logsite/internal/sites"
	"logsite/internal/sitestore"
)

// MustOpenStore opens a sitestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sitestore.Store {
	t.Helper()

	store, err := sitestore.Open(cfg)
	if err != nil {
		t.Fatalf("sitestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveSite persists a site configuration for tests.
func SaveSite(t testing.TB, store *sitestore.Store, cfg sites.SiteConfig) {
	t.Helper()

	if err := store.Save(context.Background(), cfg); err != nil {
		t.Fatalf("store.Save(%s): %v", cfg.Name, err)
	}
}
