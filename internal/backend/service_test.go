package backend_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"logsite/internal/backend"
	"logsite/internal/listingcache"
	"logsite/internal/logging"
	"logsite/internal/logstore"
	"logsite/internal/services"
	"logsite/internal/sites"
	"logsite/internal/testsupport"
)

type harness struct {
	svc    *backend.Service
	dialer *testsupport.FakeDialer
	logs   *logstore.Store
	hub    *logging.StreamHub
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	dialer := testsupport.NewFakeDialer()
	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{filepath.Join(t.TempDir(), "backend.log")},
		Stream:      hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	logs := logstore.New(cfg, dialer, logger)
	svc, err := backend.New(backend.Dependencies{
		Store:    store,
		Listings: listingcache.NewCache(cfg.ListingCachePath(), logger),
		Logs:     logs,
		Dialer:   dialer,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	return harness{svc: svc, dialer: dialer, logs: logs, hub: hub}
}

func prodSite() sites.SiteConfig {
	return sites.SiteConfig{
		Name:        "prod",
		Address:     "10.0.0.5",
		Credentials: sites.Credentials{Username: "ops"},
		Transforms:  []sites.TransformRule{{Match: "heartbeat"}},
	}
}

func TestSaveRejectsInvalidTransforms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := prodSite()
	bad.Transforms = []sites.TransformRule{{Match: "(unclosed"}}
	if err := h.svc.SaveSiteConfig(ctx, bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := h.svc.SaveSiteConfig(ctx, prodSite()); err != nil {
		t.Fatalf("SaveSiteConfig: %v", err)
	}
	names, err := h.svc.ListConfiguredSites(ctx)
	if err != nil || len(names) != 1 || names[0] != "prod" {
		t.Fatalf("unexpected names %v err=%v", names, err)
	}
	got, err := h.svc.GetSiteConfig(ctx, "prod")
	if err != nil || len(got.Transforms) != 1 {
		t.Fatalf("unexpected config %+v err=%v", got, err)
	}
}

func TestRemoteListingFallsBackToCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	site := prodSite()

	local, err := h.svc.FetchLocalListing(ctx, site)
	if err != nil || !local.HasError() {
		t.Fatalf("expected local listing error before any refresh, got %+v err=%v", local, err)
	}

	h.dialer.SetFile("prod", "b.log", "x\n", time.Now())
	h.dialer.SetFile("prod", "A.log", "y\n", time.Now())
	h.dialer.SetFile("prod", "readme.txt", "z\n", time.Now())
	snap, err := h.svc.FetchRemoteListing(ctx, site)
	if err != nil {
		t.Fatalf("FetchRemoteListing: %v", err)
	}
	if snap.HasError() || len(snap.Entries) != 2 || snap.Entries[0].Name != "A.log" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	h.dialer.DialErr = services.Wrap(services.ErrTransport, "fake", "dial", "refused", nil)
	failed, err := h.svc.FetchRemoteListing(ctx, site)
	if err != nil {
		t.Fatalf("listing failures should be reported in the snapshot, got %v", err)
	}
	if !failed.HasError() || len(failed.Entries) != 2 {
		t.Fatalf("expected error with cached entries, got %+v", failed)
	}

	local, err = h.svc.FetchLocalListing(ctx, site)
	if err != nil || local.HasError() || len(local.Entries) != 2 {
		t.Fatalf("unexpected local listing %+v err=%v", local, err)
	}

	if _, err := h.svc.FetchRemoteListing(ctx, sites.SiteConfig{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unnamed site, got %v", err)
	}
}

func TestFetchRemoteAndLocalLog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	site := prodSite()
	if err := h.svc.SaveSiteConfig(ctx, site); err != nil {
		t.Fatalf("SaveSiteConfig: %v", err)
	}

	content := "2024-03-01 10:00:00 INFO started\n2024-03-01 10:00:01 DEBUG heartbeat\n2024-03-01 10:00:02 ERROR failed\n"
	h.dialer.SetFile("prod", "app.log", content, time.Now())

	if _, err := h.svc.FetchLocalLog(ctx, "prod", "app.log"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before download, got %v", err)
	}

	snap := sites.SiteSnapshot{Name: "prod", Config: site}
	log, err := h.svc.FetchRemoteLog(ctx, snap, sites.LogFileEntry{Name: "app.log", Size: int64(len(content))})
	if err != nil {
		t.Fatalf("FetchRemoteLog: %v", err)
	}
	if log.Len() != 2 || log.Lines[1].Level != "ERROR" || log.Lines[1].Seq != 2 {
		t.Fatalf("transform should drop the heartbeat line, got %+v", log.Lines)
	}

	local, err := h.svc.FetchLocalLog(ctx, "prod", "app.log")
	if err != nil {
		t.Fatalf("FetchLocalLog: %v", err)
	}
	if local.Len() != 2 || local.Name != "app.log" {
		t.Fatalf("unexpected local log %+v", local)
	}
}

func TestDeleteRemovesListingAndCopies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	site := prodSite()
	if err := h.svc.SaveSiteConfig(ctx, site); err != nil {
		t.Fatalf("SaveSiteConfig: %v", err)
	}
	h.dialer.SetFile("prod", "app.log", "2024-03-01 10:00:00 INFO up\n", time.Now())
	if _, err := h.svc.FetchRemoteListing(ctx, site); err != nil {
		t.Fatalf("FetchRemoteListing: %v", err)
	}
	if _, err := h.svc.FetchRemoteLog(ctx, sites.SiteSnapshot{Name: "prod", Config: site}, sites.LogFileEntry{Name: "app.log", Size: 27}); err != nil {
		t.Fatalf("FetchRemoteLog: %v", err)
	}

	if err := h.svc.DeleteSiteConfig(ctx, "prod"); err != nil {
		t.Fatalf("DeleteSiteConfig: %v", err)
	}
	if _, err := h.svc.GetSiteConfig(ctx, "prod"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if local, _ := h.svc.FetchLocalListing(ctx, site); !local.HasError() {
		t.Fatalf("cached listing should be gone, got %+v", local)
	}
	if _, err := h.logs.Local("prod", "app.log"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("downloaded copy should be gone, got %v", err)
	}
	if err := h.svc.DeleteSiteConfig(ctx, "prod"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEmitLogPublishesClientEvent(t *testing.T) {
	h := newHarness(t)
	ctx := services.WithRequestID(context.Background(), "req-1")

	h.svc.EmitLog(ctx, "warn", "viewer lost connection")
	h.svc.EmitLog(ctx, "info", "   ")

	events, _ := h.hub.Tail(10)
	var found *logging.LogEvent
	for i := range events {
		if events[i].Message == "viewer lost connection" {
			found = &events[i]
		}
	}
	if found == nil {
		t.Fatalf("client event not published: %+v", events)
	}
	if found.Component != "client" || found.Level != "WARN" || found.CorrelationID != "req-1" {
		t.Fatalf("unexpected event %+v", *found)
	}
	for _, evt := range events {
		if evt.Message == "" {
			t.Fatalf("blank messages should be dropped: %+v", events)
		}
	}
}
