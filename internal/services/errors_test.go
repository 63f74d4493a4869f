package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"logsite/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransport, "ftpsource", "list", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"ftpsource", "list", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetagRestoresMarkerFromText(t *testing.T) {
	original := services.Wrap(services.ErrNotFound, "backend", "fetch local log", `file "a.log" not found`, nil)
	flattened := errors.New(original.Error())
	if services.Marker(flattened) != nil {
		t.Fatal("flattened error should not carry a marker")
	}
	restored := services.Retag(flattened)
	if !errors.Is(restored, services.ErrNotFound) {
		t.Fatalf("expected not found marker after retag, got %v", restored)
	}
	if restored.Error() != original.Error() {
		t.Fatalf("retag changed message: got %q want %q", restored.Error(), original.Error())
	}

	plain := errors.New("connection reset")
	if got := services.Retag(plain); got != plain {
		t.Fatalf("expected untagged error to pass through, got %v", got)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-1")
	ctx = services.WithSite(ctx, "alpha")
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("unexpected request id %q (%v)", id, ok)
	}
	if site, ok := services.SiteFromContext(ctx); !ok || site != "alpha" {
		t.Fatalf("unexpected site %q (%v)", site, ok)
	}
	if services.WithSite(ctx, "") != ctx {
		t.Fatal("empty site should not wrap context")
	}
}
