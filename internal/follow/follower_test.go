package follow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"logsite/internal/fetch"
	"logsite/internal/follow"
	"logsite/internal/sites"
	"logsite/internal/testsupport"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFollower(t *testing.T, collab *testsupport.FakeCollaborator, opts ...follow.Option) (*follow.Follower, *clock) {
	t.Helper()
	reg := sites.NewRegistry(collab)
	if _, err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	coord := fetch.New(reg)
	if _, err := coord.FetchListing(context.Background(), "alpha"); err != nil {
		t.Fatalf("FetchListing: %v", err)
	}
	c := &clock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	opts = append([]follow.Option{follow.WithClock(c.Now)}, opts...)
	return follow.New(coord, "alpha", "app.log", opts...), c
}

func seeded() *testsupport.FakeCollaborator {
	collab := testsupport.NewFakeCollaborator(sites.SiteConfig{Name: "alpha"})
	collab.SetListing("alpha", sites.LogFileEntry{Name: "app.log"})
	return collab
}

func drain(f *follow.Follower) []follow.Event {
	var out []follow.Event
	for {
		select {
		case evt := <-f.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func TestPollRespectsContentCycle(t *testing.T) {
	collab := seeded()
	collab.SetRemoteLog("alpha", testsupport.Lines("app.log", 1, 10))
	f, c := newFollower(t, collab)
	ctx := context.Background()

	if !f.Poll(ctx) {
		t.Fatal("expected first poll to download")
	}
	c.Advance(39 * time.Second)
	if f.Poll(ctx) {
		t.Fatal("expected no download inside the content cycle")
	}
	c.Advance(time.Second)
	if !f.Poll(ctx) {
		t.Fatal("expected download once the cycle elapsed")
	}
	if got := collab.Calls("FetchRemoteLog"); got != 2 {
		t.Fatalf("expected 2 downloads, got %d", got)
	}

	events := drain(f)
	if len(events) != 1 {
		t.Fatalf("expected one applied event (second result is equivalent), got %d", len(events))
	}
	view := events[0].View
	if view.Source != follow.SourceRemote || view.Total != 10 || len(view.Lines) != 10 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestPollFailureReportsAndBacksOff(t *testing.T) {
	collab := seeded()
	collab.RemoteFn = func(context.Context, sites.SiteSnapshot, sites.LogFileEntry) (sites.Log, error) {
		return sites.Log{}, errors.New("connection reset")
	}
	f, c := newFollower(t, collab)
	ctx := context.Background()

	f.Poll(ctx)
	events := drain(f)
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected one error event, got %+v", events)
	}
	c.Advance(time.Second)
	if f.Poll(ctx) {
		t.Fatal("expected failed download to wait for the cycle")
	}
	f.Refresh()
	if !f.Poll(ctx) {
		t.Fatal("expected Refresh to allow an immediate retry")
	}
}

func TestLoadLocalThenRemote(t *testing.T) {
	collab := seeded()
	collab.SetLocalLog("alpha", testsupport.Lines("app.log", 1, 3))
	collab.SetRemoteLog("alpha", testsupport.Lines("app.log", 1, 6))
	f, _ := newFollower(t, collab)
	ctx := context.Background()

	f.LoadLocal(ctx)
	f.Poll(ctx)

	events := drain(f)
	if len(events) != 2 {
		t.Fatalf("expected local and remote events, got %d", len(events))
	}
	if events[0].View.Source != follow.SourceLocal || events[0].View.Total != 3 {
		t.Fatalf("unexpected local view %+v", events[0].View)
	}
	if events[1].View.Source != follow.SourceRemote || events[1].View.Total != 6 {
		t.Fatalf("unexpected remote view %+v", events[1].View)
	}
}

func TestLocalIgnoredAfterRemote(t *testing.T) {
	collab := seeded()
	collab.SetLocalLog("alpha", testsupport.Lines("app.log", 1, 3))
	collab.SetRemoteLog("alpha", testsupport.Lines("app.log", 1, 6))
	f, _ := newFollower(t, collab)
	ctx := context.Background()

	f.Poll(ctx)
	f.LoadLocal(ctx)

	events := drain(f)
	if len(events) != 1 || events[0].View.Source != follow.SourceRemote {
		t.Fatalf("expected only the remote event, got %+v", events)
	}
	if view := f.View(); view.Total != 6 {
		t.Fatalf("local copy overwrote newer content: %+v", view)
	}
}

func TestShowMoreAndFilters(t *testing.T) {
	collab := seeded()
	log := testsupport.Lines("app.log", 1, 30)
	log.Lines[29].Level = "ERROR"
	collab.SetRemoteLog("alpha", log)
	f, _ := newFollower(t, collab, follow.WithWindow(20, 5))
	ctx := context.Background()
	f.Poll(ctx)

	view := f.View()
	if len(view.Lines) != 20 || view.Hidden != 10 || !view.HasMore {
		t.Fatalf("unexpected initial view lines=%d hidden=%d", len(view.Lines), view.Hidden)
	}
	view = f.ShowMore()
	if len(view.Lines) != 25 || view.Cursor != 6 {
		t.Fatalf("unexpected view after ShowMore lines=%d cursor=%d", len(view.Lines), view.Cursor)
	}

	view = f.SetFilters("error", "")
	if len(view.Lines) != 1 || view.Lines[0].Seq != 30 {
		t.Fatalf("expected only the error line, got %+v", view.Lines)
	}
	view = f.SetFilters("", "line")
	if len(view.Lines) != 0 {
		t.Fatalf("expected every line excluded, got %d", len(view.Lines))
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	collab := seeded()
	collab.SetRemoteLog("alpha", testsupport.Lines("app.log", 1, 4))
	f, _ := newFollower(t, collab, follow.WithPolling(5*time.Millisecond, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	select {
	case evt := <-f.Events():
		if evt.Err != nil || evt.View.Total != 4 {
			t.Fatalf("unexpected first event %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event from Run")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if got := collab.Calls("FetchRemoteLog"); got != 1 {
		t.Fatalf("expected a single download within the cycle, got %d", got)
	}
}
