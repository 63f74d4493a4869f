package tui

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"logsite/internal/fetch"
	"logsite/internal/follow"
	"logsite/internal/scroll"
	"logsite/internal/sites"
	"logsite/internal/testsupport"
)

func newTestModel(t *testing.T) (*Model, *scroll.Anchor, chan struct{}) {
	t.Helper()
	collab := testsupport.NewFakeCollaborator(sites.SiteConfig{Name: "alpha"})
	reg := sites.NewRegistry(collab)
	if _, err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f := follow.New(fetch.New(reg), "alpha", "app.log")
	scrolled := make(chan struct{}, 4)
	anchor := scroll.NewAnchor(scroll.ScrollerFunc(func() { scrolled <- struct{}{} }), time.Millisecond, 0)
	m := NewModel(f, anchor)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 13})
	return m, anchor, scrolled
}

func viewWith(n int) follow.View {
	log := testsupport.Lines("app.log", 1, n)
	return follow.View{Site: "alpha", File: "app.log", Lines: log.Lines, Total: n, Source: follow.SourceRemote}
}

func TestRenderLine(t *testing.T) {
	line := sites.LogLine{
		Seq:         1,
		Level:       "ERROR",
		Timestamp:   time.Date(2025, 4, 2, 13, 4, 5, 0, time.UTC),
		Source:      []string{"[main]", "Worker.java"},
		Message:     "job failed",
		Payload:     json.RawMessage(`{ "id": 7 }`),
		StackFrames: []string{"at com.acme.Job.run(Job.java:10)", "at java.lang.Thread.run(Thread.java:833)"},
	}
	out := RenderLine(line, DefaultStyles())
	for _, want := range []string{"13:04:05", "ERROR", "[main] Worker.java", "job failed", `{"id":7}`, "com.acme.Job.run", "java.lang.Thread.run"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("expected stack frames on their own lines, got %d newlines", got)
	}
}

func TestRenderLineFallsBackToRaw(t *testing.T) {
	out := RenderLine(sites.LogLine{Raw: "unparsed text"}, DefaultStyles())
	if !strings.Contains(out, "unparsed text") {
		t.Fatalf("expected raw text, got %q", out)
	}
}

func TestRenderLinePlain(t *testing.T) {
	line := sites.LogLine{Level: "error", Timestamp: time.Date(2025, 4, 2, 13, 4, 5, 0, time.UTC), Message: "boom"}
	out := RenderLine(line, PlainStyles())
	if !strings.Contains(out, "13:04:05 ERROR boom") {
		t.Fatalf("unexpected plain rendering %q", out)
	}
}

func TestIsFrameworkFrame(t *testing.T) {
	if !isFrameworkFrame("  at org.springframework.web.Servlet.service(Servlet.java:1)") {
		t.Fatal("expected spring frame to be framework")
	}
	if isFrameworkFrame("at com.acme.Billing.charge(Billing.java:42)") {
		t.Fatal("expected application frame")
	}
}

func TestRenderLinesMarkersAndDays(t *testing.T) {
	view := viewWith(2)
	view.Lines[0].Timestamp = time.Date(2025, 4, 1, 23, 59, 0, 0, time.UTC)
	view.Lines[1].Timestamp = time.Date(2025, 4, 2, 0, 1, 0, 0, time.UTC)
	view.HasMore = true
	view.Hidden = 12

	out := RenderLines(view, DefaultStyles())
	if !strings.Contains(out, "12 more lines") {
		t.Fatalf("expected more marker in %q", out)
	}
	if !strings.Contains(out, "2025-04-01") || !strings.Contains(out, "2025-04-02") {
		t.Fatalf("expected a separator per day in %q", out)
	}
}

func TestEventAtBottomSchedulesScroll(t *testing.T) {
	m, _, scrolled := newTestModel(t)

	m.Update(eventMsg{evt: follow.Event{View: viewWith(50)}})

	select {
	case <-scrolled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected anchor to scroll after new data")
	}
	m.Update(scrollBottomMsg{})
	if !m.AtBottom() {
		t.Fatal("expected viewport at bottom after scroll message")
	}
	if !strings.Contains(m.View(), "line 50") {
		t.Fatal("expected newest line visible")
	}
}

func TestEventWhileReadingKeepsPosition(t *testing.T) {
	m, anchor, scrolled := newTestModel(t)
	m.Update(eventMsg{evt: follow.Event{View: viewWith(50)}})
	<-scrolled
	m.Update(scrollBottomMsg{})

	m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if m.AtBottom() {
		t.Fatal("expected page up to leave the bottom")
	}
	offset := m.vp.YOffset

	m.Update(eventMsg{evt: follow.Event{View: viewWith(60)}})
	if anchor.Pending() {
		t.Fatal("expected no scroll scheduled for a reader above the bottom")
	}
	if m.vp.YOffset != offset {
		t.Fatalf("expected offset %d kept, got %d", offset, m.vp.YOffset)
	}
}

func TestFilterInputAppliesToFollower(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if m.mode != modeInclude {
		t.Fatal("expected include input mode")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("timeout")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.mode != modeNormal || m.include != "timeout" {
		t.Fatalf("unexpected state mode=%v include=%q", m.mode, m.include)
	}
	if got := m.view.Filters.Include.String(); got != "timeout" {
		t.Fatalf("expected follower filters updated, got %q", got)
	}
	if !strings.Contains(m.View(), "in: timeout") {
		t.Fatalf("expected filter in header: %q", m.View())
	}
}

func TestErrorEventShownInFooter(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(eventMsg{evt: follow.Event{Err: errTest("transport error: connection refused")}})
	if !strings.Contains(m.View(), "connection refused") {
		t.Fatalf("expected error in footer: %q", m.View())
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
