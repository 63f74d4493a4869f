// Package scroll keeps a follow view pinned to the newest line.
package scroll

import (
	"sync"
	"time"
)

const (
	// BottomTolerance is how far from the true bottom a viewport may be and
	// still count as at the bottom.
	BottomTolerance = 5
	// SettleDelay is the wait between new data arriving and the scroll back to
	// the bottom.
	SettleDelay = 500 * time.Millisecond
)

// Metrics describes a viewport. Units are whatever the view measures in
// (pixels, rows).
type Metrics struct {
	ScrollTop    int
	ClientHeight int
	ScrollHeight int
}

// IsAtBottom reports whether the viewport is within tolerance of the bottom.
// Content shorter than the viewport is always at the bottom.
func IsAtBottom(m Metrics, tolerance int) bool {
	return m.ScrollHeight-(m.ScrollTop+m.ClientHeight) <= tolerance
}

// Scroller moves a view to its bottom.
type Scroller interface {
	ScrollToBottom()
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func()

func (f ScrollerFunc) ScrollToBottom() { f() }

// Anchor schedules a deferred scroll to the bottom after new data when the
// viewer was at the bottom before it arrived. Viewers reading older content
// are left where they are.
type Anchor struct {
	scroller  Scroller
	delay     time.Duration
	tolerance int

	mu      sync.Mutex
	pending *time.Timer
}

// NewAnchor returns an anchor driving scroller. Non-positive delay or
// tolerance fall back to the defaults.
func NewAnchor(scroller Scroller, delay time.Duration, tolerance int) *Anchor {
	if delay <= 0 {
		delay = SettleDelay
	}
	if tolerance <= 0 {
		tolerance = BottomTolerance
	}
	return &Anchor{scroller: scroller, delay: delay, tolerance: tolerance}
}

// AtBottom applies IsAtBottom with the anchor's tolerance.
func (a *Anchor) AtBottom(m Metrics) bool {
	return IsAtBottom(m, a.tolerance)
}

// OnNewDataSettled is called after new lines were appended. When wasAtBottom
// is true a scroll to the bottom runs after the settle delay; a pending scroll
// from an earlier call is replaced. It reports whether a scroll was scheduled.
func (a *Anchor) OnNewDataSettled(wasAtBottom bool) bool {
	if !wasAtBottom {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		current := a.pending == timer
		if current {
			a.pending = nil
		}
		a.mu.Unlock()
		if current {
			a.scroller.ScrollToBottom()
		}
	})
	a.pending = timer
	return true
}

// Pending reports whether a scroll is scheduled.
func (a *Anchor) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Cancel drops a scheduled scroll, e.g. when the user scrolls away.
func (a *Anchor) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
}
