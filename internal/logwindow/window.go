package logwindow

import (
	"sort"

	"logsite/internal/sites"
)

const (
	// MaxWindow is the number of most recent lines shown on first load.
	MaxWindow = 5000
	// MoreIncrement is the number of older lines ShowMore reveals.
	MoreIncrement = 999
)

// InitialCursor returns the cursor for a freshly loaded log: the sequence
// number max lines from the end when the log is longer than max, otherwise
// the first line's. An empty log yields 0.
func InitialCursor(lines []sites.LogLine, max int) int64 {
	if len(lines) == 0 {
		return 0
	}
	if max > 0 && len(lines) > max {
		return lines[len(lines)-max].Seq
	}
	return lines[0].Seq
}

// MoreCursor moves cursor back by up to increment lines, stopping at the
// first line.
func MoreCursor(lines []sites.LogLine, cursor int64, increment int) int64 {
	if len(lines) == 0 {
		return cursor
	}
	idx := indexOf(lines, cursor)
	if increment > 0 && idx >= increment {
		return lines[idx-increment].Seq
	}
	return lines[0].Seq
}

// Visible returns the lines at or after cursor. The result shares storage
// with lines.
func Visible(lines []sites.LogLine, cursor int64) []sites.LogLine {
	return lines[indexOf(lines, cursor):]
}

// Equivalent reports whether a and b have the same name, the same number of
// lines and, when non-empty, identical first and last lines.
func Equivalent(a, b sites.Log) bool {
	if a.Name != b.Name || len(a.Lines) != len(b.Lines) {
		return false
	}
	if len(a.Lines) == 0 {
		return true
	}
	last := len(a.Lines) - 1
	return sameLine(a.Lines[0], b.Lines[0]) && sameLine(a.Lines[last], b.Lines[last])
}

func sameLine(a, b sites.LogLine) bool {
	return a.Seq == b.Seq && a.Raw == b.Raw && a.Message == b.Message && a.Level == b.Level
}

// indexOf returns the index of the first line with Seq >= cursor.
func indexOf(lines []sites.LogLine, cursor int64) int {
	return sort.Search(len(lines), func(i int) bool { return lines[i].Seq >= cursor })
}

// Window tracks the cursor of one open log across successive fetches.
type Window struct {
	max       int
	increment int
	log       sites.Log
	cursor    int64
	loaded    bool
}

// New returns a window with the given limits. Non-positive values fall back
// to MaxWindow and MoreIncrement.
func New(max, increment int) *Window {
	if max <= 0 {
		max = MaxWindow
	}
	if increment <= 0 {
		increment = MoreIncrement
	}
	return &Window{max: max, increment: increment}
}

// Update installs a newly fetched log. It returns false when the log is
// equivalent to the one already held, in which case nothing changes. The
// cursor is reset on the first load, when the file changes and when the file
// was truncated or rotated; otherwise earlier ShowMore calls survive.
func (w *Window) Update(log sites.Log) bool {
	if w.loaded && Equivalent(w.log, log) {
		return false
	}
	if !w.loaded || w.log.Name != log.Name || w.restarted(log) {
		w.cursor = InitialCursor(log.Lines, w.max)
	}
	w.log = log
	w.loaded = true
	return true
}

// restarted reports whether log no longer continues the held one: the
// cursor lies past its last line or its first line differs.
func (w *Window) restarted(log sites.Log) bool {
	if len(log.Lines) == 0 {
		return len(w.log.Lines) > 0
	}
	if w.cursor > log.Lines[len(log.Lines)-1].Seq {
		return true
	}
	return len(w.log.Lines) > 0 && !sameLine(w.log.Lines[0], log.Lines[0])
}

// ShowMore reveals older lines and returns the new cursor.
func (w *Window) ShowMore() int64 {
	w.cursor = MoreCursor(w.log.Lines, w.cursor, w.increment)
	return w.cursor
}

// HasMore reports whether lines older than the cursor exist.
func (w *Window) HasMore() bool {
	return len(w.log.Lines) > 0 && w.cursor > w.log.Lines[0].Seq
}

// Cursor returns the current cursor.
func (w *Window) Cursor() int64 {
	return w.cursor
}

// Loaded reports whether a log has been installed.
func (w *Window) Loaded() bool {
	return w.loaded
}

// Log returns the log currently held.
func (w *Window) Log() sites.Log {
	return w.log
}

// Lines returns the visible lines.
func (w *Window) Lines() []sites.LogLine {
	return Visible(w.log.Lines, w.cursor)
}

// Hidden returns the number of lines older than the cursor.
func (w *Window) Hidden() int {
	return indexOf(w.log.Lines, w.cursor)
}
