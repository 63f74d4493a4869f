package logstream

import (
	"context"
	"errors"
	"strings"

	"logsite/internal/ipc"
	"logsite/internal/logging"
)

const followWaitMillis = 1000

// EventSource captures the daemon events RPC.
type EventSource interface {
	Events(ctx context.Context, req ipc.EventsRequest) (*ipc.EventsResponse, error)
}

// Filters narrows the streamed events. Empty fields match everything.
type Filters struct {
	Component     string
	Site          string
	CorrelationID string
	Level         string
	Search        string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.Site) == "" &&
		strings.TrimSpace(f.CorrelationID) == "" &&
		strings.TrimSpace(f.Level) == "" &&
		strings.TrimSpace(f.Search) == ""
}

// Match reports whether evt passes every non-empty filter. Level is a minimum.
func (f Filters) Match(evt logging.LogEvent) bool {
	if f.empty() {
		return true
	}
	if c := strings.TrimSpace(f.Component); c != "" && !strings.EqualFold(c, evt.Component) {
		return false
	}
	if s := strings.TrimSpace(f.Site); s != "" && s != evt.Site {
		return false
	}
	if id := strings.TrimSpace(f.CorrelationID); id != "" && id != evt.CorrelationID {
		return false
	}
	if lvl := strings.TrimSpace(f.Level); lvl != "" && logging.ParseLevel(evt.Level) < logging.ParseLevel(lvl) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" && !strings.Contains(strings.ToLower(evt.Message), strings.ToLower(q)) {
		return false
	}
	return true
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream prints the most recent Lines events and, when following, keeps
// long-polling for new ones until ctx ends. It returns true when at least one
// event was emitted.
func Stream(ctx context.Context, source EventSource, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	if source == nil {
		return false, errors.New("event source is required")
	}
	limit := opts.Lines
	if limit <= 0 {
		limit = 200
	}

	req := ipc.EventsRequest{Limit: limit, Tail: true}
	printed := false
	for {
		resp, err := source.Events(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if !opts.Filters.Match(evt) {
				continue
			}
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		if ctx.Err() != nil {
			return printed, nil
		}
		req = ipc.EventsRequest{
			Since:      resp.Next,
			Limit:      200,
			Follow:     true,
			WaitMillis: followWaitMillis,
		}
	}
}
