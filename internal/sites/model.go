package sites

import (
	"encoding/json"
	"strings"
	"time"
)

// Credentials authenticate against a site's file source.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// TransformRule rewrites raw lines of matching files before parsing.
type TransformRule struct {
	Filenames string `json:"filenames"`
	Match     string `json:"match"`
	Find      string `json:"find,omitempty"`
	Replace   string `json:"replace,omitempty"`
}

// SiteConfig identifies a remote log source. Name is the cache key and never
// changes once an entry exists.
type SiteConfig struct {
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Credentials Credentials     `json:"credentials"`
	Transforms  []TransformRule `json:"transforms,omitempty"`
}

// LogFileEntry describes one remote file without its content.
type LogFileEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SiteSnapshot is the result of one listing refresh. When Error is set the
// refresh failed and Entries holds the last successful listing, if any.
type SiteSnapshot struct {
	Name    string         `json:"name"`
	Config  SiteConfig     `json:"config"`
	Entries []LogFileEntry `json:"entries,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// HasError reports whether the last listing refresh failed.
func (s SiteSnapshot) HasError() bool {
	return strings.TrimSpace(s.Error) != ""
}

// Lookup returns the listed entry with the given file name.
func (s SiteSnapshot) Lookup(file string) (LogFileEntry, bool) {
	for _, entry := range s.Entries {
		if entry.Name == file {
			return entry, true
		}
	}
	return LogFileEntry{}, false
}

// LogLine is one structured line. Seq is strictly increasing within a Log.
type LogLine struct {
	Seq         int64           `json:"seq"`
	Level       string          `json:"level,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitzero"`
	Source      []string        `json:"source,omitempty"`
	Message     string          `json:"message"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	StackFrames []string        `json:"stack_frames,omitempty"`
	Raw         string          `json:"raw"`
}

// LevelCode maps the line level to its single-letter code: the first letter
// uppercased, or 'I' when the line has no level.
func (l LogLine) LevelCode() byte {
	return LevelCode(l.Level)
}

// LevelCode returns the single-letter code for a level name.
func LevelCode(level string) byte {
	level = strings.TrimSpace(level)
	if level == "" {
		return 'I'
	}
	c := level[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c
}

// Log is a full or partial materialization of one file's content.
type Log struct {
	Name  string    `json:"name"`
	Lines []LogLine `json:"lines"`
}

// Len returns the number of lines held.
func (l Log) Len() int {
	return len(l.Lines)
}
