package logparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"logsite/internal/services"
	"logsite/internal/sites"
)

// maxSources bounds how many leading tokens may be claimed as the line source.
const maxSources = 3

// Parser converts raw text into a sites.Log.
type Parser struct {
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock supplies the year used for timestamps that omit it.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New constructs a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads path and parses it, naming the log after the file. A missing
// file is reported as services.ErrNotFound.
func (p *Parser) ParseFile(path string, rules []sites.TransformRule) (sites.Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sites.Log{}, services.Wrap(services.ErrNotFound, "logparse", "read", filepath.Base(path), err)
		}
		return sites.Log{}, fmt.Errorf("read log: %w", err)
	}
	return p.Parse(filepath.Base(path), data, rules)
}

// Parse splits data into lines, applies the transform rules matching name and
// assembles structured records. Invalid rules are reported after the valid
// ones have been applied; the returned log still reflects the valid rules.
func (p *Parser) Parse(name string, data []byte, rules []sites.TransformRule) (sites.Log, error) {
	lines := splitLines(string(data))
	lines, ruleErr := ApplyRules(rules, name, lines)

	now := p.now()
	records := make([]sites.LogLine, 0, len(lines))
	for _, raw := range lines {
		rec := parseLine(raw, now)
		if len(records) == 0 {
			if rec.bare() {
				rec.standalone()
			}
			records = append(records, rec.line)
			continue
		}
		last := &records[len(records)-1]
		if rec.bare() || (rec.line.Timestamp.IsZero() && rec.line.Level == "" && (!last.Timestamp.IsZero() || last.Level != "")) {
			rec.foldInto(last)
			continue
		}
		records = append(records, rec.line)
	}

	for i := range records {
		records[i].Seq = int64(i + 1)
		records[i].Message, records[i].Payload = splitPayload(records[i].Message)
	}
	return sites.Log{Name: name, Lines: records}, ruleErr
}

func splitLines(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
}

type record struct {
	line sites.LogLine
}

// bare reports a line that yielded no structure at all.
func (r record) bare() bool {
	return r.line.Message == "" && len(r.line.Source) == 0 && r.line.Timestamp.IsZero() && r.line.Raw != ""
}

// standalone fills a bare first line: a stack frame stays a frame, anything
// else becomes the message.
func (r *record) standalone() {
	if isStackLine(r.line.Raw) {
		r.line.StackFrames = append(r.line.StackFrames, r.line.Raw)
		return
	}
	r.line.Message = strings.TrimSpace(r.line.Raw)
}

// foldInto attaches r to target as a stack frame or a continuation line.
func (r record) foldInto(target *sites.LogLine) {
	raw := r.line.Raw
	target.Raw += "\n" + raw
	if len(target.StackFrames) > 0 || isStackLine(raw) {
		target.StackFrames = append(target.StackFrames, raw)
		return
	}
	if target.Message == "" {
		target.Message = raw
		return
	}
	target.Message += "\n" + raw
}

var stackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[.][A-Za-z0-9]*Exception:`),
	regexp.MustCompile(`^\t+at\s`),
	regexp.MustCompile(`^\s*at\s+[\w$.<>]+\(`),
	regexp.MustCompile(`^\s*Exception in`),
	regexp.MustCompile(`^\s*Exception:`),
	regexp.MustCompile(`^\s*Traceback\s`),
	regexp.MustCompile(`^\s*[Ee]rror\s.*:`),
}

func isStackLine(raw string) bool {
	for _, rx := range stackPatterns {
		if rx.MatchString(raw) {
			return true
		}
	}
	return false
}

// parseLine peels the timestamp, level and source tokens off raw. Lines that
// start with whitespace or a closing brace are continuations and stay bare.
func parseLine(raw string, now time.Time) record {
	rec := record{line: sites.LogLine{Raw: raw}}
	if raw == "" || raw[0] == ' ' || raw[0] == '\t' || raw[0] == '}' {
		return rec
	}

	tokens := tokenize(raw)
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if isPunctuation(tok.text) {
			i++
			continue
		}
		if rec.line.Timestamp.IsZero() {
			if ts, n := matchTimestamp(tokens[i:], now); n > 0 {
				rec.line.Timestamp = ts
				i += n
				continue
			}
		}
		if rec.line.Level == "" {
			lookahead := 3
			if rec.line.Timestamp.IsZero() {
				lookahead = 1
			}
			if pos, level, ok := findLevel(tokens[i:], lookahead); ok {
				rec.line.Level = level
				for _, src := range tokens[i : i+pos] {
					if !isPunctuation(src.text) {
						rec.line.Source = append(rec.line.Source, src.text)
					}
				}
				i += pos + 1
				continue
			}
		}
		if len(rec.line.Source) < maxSources && isSource(tok.text) {
			rec.line.Source = append(rec.line.Source, tok.text)
			i++
			continue
		}
		rec.line.Message = raw[tok.start:]
		break
	}
	return rec
}

func findLevel(tokens []token, lookahead int) (int, string, bool) {
	for pos := 0; pos < lookahead && pos < len(tokens); pos++ {
		if level, ok := levelName(tokens[pos].text); ok {
			return pos, level, true
		}
	}
	return 0, "", false
}
