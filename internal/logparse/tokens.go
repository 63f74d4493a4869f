package logparse

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type token struct {
	text  string
	start int
}

// tokenize splits line on whitespace, remembering where each token starts so
// the message can be sliced from the original text.
func tokenize(line string) []token {
	var (
		tokens []token
		start  = -1
	)
	for i, r := range line {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{text: line[start:i], start: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: line[start:], start: start})
	}
	return tokens
}

func joinTokens(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = tok.text
	}
	return strings.Join(parts, " ")
}

// isPunctuation reports single-character separators such as "-" or "|".
func isPunctuation(text string) bool {
	r, size := utf8.DecodeRuneInString(text)
	if size != len(text) {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

type timestampLayout struct {
	layout string
	tokens int
}

var timestampLayouts = []timestampLayout{
	{"2006-01-02 15:04:05", 2},
	{"2006-01-02T15:04:05Z0700", 1},
	{time.RFC3339, 1},
	{"2006-01-02T15:04:05", 1},
	{time.RFC1123Z, 6},
	{time.RFC1123, 6},
	{time.RFC850, 4},
	{time.RFC822Z, 5},
	{time.RFC822, 5},
	{time.RubyDate, 6},
	{time.UnixDate, 6},
	{time.ANSIC, 5},
	{"02/Jan/2006:15:04:05 -0700", 2},
	{"02/Jan/2006 15:04:05", 2},
	{"02/Jan/2006:15:04:05", 1},
	{"01/02/2006, 15:04:05", 2},
	{"02 Jan 2006 15:04:05", 4},
	{"2006 Jan 02 15:04:05", 4},
	{"Jan _2 15:04:05", 3},
	{"2006-01-02-15.04.05Z07:00", 1},
	{"2006-01-02-15.04.05Z0700", 1},
	{"2006-01-02-15.04.05", 1},
}

// matchTimestamp tries every known layout against the leading tokens and
// returns the parsed time and the number of tokens it consumed. Layouts
// without a year are placed in the year of now.
func matchTimestamp(tokens []token, now time.Time) (time.Time, int) {
	for _, candidate := range timestampLayouts {
		if len(tokens) < candidate.tokens {
			continue
		}
		text := joinTokens(tokens[:candidate.tokens])
		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			text = text[1 : len(text)-1]
		}
		ts, err := time.Parse(candidate.layout, text)
		if err != nil {
			continue
		}
		if ts.Year() < 1900 {
			ts = time.Date(now.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), ts.Location())
		}
		return ts, candidate.tokens
	}
	return time.Time{}, 0
}

var levelTokens = map[string]struct{}{
	"ERROR": {},
	"WARN":  {},
	"DEBUG": {},
	"INFO":  {},
	"TRACE": {},
	"INF":   {},
	"ERR":   {},
}

// levelName returns the level named by text, accepting a bracketed form.
func levelName(text string) (string, bool) {
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") && len(text) > 2 {
		text = text[1 : len(text)-1]
	}
	if _, ok := levelTokens[text]; ok {
		return text, true
	}
	return "", false
}

var sourceSuffixes = []string{".py", ".java", ".js"}

// isSource recognises tokens that name where a line came from: addresses,
// script or class files, dotted package names, bracketed thread names and
// plain numbers such as a pid.
func isSource(text string) bool {
	if isIPv4(text) {
		return true
	}
	for _, suffix := range sourceSuffixes {
		if strings.HasSuffix(text, suffix) {
			return true
		}
	}
	if dots := strings.Count(text, "."); dots > 2 && dots < 5 {
		return true
	}
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") && !strings.Contains(text, `"`) {
		return true
	}
	return isDigits(text)
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}

func isIPv4(text string) bool {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if len(part) > 3 || !isDigits(part) {
			return false
		}
	}
	return true
}
