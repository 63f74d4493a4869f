package linefilter

import (
	"regexp"
	"strings"
	"unicode"

	"logsite/internal/sites"
)

var levelCodes = map[string]byte{
	"trace": 'T',
	"debug": 'D',
	"info":  'I',
	"warn":  'W',
	"error": 'E',
}

// Token is one whitespace-separated element of a pattern.
type Token interface {
	// Match reports whether the token matches. valid is false for tokens that
	// could not be compiled.
	Match(text string, level byte) (matched, valid bool)
	String() string
}

// LevelToken matches lines by level code.
type LevelToken struct {
	Name string
	Code byte
}

func (t LevelToken) Match(_ string, level byte) (bool, bool) {
	return level == t.Code, true
}

func (t LevelToken) String() string { return t.Name }

// PatternToken matches line text with a regular expression.
type PatternToken struct {
	Source string
	re     *regexp.Regexp
}

// Valid reports whether the expression compiled.
func (t PatternToken) Valid() bool { return t.re != nil }

func (t PatternToken) Match(text string, _ byte) (bool, bool) {
	if t.re == nil {
		return false, false
	}
	return t.re.MatchString(text), true
}

func (t PatternToken) String() string { return t.Source }

// ParseToken classifies one token.
func ParseToken(token string) Token {
	if code, ok := levelCodes[token]; ok {
		return LevelToken{Name: token, Code: code}
	}
	expr := token
	if !hasUpper(token) {
		expr = "(?i)" + token
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return PatternToken{Source: token}
	}
	return PatternToken{Source: token, re: re}
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Filter is a parsed pattern.
type Filter struct {
	pattern string
	tokens  []Token
}

// Parse splits pattern on whitespace and compiles each token.
func Parse(pattern string) Filter {
	fields := strings.Fields(pattern)
	f := Filter{pattern: strings.Join(fields, " "), tokens: make([]Token, 0, len(fields))}
	for _, field := range fields {
		f.tokens = append(f.tokens, ParseToken(field))
	}
	return f
}

// Empty reports whether the filter has no tokens.
func (f Filter) Empty() bool { return len(f.tokens) == 0 }

// Tokens returns the parsed tokens.
func (f Filter) Tokens() []Token { return f.tokens }

// String returns the normalized pattern.
func (f Filter) String() string { return f.pattern }

// Invalid returns the tokens that failed to compile.
func (f Filter) Invalid() []string {
	var out []string
	for _, token := range f.tokens {
		if _, valid := token.Match("", 0); !valid {
			out = append(out, token.String())
		}
	}
	return out
}

// In reports whether every token matches. An empty filter matches all lines.
func (f Filter) In(text, level string) bool {
	code := sites.LevelCode(level)
	for _, token := range f.tokens {
		matched, valid := token.Match(text, code)
		if valid && !matched {
			return false
		}
	}
	return true
}

// Out reports whether any token matches. An empty filter matches no line.
func (f Filter) Out(text, level string) bool {
	code := sites.LevelCode(level)
	for _, token := range f.tokens {
		if matched, valid := token.Match(text, code); valid && matched {
			return true
		}
	}
	return false
}

// FilterIn parses pattern and applies In.
func FilterIn(pattern, text, level string) bool {
	return Parse(pattern).In(text, level)
}

// FilterOut parses pattern and applies Out.
func FilterOut(pattern, text, level string) bool {
	return Parse(pattern).Out(text, level)
}

// Set pairs an include and an exclude filter.
type Set struct {
	Include Filter
	Exclude Filter
}

// NewSet parses both patterns.
func NewSet(include, exclude string) Set {
	return Set{Include: Parse(include), Exclude: Parse(exclude)}
}

// Active reports whether either filter has tokens.
func (s Set) Active() bool {
	return !s.Include.Empty() || !s.Exclude.Empty()
}

// Keep reports whether a line passes both filters. Lines are matched on their
// raw text, falling back to the message.
func (s Set) Keep(line sites.LogLine) bool {
	text := line.Raw
	if text == "" {
		text = line.Message
	}
	return s.Include.In(text, line.Level) && !s.Exclude.Out(text, line.Level)
}

// Apply returns the lines that pass both filters. The input is returned as is
// when no filter is active.
func (s Set) Apply(lines []sites.LogLine) []sites.LogLine {
	if !s.Active() {
		return lines
	}
	out := make([]sites.LogLine, 0, len(lines))
	for _, line := range lines {
		if s.Keep(line) {
			out = append(out, line)
		}
	}
	return out
}
