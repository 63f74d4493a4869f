package linefilter_test

import (
	"testing"

	"logsite/internal/linefilter"
	"logsite/internal/sites"
)

func TestFilterInCaseSensitivity(t *testing.T) {
	cases := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"timeout", "Connection TIMEOUT on port", true},
		{"timeout", "connection timeout", true},
		{"Timeout", "connection timeout", false},
		{"Timeout", "Timeout: connection refused", true},
		{"error", "connection error", false},
		{"conn refused", "conn was refused", true},
		{"conn timeout", "conn was refused", false},
		{"", "anything", true},
		{"   ", "anything", true},
	}
	for _, tc := range cases {
		if got := linefilter.FilterIn(tc.pattern, tc.text, ""); got != tc.want {
			t.Errorf("FilterIn(%q, %q) = %v, want %v", tc.pattern, tc.text, got, tc.want)
		}
	}
}

func TestFilterOutAnyToken(t *testing.T) {
	if !linefilter.FilterOut("heartbeat ping", "sent ping", "") {
		t.Fatal("expected exclusion when one token matches")
	}
	if linefilter.FilterOut("heartbeat ping", "sent pong", "") {
		t.Fatal("expected no exclusion when no token matches")
	}
	if linefilter.FilterOut("", "anything", "ERROR") {
		t.Fatal("empty exclude must not drop lines")
	}
}

func TestLevelTokensCompareLevelOnly(t *testing.T) {
	if !linefilter.FilterIn("error", "all good", "ERROR") {
		t.Fatal("expected level token to match on level code")
	}
	if linefilter.FilterIn("warn", "warn in text", "INFO") {
		t.Fatal("level token must not fall back to text matching")
	}
	if !linefilter.FilterIn("info", "no level given", "") {
		t.Fatal("lines without level count as info")
	}
	if !linefilter.FilterIn("error timeout", "read timeout", "ERR") {
		t.Fatal("expected level and pattern tokens to AND together")
	}
	if linefilter.FilterIn("error timeout", "read timeout", "WARN") {
		t.Fatal("expected level mismatch to reject")
	}
	if !linefilter.FilterOut("debug", "verbose", "DEBUG") {
		t.Fatal("expected exclude on matching level")
	}
	if linefilter.FilterOut("debug", "debug in text", "INFO") {
		t.Fatal("exclude level token must not match text")
	}
}

func TestMalformedTokensFailOpen(t *testing.T) {
	if !linefilter.FilterIn("([", "anything", "") {
		t.Fatal("malformed include token must be ignored")
	}
	if !linefilter.FilterIn("([ foo", "foo bar", "") {
		t.Fatal("valid tokens still apply next to malformed ones")
	}
	if linefilter.FilterIn("([ foo", "bar", "") {
		t.Fatal("valid token should still reject")
	}
	if linefilter.FilterOut("([", "([", "") {
		t.Fatal("malformed exclude token must never match")
	}
	if got := linefilter.Parse("ok ([ *bad").Invalid(); len(got) != 2 {
		t.Fatalf("expected 2 invalid tokens, got %v", got)
	}
}

func TestParseClassifiesTokens(t *testing.T) {
	f := linefilter.Parse("  warn   db.*slow ")
	tokens := f.Tokens()
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	level, ok := tokens[0].(linefilter.LevelToken)
	if !ok || level.Code != 'W' {
		t.Fatalf("expected warn level token, got %#v", tokens[0])
	}
	pattern, ok := tokens[1].(linefilter.PatternToken)
	if !ok || !pattern.Valid() {
		t.Fatalf("expected valid pattern token, got %#v", tokens[1])
	}
	if f.String() != "warn db.*slow" {
		t.Fatalf("unexpected normalized pattern %q", f.String())
	}
	if tok, ok := linefilter.ParseToken("error").(linefilter.LevelToken); !ok || tok.Code != 'E' {
		t.Fatalf("expected error to be a level token, got %#v", linefilter.ParseToken("error"))
	}
	if _, ok := linefilter.ParseToken("Error").(linefilter.PatternToken); !ok {
		t.Fatal("capitalized level names are patterns, not level tokens")
	}
}

func TestSetApply(t *testing.T) {
	lines := []sites.LogLine{
		{Seq: 1, Level: "INFO", Raw: "user login ok"},
		{Seq: 2, Level: "ERROR", Raw: "user login failed"},
		{Seq: 3, Level: "DEBUG", Raw: "cache hit"},
		{Seq: 4, Level: "INFO", Message: "user logout"},
	}

	set := linefilter.NewSet("user", "failed")
	got := set.Apply(lines)
	if len(got) != 2 || got[0].Seq != 1 || got[1].Seq != 4 {
		t.Fatalf("unexpected filtered lines %+v", got)
	}

	if all := linefilter.NewSet("", "").Apply(lines); len(all) != len(lines) {
		t.Fatalf("inactive set should keep every line, got %d", len(all))
	}
}
