// Package linefilter matches log lines against include and exclude patterns.
//
// A pattern is split on whitespace into tokens. A token naming a level
// (trace, debug, info, warn, error) compares the line's single-letter level
// code and nothing else. Any other token is a regular expression, matched
// case-sensitively when it contains an uppercase letter and
// case-insensitively otherwise.
//
// An include filter keeps a line only when every token matches. An exclude
// filter drops a line when any token matches. A token that does not compile
// is ignored: it never rejects a line in an include filter and never drops
// one in an exclude filter.
package linefilter
