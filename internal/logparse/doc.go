// Package logparse turns raw log text into structured sites.Log values.
//
// Each physical line is tokenised and its leading timestamp, level and up to
// three source tokens are peeled off; the remainder is the message. Lines that
// carry neither a timestamp nor a level are folded into the previous record,
// either as stack frames or as message continuation. A trailing JSON value on
// the message becomes the line payload.
//
// Per-site transform rules rewrite or drop raw lines before parsing.
package logparse
