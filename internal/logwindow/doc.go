// Package logwindow keeps a bounded view over a log's lines.
//
// The window shows every line whose sequence number is at or above a cursor.
// On first load the cursor sits MaxWindow lines from the end so only the most
// recent lines are shown. ShowMore moves the cursor back a fixed batch of
// lines toward the start of the log.
//
// Equivalent is a deliberately weak comparison: two logs are equivalent when
// they share a name, a length and the content of their first and last lines.
// Interior-only edits of equal length are not detected. Callers use it to skip
// redundant re-renders of large logs in constant time.
package logwindow
