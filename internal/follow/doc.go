// Package follow polls the content of one open log file.
//
// A Follower first renders the locally cached copy, then polls the remote
// file on a fixed tick. A poll downloads only when no download of its own is
// running and the last successful download is older than the content cycle.
// Each result passes through a logwindow.Window, which drops results
// equivalent to what is shown, and through the active include and exclude
// filters. A local copy that arrives after a remote download was applied is
// discarded.
package follow
