// Package tui renders a followed log file in the terminal.
//
// The view is a bubbletea program around a viewport. Follower events replace
// the viewport content; when the viewport was at the bottom before the
// update, a scroll.Anchor schedules a return to the bottom once the new
// content has settled. Readers scrolled into older lines keep their place.
//
// Keys: "/" edits the include filter, "x" the exclude filter, "m" shows more
// older lines, "r" forces a download, "G" and "g" jump to the bottom and top,
// "q" quits.
package tui
