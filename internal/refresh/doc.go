// Package refresh runs the background listing refresh loop.
//
// The Scheduler wakes on a fixed tick (500ms by default). When the registry
// is empty the tick is skipped. Otherwise every site whose listing is due
// under the sites.Cadence rule gets exactly one listing fetch started. The
// loop does not wait for those fetches; the fetch coordinator keeps them
// single-flight per site.
package refresh
