package sites

import "time"

const (
	// NormalCycle is the minimum time between listing refreshes of a healthy site.
	NormalCycle = 40 * time.Second
	// ErrorCycle is the minimum time between listing refreshes of a site whose
	// last refresh failed.
	ErrorCycle = 120 * time.Second
)

// Cadence holds the refresh cycles used to decide staleness.
type Cadence struct {
	Normal time.Duration
	Error  time.Duration
}

// DefaultCadence returns the 40s/120s cycles.
func DefaultCadence() Cadence {
	return Cadence{Normal: NormalCycle, Error: ErrorCycle}
}

// Due reports whether a listing refresh should start. A site that failed is
// left alone until the error cycle has elapsed; otherwise the normal cycle
// applies. The back-off is a longer fixed interval, not an adaptive one, and
// retries are never capped. A zero lastAttempt is always due.
func (c Cadence) Due(failed bool, lastAttempt, now time.Time) bool {
	if lastAttempt.IsZero() {
		return true
	}
	elapsed := now.Sub(lastAttempt)
	if failed && elapsed < c.Error {
		return false
	}
	return elapsed >= c.Normal
}

// ListingDue applies Due to a cache entry. Entries with a listing fetch in
// flight are never due.
func (c Cadence) ListingDue(entry Entry, now time.Time) bool {
	if entry.Listing.InFlight {
		return false
	}
	return c.Due(entry.Snapshot.HasError(), entry.Listing.LastAttemptAt, now)
}
