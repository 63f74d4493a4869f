// Package fetch coordinates listing and content downloads for cached sites.
//
// Listing refreshes are single-flight per site: a request that finds one in
// flight returns at once and callers that need the outcome wait on
// AwaitListing. Listing failures are stored in the site snapshot and never
// returned.
//
// Content downloads share one gate across every site, so at most one remote
// log download runs in the process at any time. Callers block on the gate and
// proceed one at a time. This bounds load on slow remote links at the cost of
// fairness between sites and is a known throughput ceiling.
//
// A local fallback read may race a remote fetch of the same file. Each
// successful remote fetch bumps a per-file generation; a fallback that sees
// the generation move while it ran reports itself stale so the caller drops
// it.
package fetch
