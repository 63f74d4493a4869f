// Package listingcache remembers the last successful remote listing of each
// site so that a listing can be shown before, or instead of, a remote fetch.
//
// The cache is a single JSON file rewritten atomically on every change.
package listingcache
