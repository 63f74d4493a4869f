// Package sitestore persists site configurations in SQLite.
//
// A site row holds the address and credentials; its transform rules live in a
// child table ordered by position and are replaced wholesale on every save.
// The schema is versioned through schema_version; a mismatch is reported as
// ErrSchemaMismatch and the database must be recreated.
package sitestore
