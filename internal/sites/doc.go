// Package sites owns the client-side site cache.
//
// A Registry holds one entry per configured site for the lifetime of the
// process. Each entry carries the latest listing snapshot plus independent
// fetch-state for listing refreshes and content downloads. Config updates are
// merged in place so fetch timestamps and previously listed files survive a
// refresh of the configured-site list. Entries disappear only through Remove.
//
// The Collaborator interface is the call contract of the host process that
// stores site configuration and talks to remote file sources. The ipc client
// implements it against the daemon.
package sites
