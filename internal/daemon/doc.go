// Package daemon coordinates the long-running logsite process.
//
// It wires configuration, the site store, the listing cache, downloaded log
// copies and the collaborator backend into a single lifecycle, with a
// flock-based lock preventing a second instance. Each run gets a session id
// that is stamped on its log output and reported by Status.
//
// Keep orchestration here: transport lives in ipc and the collaborator
// contract in backend.
package daemon
