// Package main hosts the logsite CLI entrypoint and command graph.
//
// One binary plays both roles: `logsite daemon run` hosts the collaborator
// backend on a unix socket, and every other command is a client of that
// socket. Site, listing and file commands call the daemon directly; `watch`
// runs the refresh scheduler and the follow view in this process against the
// IPC client.
package main
