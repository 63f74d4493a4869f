// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket.
//
// The server registers the LogSite service, which carries the collaborator
// contract plus status, stop and log event calls. The Client implements
// sites.Collaborator, so the CLI engine runs unchanged against a remote
// daemon. Errors cross the socket as text; the client restores their
// services sentinel with services.Retag.
package ipc
