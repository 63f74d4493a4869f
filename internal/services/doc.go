// Package services defines shared utilities consumed by the client engine,
// the collaborator backend and the IPC layer.
//
// Key responsibilities:
//   - Context helpers that stamp site names and correlation identifiers for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper so failures keep a
//     classifiable sentinel (not found, transport, validation) end to end.
//   - Retag, which restores those markers after an error crossed the RPC
//     boundary as text.
package services
