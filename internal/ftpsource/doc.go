// Package ftpsource reads remote log files over FTP with explicit TLS.
//
// A Dialer opens a Session per operation; the Session lists the remote
// directory and streams files, optionally resuming from an offset. The
// backend only depends on the Dialer interface, so tests substitute an
// in-memory implementation.
package ftpsource
