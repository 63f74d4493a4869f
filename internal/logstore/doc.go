// Package logstore keeps local copies of remote log files under
// <data_dir>/<site>/logs and decides how each copy is refreshed:
//
//   - reuse: the copy is younger than the reuse window and at least as large as
//     the remote file
//   - append: the copy is younger than the reuse window and larger than the
//     append threshold, so only the missing tail is transferred
//   - full: anything else is downloaded from scratch
package logstore
