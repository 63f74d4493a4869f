// Package backend implements sites.Collaborator inside the daemon.
//
// Site configurations come from sitestore, remote listings and files from an
// ftpsource.Dialer, downloaded copies are managed by logstore and parsed by
// logparse. The last good listing of each site is kept in listingcache so a
// failed remote listing still reports the previous entries.
package backend
