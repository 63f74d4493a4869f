package sites

import "context"

// Collaborator is the host-process call contract. Implementations return
// validated structured data or fail explicitly.
type Collaborator interface {
	ListConfiguredSites(ctx context.Context) ([]string, error)
	GetSiteConfig(ctx context.Context, name string) (SiteConfig, error)
	SaveSiteConfig(ctx context.Context, cfg SiteConfig) error
	DeleteSiteConfig(ctx context.Context, name string) error

	FetchRemoteListing(ctx context.Context, cfg SiteConfig) (SiteSnapshot, error)
	// FetchLocalListing is best effort; a missing local listing is reported in
	// the snapshot Error.
	FetchLocalListing(ctx context.Context, cfg SiteConfig) (SiteSnapshot, error)

	FetchRemoteLog(ctx context.Context, snapshot SiteSnapshot, entry LogFileEntry) (Log, error)
	FetchLocalLog(ctx context.Context, site, file string) (Log, error)

	// EmitLog forwards a diagnostic message to the host. Delivery failures
	// are dropped.
	EmitLog(ctx context.Context, level, message string)
}
