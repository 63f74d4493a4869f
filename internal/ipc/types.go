package ipc

import (
	"time"

	"logsite/internal/logging"
	"logsite/internal/sites"
)

// ServiceName is the RPC service registered by the daemon.
const ServiceName = "LogSite"

// ListSitesRequest lists configured site names.
type ListSitesRequest struct {
	RequestID string `json:"request_id"`
}

// ListSitesResponse contains site names in ascending order.
type ListSitesResponse struct {
	Names []string `json:"names"`
}

// GetSiteRequest fetches one site configuration.
type GetSiteRequest struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
}

// GetSiteResponse carries the stored configuration.
type GetSiteResponse struct {
	Config sites.SiteConfig `json:"config"`
}

// SaveSiteRequest creates or replaces a site configuration.
type SaveSiteRequest struct {
	RequestID string           `json:"request_id"`
	Config    sites.SiteConfig `json:"config"`
}

// SaveSiteResponse is empty on success.
type SaveSiteResponse struct{}

// DeleteSiteRequest removes a site configuration.
type DeleteSiteRequest struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
}

// DeleteSiteResponse is empty on success.
type DeleteSiteResponse struct{}

// ListingRequest asks for a remote or cached listing.
type ListingRequest struct {
	RequestID string           `json:"request_id"`
	Config    sites.SiteConfig `json:"config"`
}

// ListingResponse carries the resulting snapshot.
type ListingResponse struct {
	Snapshot sites.SiteSnapshot `json:"snapshot"`
}

// RemoteLogRequest downloads and parses one listed file.
type RemoteLogRequest struct {
	RequestID string             `json:"request_id"`
	Snapshot  sites.SiteSnapshot `json:"snapshot"`
	Entry     sites.LogFileEntry `json:"entry"`
}

// LocalLogRequest parses the downloaded copy of a file.
type LocalLogRequest struct {
	RequestID string `json:"request_id"`
	Site      string `json:"site"`
	File      string `json:"file"`
}

// LogResponse carries a parsed log.
type LogResponse struct {
	Log sites.Log `json:"log"`
}

// EmitLogRequest forwards a client diagnostic into the daemon log.
type EmitLogRequest struct {
	RequestID string `json:"request_id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// EmitLogResponse is always empty.
type EmitLogResponse struct{}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Running    bool      `json:"running"`
	PID        int       `json:"pid"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	Sites      int       `json:"sites"`
	LockPath   string    `json:"lock_path"`
	DBPath     string    `json:"db_path"`
	DataDir    string    `json:"data_dir"`
	LogPath    string    `json:"log_path"`
	SocketPath string    `json:"socket_path"`
}

// StopRequest asks the daemon process to exit.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// EventsRequest reads daemon log events after Since.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Tail       bool   `json:"tail"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse carries events and the cursor for the next request.
type EventsResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}
