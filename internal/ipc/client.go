package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/google/uuid"

	"logsite/internal/services"
	"logsite/internal/sites"
)

// DialTimeout bounds how long Dial waits for the socket.
const DialTimeout = 2 * time.Second

// Client provides RPC access to the daemon and implements sites.Collaborator.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

var _ sites.Collaborator = (*Client)(nil)

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, DialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		err := c.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	return nil
}

// call issues method and waits for the reply or ctx, whichever comes first.
// An abandoned call still completes on the connection; its reply is dropped.
func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrTimeout, "ipc", method, "call abandoned", err)
	}
	pending := c.client.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "ipc", method, "call abandoned", ctx.Err())
	case done := <-pending.Done:
		return classify(method, done.Error)
	}
}

func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		return services.Retag(errors.New(string(serverErr)))
	}
	if errors.Is(err, rpc.ErrShutdown) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrTransport, "ipc", method, "daemon connection closed", err)
	}
	return services.Wrap(services.ErrTransport, "ipc", method, "", err)
}

func requestID(ctx context.Context) string {
	if id, ok := services.RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// ListConfiguredSites implements sites.Collaborator.
func (c *Client) ListConfiguredSites(ctx context.Context) ([]string, error) {
	var resp ListSitesResponse
	if err := c.call(ctx, "ListSites", ListSitesRequest{RequestID: requestID(ctx)}, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// GetSiteConfig implements sites.Collaborator.
func (c *Client) GetSiteConfig(ctx context.Context, name string) (sites.SiteConfig, error) {
	var resp GetSiteResponse
	if err := c.call(ctx, "GetSite", GetSiteRequest{RequestID: requestID(ctx), Name: name}, &resp); err != nil {
		return sites.SiteConfig{}, err
	}
	return resp.Config, nil
}

// SaveSiteConfig implements sites.Collaborator.
func (c *Client) SaveSiteConfig(ctx context.Context, cfg sites.SiteConfig) error {
	return c.call(ctx, "SaveSite", SaveSiteRequest{RequestID: requestID(ctx), Config: cfg}, &SaveSiteResponse{})
}

// DeleteSiteConfig implements sites.Collaborator.
func (c *Client) DeleteSiteConfig(ctx context.Context, name string) error {
	return c.call(ctx, "DeleteSite", DeleteSiteRequest{RequestID: requestID(ctx), Name: name}, &DeleteSiteResponse{})
}

// FetchRemoteListing implements sites.Collaborator.
func (c *Client) FetchRemoteListing(ctx context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	var resp ListingResponse
	if err := c.call(ctx, "RemoteListing", ListingRequest{RequestID: requestID(ctx), Config: cfg}, &resp); err != nil {
		return sites.SiteSnapshot{}, err
	}
	return resp.Snapshot, nil
}

// FetchLocalListing implements sites.Collaborator.
func (c *Client) FetchLocalListing(ctx context.Context, cfg sites.SiteConfig) (sites.SiteSnapshot, error) {
	var resp ListingResponse
	if err := c.call(ctx, "LocalListing", ListingRequest{RequestID: requestID(ctx), Config: cfg}, &resp); err != nil {
		return sites.SiteSnapshot{}, err
	}
	return resp.Snapshot, nil
}

// FetchRemoteLog implements sites.Collaborator.
func (c *Client) FetchRemoteLog(ctx context.Context, snapshot sites.SiteSnapshot, entry sites.LogFileEntry) (sites.Log, error) {
	var resp LogResponse
	req := RemoteLogRequest{RequestID: requestID(ctx), Snapshot: snapshot, Entry: entry}
	if err := c.call(ctx, "RemoteLog", req, &resp); err != nil {
		return sites.Log{}, err
	}
	return resp.Log, nil
}

// FetchLocalLog implements sites.Collaborator.
func (c *Client) FetchLocalLog(ctx context.Context, site, file string) (sites.Log, error) {
	var resp LogResponse
	if err := c.call(ctx, "LocalLog", LocalLogRequest{RequestID: requestID(ctx), Site: site, File: file}, &resp); err != nil {
		return sites.Log{}, err
	}
	return resp.Log, nil
}

// EmitLog implements sites.Collaborator. Delivery failures are dropped.
func (c *Client) EmitLog(ctx context.Context, level, message string) {
	_ = c.call(ctx, "EmitLog", EmitLogRequest{RequestID: requestID(ctx), Level: level, Message: message}, &EmitLogResponse{})
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) (*StopResponse, error) {
	var resp StopResponse
	if err := c.call(ctx, "Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events reads daemon log events.
func (c *Client) Events(ctx context.Context, req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call(ctx, "Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
