package ftpsource

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"golang.org/x/text/cases"

	"logsite/internal/logging"
	"logsite/internal/services"
	"logsite/internal/sites"
)

// Session is one authenticated connection to a site.
type Session interface {
	// List returns the non-empty *.log files in the login directory.
	List(ctx context.Context) ([]sites.LogFileEntry, error)
	// Open streams name starting at offset bytes.
	Open(ctx context.Context, name string, offset int64) (io.ReadCloser, error)
	Close() error
}

// Dialer opens sessions against a configured site.
type Dialer interface {
	Dial(ctx context.Context, cfg sites.SiteConfig) (Session, error)
}

// Options configures the FTP dialer.
type Options struct {
	Port        int
	Timeout     time.Duration
	InsecureTLS bool
	Logger      *slog.Logger
}

// Client dials FTP servers with explicit TLS.
type Client struct {
	port     int
	timeout  time.Duration
	insecure bool
	logger   *slog.Logger
}

// New constructs an FTP dialer.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	port := opts.Port
	if port <= 0 {
		port = 21
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		port:     port,
		timeout:  timeout,
		insecure: opts.InsecureTLS,
		logger:   logging.NewComponentLogger(logger, "ftpsource"),
	}
}

// Address returns host:port for a configured address, applying the default
// port when none is given.
func (c *Client) Address(address string) (string, string) {
	address = strings.TrimSpace(address)
	if host, port, err := net.SplitHostPort(address); err == nil {
		return net.JoinHostPort(host, port), host
	}
	return net.JoinHostPort(address, strconv.Itoa(c.port)), address
}

// Dial connects and logs in.
func (c *Client) Dial(ctx context.Context, cfg sites.SiteConfig) (Session, error) {
	addr, host := c.Address(cfg.Address)
	if host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ftpsource", "dial", fmt.Sprintf("site %q has no address", cfg.Name), nil)
	}

	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: c.insecure, //nolint:gosec
	}
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.timeout),
		ftp.DialWithExplicitTLS(tlsConfig),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "ftpsource", "dial", addr, err)
	}
	if err := conn.Login(cfg.Credentials.Username, cfg.Credentials.Password); err != nil {
		_ = conn.Quit()
		return nil, services.Wrap(services.ErrConfiguration, "ftpsource", "login", fmt.Sprintf("user %q at %s", cfg.Credentials.Username, addr), err)
	}
	c.logger.Debug("ftp session opened", logging.Site(cfg.Name), logging.String("address", addr))
	return &session{conn: conn, site: cfg.Name}, nil
}

type session struct {
	conn *ftp.ServerConn
	site string
}

func (s *session) List(ctx context.Context) ([]sites.LogFileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "ftpsource", "list", s.site, err)
	}
	entries, err := s.conn.List(".")
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "ftpsource", "list", s.site, err)
	}
	return Select(entries), nil
}

func (s *session) Open(ctx context.Context, name string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "ftpsource", "retrieve", name, err)
	}
	var (
		resp *ftp.Response
		err  error
	)
	if offset > 0 {
		resp, err = s.conn.RetrFrom(name, uint64(offset))
	} else {
		resp, err = s.conn.Retr(name)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "ftpsource", "retrieve", name, err)
	}
	return resp, nil
}

func (s *session) Close() error {
	return s.conn.Quit()
}

// Select keeps regular, non-empty *.log files and orders them by
// case-folded name.
func Select(entries []*ftp.Entry) []sites.LogFileEntry {
	out := make([]sites.LogFileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Type != ftp.EntryTypeFile || entry.Size == 0 {
			continue
		}
		if !strings.HasSuffix(entry.Name, ".log") {
			continue
		}
		out = append(out, sites.LogFileEntry{
			Name:       entry.Name,
			Size:       int64(entry.Size),
			ModifiedAt: entry.Time,
		})
	}
	SortEntries(out)
	return out
}

// SortEntries orders entries case-insensitively, breaking ties on the exact
// name.
func SortEntries(entries []sites.LogFileEntry) {
	fold := cases.Fold()
	keys := make(map[string]string, len(entries))
	for _, entry := range entries {
		keys[entry.Name] = fold.String(entry.Name)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := keys[entries[i].Name], keys[entries[j].Name]
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
}
