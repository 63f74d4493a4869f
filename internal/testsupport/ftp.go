package testsupport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"logsite/internal/ftpsource"
	"logsite/internal/services"
	"logsite/internal/sites"
)

// OpenCall records one FakeDialer file transfer.
type OpenCall struct {
	Site   string
	Name   string
	Offset int64
}

// FakeDialer is an in-memory ftpsource.Dialer serving files per site.
type FakeDialer struct {
	mu      sync.Mutex
	files   map[string]map[string]fakeFile
	opens   []OpenCall
	dials   int
	DialErr error
}

type fakeFile struct {
	content  string
	modified time.Time
}

var _ ftpsource.Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns an empty dialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{files: make(map[string]map[string]fakeFile)}
}

// SetFile publishes content as name on site.
func (d *FakeDialer) SetFile(site, name, content string, modified time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.files[site] == nil {
		d.files[site] = make(map[string]fakeFile)
	}
	d.files[site][name] = fakeFile{content: content, modified: modified}
}

// Dials returns how many sessions were opened.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Opens returns the recorded transfers.
func (d *FakeDialer) Opens() []OpenCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]OpenCall(nil), d.opens...)
}

// Dial implements ftpsource.Dialer.
func (d *FakeDialer) Dial(_ context.Context, cfg sites.SiteConfig) (ftpsource.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &fakeSession{dialer: d, site: cfg.Name}, nil
}

type fakeSession struct {
	dialer *FakeDialer
	site   string
}

func (s *fakeSession) List(context.Context) ([]sites.LogFileEntry, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	var out []sites.LogFileEntry
	for name, file := range s.dialer.files[s.site] {
		if !strings.HasSuffix(name, ".log") || file.content == "" {
			continue
		}
		out = append(out, sites.LogFileEntry{Name: name, Size: int64(len(file.content)), ModifiedAt: file.modified})
	}
	ftpsource.SortEntries(out)
	return out, nil
}

func (s *fakeSession) Open(_ context.Context, name string, offset int64) (io.ReadCloser, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()
	s.dialer.opens = append(s.dialer.opens, OpenCall{Site: s.site, Name: name, Offset: offset})
	file, ok := s.dialer.files[s.site][name]
	if !ok {
		return nil, services.Wrap(services.ErrTransport, "fakeftp", "retrieve", fmt.Sprintf("550 %s: no such file", name), nil)
	}
	if offset > int64(len(file.content)) {
		offset = int64(len(file.content))
	}
	return io.NopCloser(strings.NewReader(file.content[offset:])), nil
}

func (s *fakeSession) Close() error { return nil }
