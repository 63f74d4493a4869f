package ftpsource_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"

	"logsite/internal/ftpsource"
	"logsite/internal/services"
	"logsite/internal/sites"
)

func TestSelectFiltersAndSorts(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	entries := []*ftp.Entry{
		{Name: "b.log", Type: ftp.EntryTypeFile, Size: 20, Time: at},
		{Name: "A.log", Type: ftp.EntryTypeFile, Size: 10, Time: at},
		{Name: "empty.log", Type: ftp.EntryTypeFile, Size: 0},
		{Name: "archive", Type: ftp.EntryTypeFolder},
		{Name: "dir.log", Type: ftp.EntryTypeFolder, Size: 4096},
		{Name: "notes.txt", Type: ftp.EntryTypeFile, Size: 5},
		nil,
		{Name: "a.log", Type: ftp.EntryTypeFile, Size: 30},
	}
	got := ftpsource.Select(entries)
	names := make([]string, len(got))
	for i, entry := range got {
		names[i] = entry.Name
	}
	want := []string{"A.log", "a.log", "b.log"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
	if got[0].Size != 10 || !got[0].ModifiedAt.Equal(at) {
		t.Fatalf("unexpected first entry %+v", got[0])
	}
}

func TestAddressAppliesDefaultPort(t *testing.T) {
	client := ftpsource.New(ftpsource.Options{Port: 2121})
	if addr, host := client.Address("10.0.0.5"); addr != "10.0.0.5:2121" || host != "10.0.0.5" {
		t.Fatalf("unexpected address %q host %q", addr, host)
	}
	if addr, _ := client.Address("files.example:990"); addr != "files.example:990" {
		t.Fatalf("explicit port not kept: %q", addr)
	}
}

func TestDialWithoutAddressIsConfigurationError(t *testing.T) {
	client := ftpsource.New(ftpsource.Options{Timeout: time.Second})
	_, err := client.Dial(context.Background(), sites.SiteConfig{Name: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
