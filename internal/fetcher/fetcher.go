package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Opener resolves an import location (local path, http(s):// or ftp:// URL)
// to a parsed Table.
type Opener struct {
	remotes map[string]Fetcher
	// MaxBytes caps how much of a source is read; 0 means unlimited.
	MaxBytes int64
}

// NewOpener creates an Opener with HTTP and FTP support.
func NewOpener(httpOpts HTTPOptions, ftpOpts FTPOptions) *Opener {
	h := NewHTTPFetcher(httpOpts)
	return &Opener{
		remotes: map[string]Fetcher{
			"http":  h,
			"https": h,
			"ftp":   NewFTPFetcher(ftpOpts),
		},
	}
}

// Open returns a reader for the location. The caller must close it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		f, ok := o.remotes[strings.ToLower(u.Scheme)]
		if !ok {
			return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
		}
		zap.L().Debug("fetcher: opening remote source", zap.String("location", location))
		return f.Download(ctx, location)
	}
	file, err := os.Open(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", location)
	}
	return file, nil
}

// Load opens the location and parses it as CSV or XLSX depending on its extension.
func (o *Opener) Load(ctx context.Context, location string) (*Table, error) {
	rc, err := o.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	var r io.Reader = rc
	if o.MaxBytes > 0 {
		r = io.LimitReader(rc, o.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", location)
	}
	if o.MaxBytes > 0 && int64(len(data)) > o.MaxBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", location, o.MaxBytes)
	}
	return ReadTable(location, data)
}

// ReadTable parses data as XLSX when name ends in .xlsx, otherwise as CSV.
func ReadTable(name string, data []byte) (*Table, error) {
	if IsXLSX(name) {
		return ReadXLSX(data, XLSXOptions{})
	}
	return ParseCSV(bytes.NewReader(data))
}

// IsXLSX reports whether a file name or URL refers to an XLSX workbook.
func IsXLSX(name string) bool {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		name = u.Path
	}
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
