// Package source implements the pkg/source Loader contract for files, fs.FS
// and HTTP endpoints.
package source

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	pkgsource "github.com/goliatone/go-formstate/pkg/source"
)

// Loader delegates to file, fs.FS or HTTP strategies.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
}

var _ pkgsource.Loader = (*Loader)(nil)

// New constructs a Loader from resolved options.
func New(options pkgsource.LoaderOptions) *Loader {
	timeout := options.RequestTimeout

	var httpClient *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	case options.AllowHTTPFallback:
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Loader{
		fs:        options.FileSystem,
		http:      httpClient,
		allowHTTP: httpClient != nil,
		timeout:   timeout,
	}
}

// Load fetches the bytes behind src.
func (l *Loader) Load(ctx context.Context, src pkgsource.Source) ([]byte, error) {
	if src == nil {
		return nil, errors.New("source loader: source is nil")
	}

	switch src.Kind() {
	case pkgsource.KindFile:
		return loadFile(ctx, src.Location())
	case pkgsource.KindFS:
		return loadFromFS(ctx, l.fs, src.Location())
	case pkgsource.KindURL:
		if !l.allowHTTP {
			return nil, errors.New("source loader: http support disabled")
		}
		return loadHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		return nil, errors.New("source loader: unsupported source kind")
	}
}
