package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/charlesng35/zipkiosk/internal/cache"
)

const (
	defaultOriginTimeout = 10 * time.Second
	maxAssetBytes        = 8 << 20
	indexDocument        = "index.html"
)

// Origin is where assets come from when the cache cannot answer.
type Origin interface {
	Fetch(ctx context.Context, key string) (*cache.Asset, error)
}

// FSOrigin serves assets from a filesystem, normally the page files embedded in the binary.
type FSOrigin struct {
	fsys fs.FS
}

// NewFSOrigin constructs an origin over fsys.
func NewFSOrigin(fsys fs.FS) (*FSOrigin, error) {
	if fsys == nil {
		return nil, errors.New("assets: filesystem is required")
	}
	return &FSOrigin{fsys: fsys}, nil
}

// Fetch reads key from the filesystem. Directory keys resolve to their index document.
func (o *FSOrigin) Fetch(_ context.Context, key string) (*cache.Asset, error) {
	name := strings.TrimPrefix(path.Clean("/"+key), "/")
	if name == "" || strings.HasSuffix(key, "/") {
		name = path.Join(name, indexDocument)
	}

	body, err := fs.ReadFile(o.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("assets: read %q: %w", name, err)
	}

	return &cache.Asset{Key: key, ContentType: contentTypeFor(name, body), Body: body}, nil
}

// HTTPOrigin fetches assets from an upstream web server.
type HTTPOrigin struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPOrigin constructs an origin below baseURL. A nil client gets a default with timeout.
func NewHTTPOrigin(baseURL string, client *http.Client, timeout time.Duration) (*HTTPOrigin, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("assets: parse origin: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("assets: origin %q must be an http(s) URL", baseURL)
	}
	if client == nil {
		if timeout <= 0 {
			timeout = defaultOriginTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPOrigin{base: base, client: client}, nil
}

// Fetch performs a GET for key relative to the origin base. Non-2xx responses are failures.
func (o *HTTPOrigin) Fetch(ctx context.Context, key string) (*cache.Asset, error) {
	target := *o.base
	target.Path = strings.TrimSuffix(o.base.Path, "/") + key
	target.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assets: fetch %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("assets: fetch %q: unexpected status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("assets: read %q: %w", key, err)
	}
	if len(body) > maxAssetBytes {
		return nil, fmt.Errorf("assets: fetch %q: body exceeds %d bytes", key, maxAssetBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFor(key, body)
	}
	return &cache.Asset{Key: key, ContentType: contentType, Body: body}, nil
}

func contentTypeFor(name string, body []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(body)
}
