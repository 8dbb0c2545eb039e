// Package netcache keeps local copies of remote reference documents.
package netcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Cache provides a simple persistent HTTP cache with ETag/Last-Modified support.
type Cache struct {
	Dir    string
	Client *retryablehttp.Client
	logger *slog.Logger
}

// New returns a Cache storing files in dir.
func New(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = 5 * time.Minute
	client.RetryMax = 3
	client.Logger = logger
	return &Cache{Dir: dir, Client: client, logger: logger}
}

type meta struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	// Optional server-provided filename hint
	Filename string `json:"filename,omitempty"`
	// DataFile is the basename of the cached payload file
	DataFile string `json:"data_file"`
}

// Get fetches url into the cache and returns the local file path. The
// cached file keeps the extension of the remote name so its format can be
// recognised.
//
// A cached copy is revalidated with a conditional GET. If revalidation
// fails the stale copy is reused.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".json")

	if m, ok := c.readMeta(mpath, url); ok {
		cached := filepath.Join(c.Dir, m.DataFile)
		p, fresh, err := c.revalidate(ctx, url, key, mpath, m)
		if err == nil {
			return p, fresh, nil
		}
		c.logger.Warn("revalidation failed, using cached copy", "url", url, "error", err)
		return cached, true, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}
	p, err := c.store(url, key, mpath, resp)
	if err != nil {
		return "", false, err
	}
	return p, false, nil
}

func (c *Cache) readMeta(mpath, url string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(mpath)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, false
	}
	if m.URL != url || m.DataFile == "" || !fileExists(filepath.Join(c.Dir, m.DataFile)) {
		return m, false
	}
	return m, true
}

// revalidate issues a single conditional GET without retries.
func (c *Cache) revalidate(ctx context.Context, url, key, mpath string, m meta) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	if m.ETag != "" {
		req.Header.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		req.Header.Set("If-Modified-Since", m.LastModified)
	}
	resp, err := c.Client.HTTPClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		c.logger.Debug("cache hit", "url", url)
		return filepath.Join(c.Dir, m.DataFile), true, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p, err := c.store(url, key, mpath, resp)
		return p, false, err
	default:
		return "", false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}

func (c *Cache) store(url, key, mpath string, resp *http.Response) (string, error) {
	filename := contentFilename(url, resp)
	dataFile := key + path.Ext(filename)
	p := filepath.Join(c.Dir, dataFile)
	if err := streamToFile(resp.Body, p, 0o644); err != nil {
		return "", fmt.Errorf("storing %s: %w", url, err)
	}
	nm := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Filename:     filename,
		DataFile:     dataFile,
	}
	if err := writeMeta(mpath, nm); err != nil {
		return "", err
	}
	c.logger.Debug("cached", "url", url, "file", p)
	return p, nil
}

func streamToFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// contentFilename tries to derive a filename from headers or URL path.
func contentFilename(url string, resp *http.Response) string {
	cd := resp.Header.Get("Content-Disposition")
	if cd != "" {
		// very light parse; look for filename="..."
		if i := strings.Index(cd, "filename="); i >= 0 {
			v := cd[i+9:]
			v = strings.Trim(v, "\"'")
			if v != "" {
				return v
			}
		}
	}
	u := url
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	slash := strings.LastIndex(u, "/")
	if slash >= 0 && slash+1 < len(u) {
		return u[slash+1:]
	}
	return "download"
}
