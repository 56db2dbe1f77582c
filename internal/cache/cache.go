// Package cache is the agent's versioned, read-only asset cache. Entries are
// written only at install time; serving never writes back.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/debuck1718/smartstudent/internal/model"
)

// Version is the current cache version tag.
const Version = "smartstudent-cache-v2"

// FallbackPath is served for navigations when both cache and network fail.
const FallbackPath = "/index.html"

// Manifest lists the app shell assets cached at install.
var Manifest = []string{
	"/", "/index.html", "/style.css", "/script.js",
	"/manifest.json", "/app-icon.png", "/bg.png",
	"/dashboard.html", "/dashboard.css",
	"/teachers.html", "/teachers.css",
	"/financial.html", "/financial.css",
	"/rewards.html", "/rewards.css",
	"/login.html", "/signup.html", "/signup.css",
}

// ErrFetch wraps a failed network fetch.
var ErrFetch = errors.New("fetch failed")

// Storage is the named cache backend.
type Storage interface {
	Open(ctx context.Context, name string) error
	PutAll(ctx context.Context, name string, entries []model.CachedResponse) error
	Match(ctx context.Context, name, key string) (*model.CachedResponse, error)
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// Doer performs network requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Manager. Zero values fall back to Version, Manifest
// and FallbackPath.
type Config struct {
	Origin       string
	Version      string
	Manifest     []string
	FallbackPath string
	// DisableFallback lets navigation failures propagate.
	DisableFallback bool
}

// Manager installs, activates and serves the asset cache.
type Manager struct {
	storage  Storage
	client   Doer
	origin   *url.URL
	version  string
	manifest []string
	fallback string
	logger   *slog.Logger
}

// NewManager creates a cache manager fetching assets from cfg.Origin.
func NewManager(cfg Config, storage Storage, client Doer, logger *slog.Logger) (*Manager, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.Manifest == nil {
		cfg.Manifest = Manifest
	}
	if cfg.FallbackPath == "" {
		cfg.FallbackPath = FallbackPath
	}
	if cfg.DisableFallback {
		cfg.FallbackPath = ""
	}
	return &Manager{
		storage:  storage,
		client:   client,
		origin:   origin,
		version:  cfg.Version,
		manifest: cfg.Manifest,
		fallback: cfg.FallbackPath,
		logger:   logger,
	}, nil
}

// Version returns the tag of the cache this manager installs.
func (m *Manager) Version() string {
	return m.version
}

// Key returns the cache key for a request: method, path and query.
func Key(method string, u *url.URL) string {
	return method + " " + u.RequestURI()
}

// Install fetches every manifest asset and stores them. If any fetch fails
// nothing is stored.
func (m *Manager) Install(ctx context.Context) error {
	if err := m.storage.Open(ctx, m.version); err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	entries := make([]model.CachedResponse, len(m.manifest))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range m.manifest {
		g.Go(func() error {
			e, err := m.fetchAsset(gctx, path)
			if err != nil {
				return err
			}
			entries[i] = *e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("install %s: %w", m.version, err)
	}

	if err := m.storage.PutAll(ctx, m.version, entries); err != nil {
		return fmt.Errorf("install %s: %w", m.version, err)
	}
	m.logger.Info("cached app shell", "cache", m.version, "assets", len(entries))
	return nil
}

func (m *Manager) fetchAsset(ctx context.Context, path string) (*model.CachedResponse, error) {
	u := m.origin.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", path, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrFetch, path, err)
	}
	return &model.CachedResponse{
		Cache:       m.version,
		Key:         Key(http.MethodGet, &url.URL{Path: path}),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Activate deletes every cache whose name is not the current version and
// returns the names it removed.
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	names, err := m.storage.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}

	var removed []string
	for _, name := range names {
		if name == m.version {
			continue
		}
		if _, err := m.storage.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("delete cache %s: %w", name, err)
		}
		m.logger.Info("removed old cache", "cache", name)
		removed = append(removed, name)
	}
	return removed, nil
}

// Serve answers r from the cache when an exact key matches, otherwise from
// the network. Navigations that fail both ways get the cached fallback page.
func (m *Manager) Serve(ctx context.Context, r *http.Request) (*http.Response, error) {
	if r.Method == http.MethodGet {
		cached, err := m.storage.Match(ctx, m.version, Key(r.Method, r.URL))
		if err != nil {
			m.logger.Warn("cache lookup", "error", err)
		}
		if cached != nil {
			return cachedResponse(r, cached), nil
		}
	}

	resp, err := m.forward(ctx, r)
	if err == nil {
		return resp, nil
	}

	if m.fallback != "" && isNavigation(r) {
		cached, lerr := m.storage.Match(ctx, m.version, Key(http.MethodGet, &url.URL{Path: m.fallback}))
		if lerr == nil && cached != nil {
			m.logger.Debug("serving offline fallback", "path", r.URL.Path)
			return cachedResponse(r, cached), nil
		}
	}
	return nil, err
}

func (m *Manager) forward(ctx context.Context, r *http.Request) (*http.Response, error) {
	u := m.origin.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	out, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	out.ContentLength = r.ContentLength
	for k, vs := range r.Header {
		if isHopHeader(k) {
			continue
		}
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}
	resp, err := m.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrFetch, r.Method, r.URL.Path, err)
	}
	return resp, nil
}

// ServeHTTP makes the manager mountable as the agent's fetch handler.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := m.Serve(r.Context(), r)
	if err != nil {
		m.logger.Warn("fetch", "path", r.URL.Path, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		if isHopHeader(k) {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func cachedResponse(r *http.Request, c *model.CachedResponse) *http.Response {
	h := make(http.Header)
	if c.ContentType != "" {
		h.Set("Content-Type", c.ContentType)
	}
	h.Set("X-Cache", "HIT")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.Status, http.StatusText(c.Status)),
		StatusCode:    c.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       r,
	}
}

func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if r.Header.Get("Sec-Fetch-Dest") == "document" || r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func isHopHeader(k string) bool {
	return hopHeaders[http.CanonicalHeaderKey(k)]
}
