package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/scaledspace/pkg/metrics"
)

// CacheHeader marks responses produced by the router.
const CacheHeader = "X-Scaledspace-Cache"

// Router answers requests cache-first from the active generation.
// It is an http.RoundTripper, so it can back an http.Client or a reverse proxy.
type Router struct {
	manager *Manager
	network http.RoundTripper
	logger  *slog.Logger
}

// NewRouter creates a router over the manager's active generation.
func NewRouter(manager *Manager, logger *slog.Logger) *Router {
	return &Router{
		manager: manager,
		network: manager.Transport(),
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (r *Router) RoundTrip(req *http.Request) (*http.Response, error) {
	return r.Handle(req)
}

// Handle routes one request.
//
// Requests that are cross-origin, outside the scope, not GET, or arrive
// while no generation is active go to the network untouched. Otherwise a
// cached entry is returned when present, and a miss is fetched and stored.
// When the network fails, navigations get the offline page and anything
// else a synthetic 503; the network error itself is never returned.
func (r *Router) Handle(req *http.Request) (*http.Response, error) {
	gen, ok := r.manager.Active()
	if !ok || !r.intercepts(req, gen.Manifest) {
		metrics.CacheRequests.WithLabelValues(metrics.OutcomePassthrough).Inc()
		return r.network.RoundTrip(req)
	}

	ctx := req.Context()
	key := req.URL.RequestURI()
	storage := r.manager.Storage()

	entry, found, err := storage.Match(ctx, gen.Name, key)
	if err != nil && r.logger != nil {
		r.logger.Warn("cache lookup failed", "generation", gen.Name, "key", key, "error", err)
	}
	if found {
		metrics.CacheRequests.WithLabelValues(metrics.OutcomeHit).Inc()
		return entryResponse(req, entry, "hit"), nil
	}

	resp, err := r.network.RoundTrip(req)
	if err != nil {
		return r.fallback(ctx, req, gen, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err))
	}
	metrics.CacheRequests.WithLabelValues(metrics.OutcomeMiss).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return r.fallback(ctx, req, gen, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err))
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	stored := Entry{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: r.manager.now().UnixMilli(),
	}
	if err := storage.Put(ctx, gen.Name, key, stored); err != nil && r.logger != nil {
		r.logger.Warn("cache write failed", "generation", gen.Name, "key", key, "error", err)
	}
	resp.Header.Set(CacheHeader, "miss")
	return resp, nil
}

func (r *Router) intercepts(req *http.Request, manifest *Manifest) bool {
	if req.Method != http.MethodGet {
		return false
	}
	origin := r.manager.Origin()
	if !strings.EqualFold(req.URL.Scheme, origin.Scheme) || !strings.EqualFold(req.URL.Host, origin.Host) {
		return false
	}
	return manifest == nil || manifest.InScope(req.URL.Path)
}

func (r *Router) fallback(ctx context.Context, req *http.Request, gen Generation, cause error) (*http.Response, error) {
	if r.logger != nil {
		r.logger.Debug("serving offline fallback", "url", req.URL.String(), "error", cause)
	}
	if isNavigation(req) && gen.Manifest != nil {
		key, err := RequestKey(gen.Manifest.Offline)
		if err == nil {
			entry, found, err := r.manager.Storage().Match(ctx, gen.Name, key)
			if err == nil && found {
				metrics.CacheRequests.WithLabelValues(metrics.OutcomeOffline).Inc()
				return entryResponse(req, entry, "offline"), nil
			}
		}
	}
	metrics.CacheRequests.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	return unavailableResponse(req), nil
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func entryResponse(req *http.Request, e Entry, marker string) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(CacheHeader, marker)
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func unavailableResponse(req *http.Request) *http.Response {
	body := []byte(http.StatusText(http.StatusServiceUnavailable))
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set(CacheHeader, "unavailable")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
