package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go-lifeline/cache"
	"go-lifeline/metrics"
)

// ForwardHeader carries the absolute URL of a cross-origin request.
const ForwardHeader = "X-Forward-URL"

const defaultMaxBody = 32 << 20

// offlineBody is the machine-readable body synthesized when an API call has
// neither network nor a mirrored copy.
var offlineBody = mustJSON(map[string]string{
	"error":   "offline",
	"message": "This feature requires internet connection",
})

// Fetcher performs upstream requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure an Engine.
type Options struct {
	Origin          *url.URL
	Storage         cache.Storage
	Partitions      Partitions
	Fetcher         Fetcher
	APIHostPatterns []string
	APIPathPrefixes []string
	Shell           []string
	Timeout         time.Duration
	Clock           clockwork.Clock
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Engine classifies intercepted requests and serves them through the matching
// caching strategy. It never returns an error to the caller: every failed
// network attempt has a cache, synthesized, or offline-page fallback.
type Engine struct {
	origin     *url.URL
	storage    cache.Storage
	parts      Partitions
	classifier *Classifier
	fetcher    Fetcher
	timeout    time.Duration
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics

	bg sync.WaitGroup
}

func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Shell == nil {
		opts.Shell = ShellManifest
	}
	return &Engine{
		origin:     opts.Origin,
		storage:    opts.Storage,
		parts:      opts.Partitions,
		classifier: NewClassifier(opts.Origin, opts.APIHostPatterns, opts.APIPathPrefixes, opts.Shell),
		fetcher:    opts.Fetcher,
		timeout:    opts.Timeout,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// Wait blocks until background revalidations have finished.
func (e *Engine) Wait() { e.bg.Wait() }

func (e *Engine) Classifier() *Classifier { return e.classifier }

// Response is a fetched upstream response held fully in memory so it can be
// both stored and returned.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Basic  bool // same-origin, not redirected elsewhere
}

func (u *Response) entry(key string, now time.Time) *cache.Entry {
	return &cache.Entry{Key: key, Status: u.Status, Header: u.Header.Clone(), Body: u.Body, StoredAt: now}
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target, err := e.target(r)
	if err != nil {
		http.Error(w, "bad forward url", http.StatusBadRequest)
		return
	}
	strategy := e.classifier.Classify(target, r)
	w.Header().Set("X-Cache-Strategy", string(strategy))

	if r.Method != http.MethodGet {
		e.passThrough(w, r, target, strategy)
		return
	}

	key := cache.NormalizeURL(target)
	switch strategy {
	case NetworkFirstAPI:
		e.networkFirstAPI(w, r, target, key)
	case CacheFirstStatic:
		e.cacheFirst(w, r, target, key, strategy, e.parts.Static)
	case StaleWhileRevalidate:
		e.staleWhileRevalidate(w, r, target, key)
	case NetworkFirstNavigation:
		e.networkFirstNavigation(w, r, target)
	default:
		e.cacheFirst(w, r, target, key, strategy, e.parts.Dynamic)
	}
}

// target resolves the absolute URL a request is for.
func (e *Engine) target(r *http.Request) (*url.URL, error) {
	if fwd := r.Header.Get(ForwardHeader); fwd != "" {
		u, err := url.Parse(fwd)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("invalid %s %q", ForwardHeader, fwd)
		}
		return u, nil
	}
	if r.URL.IsAbs() {
		return r.URL, nil
	}
	return e.origin.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}), nil
}

func (e *Engine) networkFirstAPI(w http.ResponseWriter, r *http.Request, target *url.URL, key string) {
	res, err := e.fetch(r.Context(), r, target)
	if err == nil {
		if res.Status == http.StatusOK {
			e.store(r.Context(), e.parts.Dynamic, key, res)
		}
		e.count(NetworkFirstAPI, "network")
		writeUpstream(w, res, "miss")
		return
	}
	e.logger.Debug("api fetch failed", "url", target.String(), "error", err)

	if entry, _, merr := cache.MatchAny(r.Context(), e.storage, key, e.parts.Dynamic); merr == nil {
		e.count(NetworkFirstAPI, "fallback")
		writeEntry(w, entry, "hit")
		return
	}
	e.count(NetworkFirstAPI, "offline")
	writeOfflineJSON(w)
}

func (e *Engine) cacheFirst(w http.ResponseWriter, r *http.Request, target *url.URL, key string, strategy Strategy, partition string) {
	if entry, _, err := cache.MatchAny(r.Context(), e.storage, key, e.lookupOrder(partition)...); err == nil {
		e.count(strategy, "hit")
		writeEntry(w, entry, "hit")
		return
	}

	res, err := e.fetch(r.Context(), r, target)
	if err != nil {
		e.logger.Debug("cache miss with no network", "url", target.String(), "error", err)
		e.count(strategy, "offline")
		w.Header().Set("X-Cache", "offline")
		http.Error(w, "Offline", http.StatusNotFound)
		return
	}
	if res.Status == http.StatusOK && res.Basic {
		e.store(r.Context(), partition, key, res)
	}
	e.count(strategy, "miss")
	writeUpstream(w, res, "miss")
}

func (e *Engine) staleWhileRevalidate(w http.ResponseWriter, r *http.Request, target *url.URL, key string) {
	if entry, _, err := cache.MatchAny(r.Context(), e.storage, key, e.parts.Dynamic); err == nil {
		e.revalidate(target, key)
		e.count(StaleWhileRevalidate, "hit")
		writeEntry(w, entry, "hit")
		return
	}

	res, err := e.fetch(r.Context(), r, target)
	if err != nil {
		e.logger.Debug("cross-origin fetch failed", "url", target.String(), "error", err)
		e.count(StaleWhileRevalidate, "offline")
		w.Header().Set("X-Cache", "offline")
		http.Error(w, "Offline", http.StatusServiceUnavailable)
		return
	}
	if res.Status == http.StatusOK {
		e.store(r.Context(), e.parts.Dynamic, key, res)
	}
	e.count(StaleWhileRevalidate, "miss")
	writeUpstream(w, res, "miss")
}

// revalidate refreshes key from the network in the background. It runs on a
// detached context so the page's request finishing does not cancel it.
func (e *Engine) revalidate(target *url.URL, key string) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		res, err := e.Fetch(ctx, target)
		if err != nil {
			e.logger.Debug("revalidate failed", "url", target.String(), "error", err)
			return
		}
		if res.Status == http.StatusOK {
			e.store(ctx, e.parts.Dynamic, key, res)
		}
	}()
}

func (e *Engine) networkFirstNavigation(w http.ResponseWriter, r *http.Request, target *url.URL) {
	res, err := e.fetch(r.Context(), r, target)
	if err == nil {
		e.count(NetworkFirstNavigation, "network")
		writeUpstream(w, res, "miss")
		return
	}
	e.logger.Debug("navigation fetch failed", "url", target.String(), "error", err)

	offlineKey := cache.NormalizeURL(e.origin.ResolveReference(&url.URL{Path: OfflinePage}))
	if entry, _, merr := cache.MatchAny(r.Context(), e.storage, offlineKey, e.parts.Offline, e.parts.Static); merr == nil {
		e.count(NetworkFirstNavigation, "fallback")
		writeEntry(w, entry, "offline")
		return
	}
	e.count(NetworkFirstNavigation, "offline")
	w.Header().Set("X-Cache", "offline")
	http.Error(w, "Offline", http.StatusServiceUnavailable)
}

// passThrough forwards non-GET requests without caching.
func (e *Engine) passThrough(w http.ResponseWriter, r *http.Request, target *url.URL, strategy Strategy) {
	res, err := e.fetch(r.Context(), r, target)
	if err == nil {
		writeUpstream(w, res, "bypass")
		return
	}
	e.count(strategy, "offline")
	if strategy == NetworkFirstAPI {
		writeOfflineJSON(w)
		return
	}
	w.Header().Set("X-Cache", "offline")
	http.Error(w, "Offline", http.StatusServiceUnavailable)
}

func (e *Engine) lookupOrder(primary string) []string {
	if primary == e.parts.Static {
		return []string{e.parts.Static, e.parts.Dynamic}
	}
	return []string{primary, e.parts.Static}
}

// store writes res under key. Failures are logged and otherwise ignored: a
// cache write must never block the response.
func (e *Engine) store(ctx context.Context, partition, key string, res *Response) {
	p, err := e.storage.Open(ctx, partition)
	if err == nil {
		err = p.Put(ctx, res.entry(key, e.clock.Now()))
	}
	if err != nil {
		e.logger.Warn("cache write failed", "partition", partition, "key", key, "error", err)
		e.metrics.CacheWrites.WithLabelValues(partition, "error").Inc()
		return
	}
	e.metrics.CacheWrites.WithLabelValues(partition, "ok").Inc()
}

func (e *Engine) count(s Strategy, result string) {
	e.metrics.CacheRequests.WithLabelValues(string(s), result).Inc()
}

// Fetch performs a plain GET of target.
func (e *Engine) Fetch(ctx context.Context, target *url.URL) (*Response, error) {
	return e.fetch(ctx, nil, target)
}

// fetch performs the upstream request. src, when set, supplies the method,
// body and forwarded headers.
func (e *Engine) fetch(ctx context.Context, src *http.Request, target *url.URL) (*Response, error) {
	method := http.MethodGet
	var body io.Reader
	if src != nil {
		method = src.Method
		if src.Body != nil && method != http.MethodGet && method != http.MethodHead {
			raw, err := io.ReadAll(io.LimitReader(src.Body, defaultMaxBody))
			if err != nil {
				return nil, fmt.Errorf("read request body: %w", err)
			}
			body = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if src != nil {
		for _, h := range forwardedHeaders {
			if v := src.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}
	}

	resp, err := e.fetcher.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	return &Response{
		Status: resp.StatusCode,
		Header: stripHopHeaders(resp.Header),
		Body:   data,
		Basic:  e.classifier.SameOrigin(final),
	}, nil
}

var forwardedHeaders = []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "Cookie", "User-Agent"}

var hopHeaders = []string{"Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade", "Te", "Trailer", "Content-Length"}

func stripHopHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, k := range hopHeaders {
		out.Del(k)
	}
	return out
}

func writeUpstream(w http.ResponseWriter, res *Response, cacheState string) {
	copyHeader(w.Header(), res.Header)
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

func writeEntry(w http.ResponseWriter, entry *cache.Entry, cacheState string) {
	copyHeader(w.Header(), entry.Header)
	w.Header().Set("X-Cache", cacheState)
	status := entry.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(entry.Body)
}

func writeOfflineJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "offline")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write(offlineBody)
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		if strings.HasPrefix(k, "X-Cache") {
			continue
		}
		dst[k] = append([]string(nil), vs...)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
