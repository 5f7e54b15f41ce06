// Package fabric implements the Network Fabric: a retrying fetcher with
// exponential backoff, 429 back-pressure handling, domain rotation over
// the interchangeable primary/image hostname lists, anti-ban pacing,
// streaming downloads with an existence-and-size cache, and round-robin
// proxy dispatch with per-request failover across HTTP and SOCKS5 proxies
// (spec §4.C).
package fabric

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hakoarchive/hakodl/internal/proxypool"
)

// Config holds the Network Fabric's injectable settings (spec §9:
// "singleton-style constants ... should be injectable to allow tests to
// use small anti-ban intervals").
type Config struct {
	PrimaryHosts        []string
	ImageHosts          []string
	Headers             map[string]string
	Timeout             time.Duration
	AntiBanInterval     int
	AntiBanPause        time.Duration
	MaxRetries          int
	MaxRateLimitRetries int
	// MinRequestInterval, when positive, imposes an additional baseline
	// pacing floor between dispatches on top of the anti-ban gate. Zero
	// disables it (the default): requests are paced purely per spec's
	// anti-ban/retry rules.
	MinRequestInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxRateLimitRetries <= 0 {
		c.MaxRateLimitRetries = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.AntiBanInterval <= 0 {
		c.AntiBanInterval = 100
	}
	if c.AntiBanPause <= 0 {
		c.AntiBanPause = 30 * time.Second
	}
}

// Response is the buffered result of a successful FetchWithRetry call.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Fabric is one acquisition session's Network Fabric instance.
// RequestCount is process-wide relative to this instance; a new Fabric
// resets the count (spec §9).
type Fabric struct {
	cfg          Config
	proxyPool    *proxypool.Pool
	requestCount int64
	pacer        *rate.Limiter
}

// New constructs a Fabric. pool may be nil (no proxy configured).
func New(cfg Config, pool *proxypool.Pool) *Fabric {
	cfg.applyDefaults()

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	return &Fabric{
		cfg:       cfg,
		proxyPool: pool,
		pacer:     rate.NewLimiter(limit, 1),
	}
}

// RequestCount returns the number of network attempts issued so far.
func (f *Fabric) RequestCount() int64 { return atomic.LoadInt64(&f.requestCount) }

// ResetCount zeroes the request counter.
func (f *Fabric) ResetCount() { atomic.StoreInt64(&f.requestCount, 0) }

// HasProxy reports whether a proxy pool is configured.
func (f *Fabric) HasProxy() bool { return f.proxyPool != nil }

// ProxyCount returns the configured pool's size, or 0 when no pool.
func (f *Fabric) ProxyCount() int {
	if f.proxyPool == nil {
		return 0
	}
	return f.proxyPool.Size()
}

func (f *Fabric) incrementCount() { atomic.AddInt64(&f.requestCount, 1) }

// IsInternal reports whether rawURL's host equals, or is a subdomain of,
// any configured primary or image host.
func (f *Fabric) IsInternal(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return isMember(host, f.cfg.PrimaryHosts) || isMember(host, f.cfg.ImageHosts)
}

func isMember(host string, hosts []string) bool {
	host = strings.ToLower(host)
	for _, d := range hosts {
		d = strings.ToLower(d)
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (f *Fabric) primaryOrImageList(host string) []string {
	if isMember(host, f.cfg.ImageHosts) {
		return f.cfg.ImageHosts
	}
	return f.cfg.PrimaryHosts
}

// FetchWithRetry fetches rawURL, retrying per the §4.C state machine, and
// returns a buffered 2xx Response or the last categorized error. headers
// overlays the base header set; timeout overrides the configured default
// when positive.
func (f *Fabric) FetchWithRetry(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}

	var resp Response
	var body bytes.Buffer
	err := f.retryLoop(ctx, rawURL, headers, timeout, func(r *http.Response) error {
		resp.StatusCode = r.StatusCode
		resp.Status = r.Status
		resp.Header = r.Header
		_, err := io.Copy(&body, r.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	resp.Body = body.Bytes()
	return &resp, nil
}

// FetchHTML satisfies the narrow Fetcher seam the Catalog Parser needs.
func (f *Fabric) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	resp, err := f.FetchWithRetry(ctx, rawURL, nil, 0)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// DownloadToFile streams rawURL to path. It returns true without any
// network call when path already exists with size > 0; otherwise it
// fetches (with retry) and writes atomically via a temp file + rename,
// creating path's parent directory as needed.
func (f *Fabric) DownloadToFile(ctx context.Context, rawURL, path string) (bool, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	tmpPath := path + "." + uuid.NewString() + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	var written int64
	consumeErr := f.retryLoop(ctx, rawURL, nil, f.cfg.Timeout, func(r *http.Response) error {
		n, err := io.Copy(out, r.Body)
		written = n
		return err
	})
	closeErr := out.Close()

	if consumeErr != nil {
		os.Remove(tmpPath)
		return false, consumeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("%w: %v", ErrIOFailure, closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	log.Printf("downloaded %s (%s)", path, humanize.Bytes(uint64(written)))
	return true, nil
}

type consumeFunc func(*http.Response) error

// retryLoop implements the §4.C state machine: one anti-ban gate check,
// then up to MaxRetries attempts with 429 back-pressure handling,
// domain-rotation/proxy-failover recovery, and exponential backoff.
func (f *Fabric) retryLoop(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, consume consumeFunc) error {
	f.antiBanGate(ctx)

	var rateLimitCount int
	var lastErr error

	for a := 0; a < f.cfg.MaxRetries; a++ {
		resp, dispatchErr := f.dispatch(ctx, rawURL, headers, timeout)

		if dispatchErr == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				f.incrementCount()
				err := consume(resp)
				resp.Body.Close()
				return err
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				resp.Body.Close()
				rateLimitCount++
				if rateLimitCount <= f.cfg.MaxRateLimitRetries {
					wait := time.Duration(minInt(30*rateLimitCount, 120)) * time.Second
					if !sleepCtx(ctx, wait) {
						return ctx.Err()
					}
					a--
					continue
				}
				lastErr = &Error{Kind: KindRateLimited, Message: "429 retry budget exhausted"}
				break
			}

			httpErr := &Error{Kind: KindHTTPStatus, Code: resp.StatusCode, Message: resp.Status}
			resp.Body.Close()
			if ok, rerr := f.rotate(ctx, rawURL, headers, timeout, consume); ok {
				return rerr
			}
			lastErr = httpErr
		} else {
			lastErr = asError(dispatchErr)
			if ok, rerr := f.rotate(ctx, rawURL, headers, timeout, consume); ok {
				return rerr
			}
		}

		if a < f.cfg.MaxRetries-1 {
			if !sleepCtx(ctx, time.Duration(1<<uint(a))*time.Second) {
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// antiBanGate is observed once, at the start of FetchWithRetry, before any
// attempt — not re-checked across retries within the same call.
func (f *Fabric) antiBanGate(ctx context.Context) {
	count := f.RequestCount()
	if count > 0 && count%int64(f.cfg.AntiBanInterval) == 0 {
		sleepCtx(ctx, f.cfg.AntiBanPause)
	}
}

func (f *Fabric) dispatch(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*http.Response, error) {
	if f.proxyPool != nil {
		return f.fetchWithFailover(ctx, rawURL, headers, timeout)
	}
	return f.directFetch(ctx, rawURL, headers, timeout)
}

// rotate retries rawURL against the other hosts in its interchangeable
// list (primary or image), direct (never under a proxy pool — the pool is
// the failover axis there). It returns (true, consumeErr) on the first
// 2xx; (false, nil) if rotation doesn't apply or every alternate fails.
func (f *Fabric) rotate(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration, consume consumeFunc) (bool, error) {
	if f.proxyPool != nil || !f.IsInternal(rawURL) {
		return false, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, nil
	}
	d0 := u.Hostname()
	for _, host := range f.primaryOrImageList(d0) {
		if host == "" || strings.EqualFold(host, d0) {
			continue
		}
		altURL := replaceHost(rawURL, host)
		resp, err := f.directFetch(ctx, altURL, headers, timeout)
		f.incrementCount()
		if err != nil {
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			cErr := consume(resp)
			resp.Body.Close()
			return true, cErr
		}
		resp.Body.Close()
	}
	return false, nil
}

func replaceHost(rawURL, newHost string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = newHost + ":" + port
	} else {
		u.Host = newHost
	}
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
