// Package fetch downloads auxiliary URL text for a claim
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/cache"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/util"
	"github.com/ppiankov/evalia/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids the fetch
var ErrDisallowed = errors.New("blocked by robots.txt")

// Options configures a Fetcher
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	MaxBodyBytes      int64
	MaxChars          int
	RespectRobots     bool
	Readability       bool
	RequestsPerSecond float64
	Burst             int
	HTTPProxy         string
	HTTPSProxy        string
	NoProxy           string
}

// OptionsFromConfig maps the HTTP, fetch and rate limiting sections onto Options
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Timeout:           cfg.HTTP.Timeout,
		UserAgent:         cfg.HTTP.UserAgent,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		MaxChars:          cfg.Fetch.MaxChars,
		RespectRobots:     cfg.Fetch.RespectRobots,
		Readability:       cfg.Fetch.Readability,
		RequestsPerSecond: cfg.RateLimiting.RequestsPerSecond,
		Burst:             cfg.RateLimiting.BurstSize,
		HTTPProxy:         cfg.HTTP.HTTPProxy,
		HTTPSProxy:        cfg.HTTP.HTTPSProxy,
		NoProxy:           cfg.HTTP.NoProxy,
	}
}

// Fetcher retrieves a page and reduces it to readable text
type Fetcher struct {
	httpClient *http.Client
	opts       Options
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
	cache      cache.Cache
	logger     *zap.Logger
}

// New creates a Fetcher; c and logger may be nil
func New(opts Options, c cache.Cache, logger *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2_000_000
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 3000
	}
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	return &Fetcher{
		httpClient: client,
		opts:       opts,
		robots:     util.NewRobotsChecker(opts.UserAgent, client),
		limiter:    worker.NewLimiter(opts.RequestsPerSecond, opts.Burst),
		cache:      c,
		logger:     logger.Named("fetch"),
	}
}

// FetchText returns up to MaxChars characters of readable text from rawURL
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		return "", err
	}

	key := cache.Key("page", target.String())
	if cached, ok := f.cache.Get(key); ok {
		f.logger.Debug("Cache hit", zap.String("url", target.String()))
		return string(cached), nil
	}

	var crawlDelay time.Duration
	if f.opts.RespectRobots {
		allowed, delay, err := f.robots.CanFetch(ctx, target.String())
		if err != nil {
			f.logger.Debug("robots.txt unavailable, allowing", zap.String("url", target.String()), zap.Error(err))
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s", ErrDisallowed, target.String())
		}
		crawlDelay = delay
	}

	if err := f.limiter.WaitWithDelay(ctx, target.String(), crawlDelay); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	body, contentType, finalURL, err := f.get(ctx, target)
	if err != nil {
		return "", err
	}

	text := f.extract(body, contentType, finalURL)
	text = truncate(text, f.opts.MaxChars)

	if err := f.cache.Set(key, []byte(text), 0); err != nil {
		f.logger.Warn("Cache write failed", zap.Error(err))
	}

	f.logger.Info("Fetched URL text",
		zap.String("url", target.String()),
		zap.String("final_url", finalURL.String()),
		zap.Int("chars", len([]rune(text))))
	return text, nil
}

func (f *Fetcher) get(ctx context.Context, target *url.URL) ([]byte, string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, "", nil, fmt.Errorf("read body: %w", err)
	}

	return body, resp.Header.Get("Content-Type"), resp.Request.URL, nil
}

// extract picks readable article text for HTML and passes other text through
func (f *Fetcher) extract(body []byte, contentType string, pageURL *url.URL) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	isHTML := mediaType == "text/html" || mediaType == "application/xhtml+xml" ||
		(mediaType == "" && looksLikeHTML(body))
	if !isHTML {
		return collapseSpace(string(body))
	}

	if f.opts.Readability {
		article, err := readability.FromReader(bytes.NewReader(body), pageURL)
		if err == nil {
			if text := collapseSpace(article.TextContent); text != "" {
				return text
			}
		} else {
			f.logger.Debug("Readability failed, using visible text", zap.Error(err))
		}
	}

	return VisibleText(body)
}

func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL has no host: %s", rawURL)
	}
	u.Fragment = ""
	return u, nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// truncate keeps the first n characters
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
