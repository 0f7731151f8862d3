// Package sources checks the references suggested by the model
package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/util"
)

// Checker probes suggested source URLs concurrently
type Checker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
	authority  *AuthorityClassifier
	logger     *zap.Logger
}

// NewChecker creates a checker from the configuration
func NewChecker(cfg *model.Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Sources.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	workers := cfg.Concurrency.ValidationWorkers
	if workers <= 0 {
		workers = 8
	}

	return &Checker{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: workers,
		userAgent:  cfg.HTTP.UserAgent,
		authority:  NewAuthorityClassifier(&cfg.Authority),
		logger:     logger.Named("sources"),
	}
}

// Check probes every source and returns one result per source, in order.
// Each URL gets a single attempt.
func (c *Checker) Check(ctx context.Context, srcs []model.Source) []model.SourceCheck {
	results := make([]model.SourceCheck, len(srcs))
	if len(srcs) == 0 {
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, src := range srcs {
		wg.Add(1)
		go func(idx int, s model.Source) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = model.SourceCheck{
					URL:        s.URL,
					Annotation: s.Annotation,
					Authority:  c.authority.Classify(s.URL),
					Error:      "context cancelled",
				}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkOne(ctx, s)
		}(i, src)
	}

	wg.Wait()

	dead := 0
	for _, r := range results {
		if r.IsDead {
			dead++
		}
	}
	c.logger.Info("Checked sources", zap.Int("total", len(results)), zap.Int("dead", dead))

	return results
}

func (c *Checker) checkOne(ctx context.Context, src model.Source) model.SourceCheck {
	result := model.SourceCheck{
		URL:        src.URL,
		Annotation: src.Annotation,
		Authority:  c.authority.Classify(src.URL),
	}

	if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
		result.Error = "not an http(s) URL"
		result.IsDead = true
		return result
	}

	resp, err := c.do(ctx, http.MethodHead, src.URL)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		// Some servers refuse HEAD; ask for the page instead
		_ = resp.Body.Close()
		resp, err = c.do(ctx, http.MethodGet, src.URL)
	}
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.IsDead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.IsAccessible = true
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.IsDead = true
	}

	if final := resp.Request.URL.String(); final != src.URL {
		result.RedirectURL = final
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = &t
		}
	}

	return result
}

func (c *Checker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return c.httpClient.Do(req)
}
