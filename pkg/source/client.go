// Package source fetches the externally produced outcome documents: the
// detailed per-study extraction and the pre-summarized per-drug statistics.
// The two documents are independent; a failure fetching one never affects
// the other.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Config contains configuration for the dataset client
type Config struct {
	DetailedURL   string
	SummarizedURL string
	Timeout       time.Duration
	RateLimit     int // requests per second against the data host
}

// Client retrieves outcome documents over HTTP with rate limiting, a
// circuit breaker per endpoint, and an optional Redis document cache that
// degrades to direct fetch when unavailable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   map[string]*gobreaker.CircuitBreaker
	cache      *DocumentCache
	logger     *logrus.Logger
}

// NewClient creates a dataset client. cache may be nil.
func NewClient(cfg Config, cache *DocumentCache, logger *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 3
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, 2)
	for _, name := range []string{"detailed", "summarized"} {
		name := name
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(n string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"endpoint": n,
					"from":     from.String(),
					"to":       to.String(),
				}).Warn("Source circuit breaker state changed")
			},
		})
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		breakers:   breakers,
		cache:      cache,
		logger:     logger,
	}
}

// FetchDetailed retrieves the detailed per-study outcomes document
func (c *Client) FetchDetailed(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, "detailed", c.cfg.DetailedURL)
}

// FetchSummarized retrieves the pre-aggregated outcomes document
func (c *Client) FetchSummarized(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, "summarized", c.cfg.SummarizedURL)
}

func (c *Client) fetch(ctx context.Context, name, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("no URL configured for %s outcomes document", name)
	}

	if c.cache != nil {
		if body, hit, err := c.cache.Get(ctx, url); err == nil && hit {
			c.logger.WithField("endpoint", name).Debug("Document cache hit")
			return body, nil
		} else if err != nil {
			c.logger.WithError(err).WithField("endpoint", name).Debug("Document cache lookup failed")
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breakers[name].Execute(func() (interface{}, error) {
		return c.doFetch(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s outcomes document: %w", name, err)
	}
	body := result.([]byte)

	if c.cache != nil {
		if err := c.cache.Set(ctx, url, body, 0); err != nil {
			c.logger.WithError(err).WithField("endpoint", name).Debug("Document cache write failed")
		}
	}

	c.logger.WithFields(logrus.Fields{
		"endpoint": name,
		"bytes":    len(body),
	}).Info("Fetched outcomes document")
	return body, nil
}

func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("data host returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
