package pje

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultUserAgent is presented to the portal, which rejects requests
// without a browser-looking agent string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// captchaMarkers flag a response body as a bot challenge. Lowercase, matched
// against the lowered body.
var captchaMarkers = [][]byte{
	[]byte("captcha"),
	[]byte("recaptcha"),
	[]byte("g-recaptcha"),
	[]byte("verificação de segurança"),
	[]byte("prove que você é humano"),
	[]byte("robot"),
}

// notFoundMarkers flag a response body as the portal's missing-page screen.
var notFoundMarkers = [][]byte{
	[]byte("404"),
	[]byte("não encontrada"),
	[]byte("not found"),
	[]byte("página inexistente"),
}

// ClientConfig carries the knobs for the fetch client.
type ClientConfig struct {
	BaseURL   string
	UserAgent string
}

// Client issues rate-limited, retried GETs against the portal and maps each
// response onto the fetch outcome taxonomy. A nil snapshot store disables
// raw-page archiving.
type Client struct {
	cfg       ClientConfig
	fetcher   Fetcher
	policy    Policy
	retry     RetryPolicy
	snapshots BlobStore
	hasher    Hasher
	logger    *zap.Logger
}

// NewClient constructs a Client. Empty config fields fall back to the portal
// defaults. hasher names archived snapshots by content digest; it may be nil
// when snapshots is nil.
func NewClient(cfg ClientConfig, fetcher Fetcher, policy Policy, retry RetryPolicy, snapshots BlobStore, hasher Hasher, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		cfg:       cfg,
		fetcher:   fetcher,
		policy:    policy,
		retry:     retry,
		snapshots: snapshots,
		hasher:    hasher,
		logger:    logger,
	}
}

// FetchPage retrieves one result page for the query. It waits on the rate
// policy before every attempt, retries only retryable outcomes, and returns
// the terminal error otherwise.
func (c *Client) FetchPage(ctx context.Context, query SearchQuery) (FetchResponse, error) {
	target, err := BuildSearchURL(c.cfg.BaseURL, query)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("building search URL: %w", err)
	}

	request := FetchRequest{URL: target, Headers: c.requestHeaders()}

	for attempt := 1; ; attempt++ {
		if err := c.policy.Wait(ctx, target); err != nil {
			return FetchResponse{}, fmt.Errorf("awaiting rate policy: %w", err)
		}

		TotalFetchAttempts.Inc()
		resp, fetchErr := c.fetcher.Fetch(ctx, request)
		outcome := ClassifyResponse(resp, fetchErr)

		switch outcome.Kind {
		case OutcomeOK:
			TotalFetches.Inc()
			c.archive(ctx, query, outcome.Response)
			return outcome.Response, nil
		case OutcomeCaptcha:
			TotalCaptchaHits.Inc()
			c.logger.Warn("captcha challenge detected", zap.String("url", target), zap.Int("page", query.Page))
			return FetchResponse{}, outcome.Err
		case OutcomeNotFound:
			TotalNotFoundHits.Inc()
			c.logger.Warn("page not found", zap.String("url", target), zap.Int("page", query.Page))
			return FetchResponse{}, outcome.Err
		}

		TotalFetchErrors.Inc()
		if !c.retry.ShouldRetry(attempt, outcome) {
			return FetchResponse{}, outcome.Err
		}

		delay := c.retry.Backoff(attempt)
		c.logger.Warn("retrying fetch",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(outcome.Err),
		)
		select {
		case <-ctx.Done():
			return FetchResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.cfg.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
	return h
}

// archive stores the raw body under its content digest for later
// reprocessing. Failures are logged and swallowed: archiving must never fail
// a fetch.
func (c *Client) archive(ctx context.Context, query SearchQuery, resp FetchResponse) {
	if c.snapshots == nil {
		return
	}
	digest, err := c.hasher.Hash(resp.Body)
	if err != nil {
		c.logger.Warn("hashing snapshot failed", zap.Error(err))
		return
	}
	path := snapshotPath(query, digest)
	uri, err := c.snapshots.PutObject(ctx, path, "text/html", bytes.NewReader(resp.Body))
	if err != nil {
		c.logger.Warn("archiving snapshot failed", zap.String("path", path), zap.Error(err))
		return
	}
	c.logger.Debug("archived snapshot", zap.String("uri", uri))
}

// ClassifyResponse maps a raw fetch result onto the outcome taxonomy.
// Captcha markers are checked before status codes because the portal serves
// its challenge page with a 200.
func ClassifyResponse(resp FetchResponse, err error) FetchOutcome {
	if err != nil {
		return FetchOutcome{Kind: OutcomeRetryable, Err: &NetworkError{URL: resp.URL, Err: err}}
	}

	body := bytes.ToLower(resp.Body)
	for _, marker := range captchaMarkers {
		if bytes.Contains(body, marker) {
			return FetchOutcome{Kind: OutcomeCaptcha, Response: resp, Err: &CaptchaError{URL: resp.URL}}
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return FetchOutcome{Kind: OutcomeNotFound, Response: resp, Err: &NotFoundError{URL: resp.URL}}
	}
	for _, marker := range notFoundMarkers {
		if bytes.Contains(body, marker) {
			return FetchOutcome{Kind: OutcomeNotFound, Response: resp, Err: &NotFoundError{URL: resp.URL}}
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return FetchOutcome{
			Kind:     OutcomeRetryable,
			Response: resp,
			Err:      &NetworkError{URL: resp.URL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)},
		}
	}

	return FetchOutcome{Kind: OutcomeOK, Response: resp}
}
