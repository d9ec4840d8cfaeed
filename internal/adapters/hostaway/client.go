// internal/adapters/hostaway/client.go
package hostaway

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

type Client struct {
	base      string
	accountID string
	hc        *http.Client
	key       string
	rl        *rate.Limiter
}

func New(base, accountID, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:      strings.TrimRight(base, "/"),
		accountID: accountID,
		hc:        &http.Client{Timeout: 20 * time.Second},
		key:       key,
		rl:        rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrNotFound     = fmt.Errorf("hostaway: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("hostaway: unauthorized")
	ErrForbidden    = errors.New("hostaway: forbidden")
)

// GetReviews lists every review for the configured account.
func (c *Client) GetReviews(ctx context.Context) (domain.ReviewsEnvelope, error) {
	u := fmt.Sprintf("%s/reviews?accountId=%s", c.base, url.QueryEscape(c.accountID))
	var out domain.ReviewsEnvelope
	start := time.Now()
	status, err := c.get(ctx, u, &out)
	observability.ObserveExternal("hostaway", "/reviews", status, time.Since(start))
	if err != nil {
		return domain.ReviewsEnvelope{}, err
	}
	return out, nil
}

// ---- Internals ----

const maxAttempts = 4

// get performs a rate-limited GET and decodes the JSON body into out.
// 429 and transient 5xx are retried with backoff (or Retry-After), but only
// while the caller's deadline leaves room for the wait. The returned int is
// the last HTTP status seen (0 when no response arrived).
func (c *Client) get(ctx context.Context, u string, out any) (int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	lastStatus := 0
	for i := 0; ; i++ {
		status, wait, err := c.attempt(ctx, u, out)
		if status != 0 {
			lastStatus = status
		}
		if err == nil || wait < 0 {
			return lastStatus, err
		}
		if wait == 0 {
			wait = backoff(i)
		}
		if i+1 >= maxAttempts || !fitsDeadline(ctx, wait) || !sleepCtx(ctx, wait) {
			return lastStatus, err
		}
	}
}

// attempt sends one request. A non-negative wait means the error is worth
// retrying after that delay; -1 means give up.
func (c *Client) attempt(ctx context.Context, u string, out any) (status int, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, -1, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flex-reviews/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, -1, fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
		}
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, -1, fmt.Errorf("%w: decode reviews: %v", domain.ErrMalformed, err)
		}
		return resp.StatusCode, -1, nil
	case http.StatusNotFound:
		return resp.StatusCode, -1, ErrNotFound
	case http.StatusUnauthorized:
		return resp.StatusCode, -1, ErrUnauthorized
	case http.StatusForbidden:
		return resp.StatusCode, -1, ErrForbidden
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resp.StatusCode, retryAfter(resp), fmt.Errorf("%w: remote %d", domain.ErrTransport, resp.StatusCode)
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, -1, fmt.Errorf("%w: bad status %d: %s", domain.ErrTransport, resp.StatusCode, strings.TrimSpace(string(b)))
	}
}

// fitsDeadline reports whether waiting d still leaves the context alive.
func fitsDeadline(ctx context.Context, d time.Duration) bool {
	dl, ok := ctx.Deadline()
	return !ok || time.Until(dl) > d
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay (200ms, 400ms, 800ms...) with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
