package providers

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"umrah_prices/internal/adapters/observability"
	"umrah_prices/internal/domain"
)

// Config describes one external source. A provider whose RequiresKey is set
// and whose APIKey is empty is skipped at registry build time.
type Config struct {
	Name         string
	BaseURL      string
	APIKey       string
	RequiresKey  bool
	RPS          int
	Burst        int
	MaxWait      time.Duration // bound on token acquisition before RateLimited
	Timeout      time.Duration // per-call HTTP timeout
	Priority     int           // fan-out order, lower first
	CacheTTLSec  int
	RefreshEvery time.Duration // recurring crawl cadence
}

// httpClient is the shared outbound client: per-provider token bucket,
// retries on transient statuses, Retry-After support, and classification
// of failures into the domain error taxonomy.
type httpClient struct {
	name    string
	hc      *http.Client
	rl      *rate.Limiter
	maxWait time.Duration
	headers map[string]string
}

func newHTTPClient(cfg Config, headers map[string]string) *httpClient {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = rps
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	return &httpClient{
		name:    cfg.Name,
		hc:      &http.Client{Timeout: timeout},
		rl:      rate.NewLimiter(rate.Limit(rps), burst),
		maxWait: maxWait,
		headers: headers,
	}
}

// getJSON performs a rate-limited GET and decodes the body into out.
// Every attempt, retries included, takes a token from the provider's
// bucket so a retry storm cannot exceed the configured rate.
func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for i := 0; i < 4; i++ {
		if err := c.waitToken(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%s: %v: %w", c.name, err, domain.ErrPermanent)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "umrah-prices/1.0")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveProvider(c.name, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%s: %v: %w", c.name, err, domain.ErrTransient)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}

		observability.ObserveProvider(c.name, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%s: decode: %v: %w", c.name, err, domain.ErrPermanent)
			}
			return nil

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%s: status %d: %w", c.name, resp.StatusCode, domain.ErrAuth)

		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			resp.Body.Close()
			return fmt.Errorf("%s: status %d: %w", c.name, resp.StatusCode, domain.ErrPermanent)

		case http.StatusTooManyRequests:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%s: status 429: %w", c.name, domain.ErrRateLimited)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%s: status %d: %w", c.name, resp.StatusCode, domain.ErrTransient)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%s: status %d: %s: %w",
				c.name, resp.StatusCode, strings.TrimSpace(string(b)), domain.ErrTransient)
		}
	}

	return lastErr
}

// waitToken blocks on the token bucket for at most maxWait; an expired
// wait fails with RateLimited rather than stalling the worker indefinitely.
func (c *httpClient) waitToken(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.maxWait)
	err := c.rl.Wait(waitCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: token wait exceeded %s: %w", c.name, c.maxWait, domain.ErrRateLimited)
	}
	return nil
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

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
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
