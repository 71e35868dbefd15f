// internal/adapters/store/client.go
package store

import (
	"bytes"
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

	"terra_viajes/internal/adapters/observability"
	"terra_viajes/internal/domain"
)

// ErrUnavailable covers transport-level failures; the caller shows a
// generic connection message instead of store-provided text.
var ErrUnavailable = errors.New("could not reach the booking store")

// Client talks to the booking store's public endpoints. Status lookups
// are idempotent and retried on transient failures; completion
// submissions are sent exactly once per call.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("store base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// wire envelopes

type statusResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Booking *domain.Booking `json:"booking,omitempty"`
}

type completeRequest struct {
	Token      string             `json:"token"`
	Passengers []domain.Passenger `json:"passengers"`
}

type completeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Status looks up a booking snapshot by token and/or order id, carrying
// whichever identifiers are present.
func (c *Client) Status(ctx context.Context, token, orderID string) (domain.Booking, error) {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	if orderID != "" {
		q.Set("order_id", orderID)
	}

	start := time.Now()
	body, status, err := c.get(ctx, c.base+"/v1/bookings/status?"+q.Encode())
	observability.ObserveExternal("store", "status", status, time.Since(start))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !out.Success || out.Booking == nil {
		if out.Error != "" {
			return domain.Booking{}, errors.New(out.Error)
		}
		return domain.Booking{}, fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	return *out.Booking, nil
}

// Complete submits the full passenger batch for a token in one request.
// No retries: re-submission is the user's explicit action.
func (c *Client) Complete(ctx context.Context, token string, ps []domain.Passenger) error {
	payload, err := json.Marshal(completeRequest{Token: token, Passengers: ps})
	if err != nil {
		return err
	}
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/bookings/complete", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("store", "complete", 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("store", "complete", resp.StatusCode, time.Since(start))

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out completeResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if !out.Success {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// get performs a GET with client-side rate limiting and bounded retries
// on 429/transient 5xx, honoring Retry-After when provided. The response
// body is returned for both success and store-level error statuses so
// the caller can surface the store's message verbatim.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return nil, 0, lastErr
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			return nil, resp.StatusCode, lastErr

		default:
			b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			if err != nil {
				return nil, resp.StatusCode, err
			}
			return b, resp.StatusCode, nil
		}
	}
	return nil, 0, lastErr
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

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent.
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

// backoff doubles each attempt (200ms, 400ms, 800ms...) with jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
