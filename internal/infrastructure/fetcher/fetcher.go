// Package fetcher downloads bulletin pages with bounded parallelism,
// retries, and a circuit breaker around the upstream host.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/planner"
	"BulletinTracker/internal/ports"
)

const (
	backoffBase   = 1 * time.Second
	backoffFactor = 2
	jitterRatio   = 0.2
	maxBodyBytes  = 8 << 20
)

// Options bound the fetcher's behavior.
type Options struct {
	MaxWorkers int
	Timeout    time.Duration
	Retries    int
	UserAgent  string
}

// Fetcher satisfies ports.BulletinFetcher over a shared HTTP client.
type Fetcher struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	opts    Options
	logger  *slog.Logger
}

var _ ports.BulletinFetcher = (*Fetcher)(nil)

// New wires an HTTP client and a breaker guarding the upstream host.
func New(client *http.Client, opts Options, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bulletin-source",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Fetcher{
		client:  client,
		breaker: breaker,
		opts:    opts,
		logger:  logger,
	}
}

// Fetch downloads every candidate and streams results as they complete.
// At most MaxWorkers requests are in flight; the channel is bounded so
// downstream consumers throttle the pool. Output order is unspecified.
func (f *Fetcher) Fetch(ctx context.Context, candidates []planner.Candidate) <-chan ports.FetchResult {
	results := make(chan ports.FetchResult, 2*f.opts.MaxWorkers)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.opts.MaxWorkers)

	go func() {
		defer close(results)
		for _, candidate := range candidates {
			if groupCtx.Err() != nil {
				break
			}
			cand := candidate
			group.Go(func() error {
				result := f.fetchOne(groupCtx, cand)
				select {
				case results <- result:
				case <-groupCtx.Done():
				}
				return nil
			})
		}
		_ = group.Wait()
	}()

	return results
}

// Verify probes a candidate URL with HEAD without downloading the body.
func (f *Fetcher) Verify(ctx context.Context, candidate planner.Candidate) error {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %v: %w", candidate.URL, err, domain.ErrNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("probe %s: %w", candidate.URL, domain.ErrNotFound)
	case resp.StatusCode >= 400:
		return fmt.Errorf("probe %s returned %s: %w", candidate.URL, resp.Status, domain.ErrNetwork)
	}

	return nil
}

func (f *Fetcher) fetchOne(ctx context.Context, candidate planner.Candidate) ports.FetchResult {
	result := ports.FetchResult{Candidate: candidate}

	for attempt := 0; ; attempt++ {
		result.Retries = attempt

		if err := ctx.Err(); err != nil {
			result.Err = fmt.Errorf("fetch %s: %w", candidate.URL, domain.ErrCancelled)
			return result
		}

		status, body, err := f.attempt(ctx, candidate.URL)
		result.Status = status
		if err == nil {
			result.Body = body
			result.Err = nil
			return result
		}
		result.Err = err

		if !retryable(status, err) || attempt >= f.opts.Retries {
			return result
		}

		delay := backoffDelay(attempt)
		if f.logger != nil {
			f.logger.Debug("retrying fetch",
				"url", candidate.URL, "attempt", attempt+1, "delay", delay, "error", err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Err = fmt.Errorf("fetch %s: %w", candidate.URL, domain.ErrCancelled)
			return result
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, url string) (int, []byte, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.request(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, fmt.Errorf("upstream circuit open: %w", domain.ErrNetwork)
		}
		return 0, nil, err
	}

	resp := out.(*response)
	return resp.status, resp.body, resp.err
}

// response carries the outcome of one HTTP attempt. A 4xx lands here with
// err set instead of failing the breaker call; missing months are routine
// during backfill and must not trip the breaker.
type response struct {
	status int
	body   []byte
	err    error
}

func (f *Fetcher) request(ctx context.Context, url string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %v: %w", url, err, domain.ErrNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &response{
			status: resp.StatusCode,
			err:    fmt.Errorf("%s: %w", url, domain.ErrNotFound),
		}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &response{
			status: resp.StatusCode,
			err:    fmt.Errorf("%s returned %s: %w", url, resp.Status, domain.ErrNetwork),
		}, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s returned %s: %w", url, resp.Status, domain.ErrNetwork)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %v: %w", url, err, domain.ErrNetwork)
	}

	return &response{status: resp.StatusCode, body: body}, nil
}

// retryable reports whether the retry loop should make another attempt.
// 4xx responses are terminal; transport failures and 5xx are not.
func retryable(status int, err error) bool {
	if errors.Is(err, domain.ErrCancelled) {
		return false
	}
	if status >= 400 && status < 500 {
		return false
	}
	return true
}

func backoffDelay(attempt int) time.Duration {
	delay := backoffBase
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
	}
	jitter := 1 + jitterRatio*(2*rand.Float64()-1)
	return time.Duration(float64(delay) * jitter)
}
