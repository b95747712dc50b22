package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	errs "github.com/satishkumarchitti/AI-Chat-Bot/client/internal/errors"
)

const headerIdempotencyKey = "Idempotency-Key"

// Retry bounds retries of idempotent reads. A zero MaxElapsed disables them.
type Retry struct {
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

func (r Retry) backOff(ctx context.Context) backoff.BackOff {
	if r.MaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	exp := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		exp.InitialInterval = r.InitialInterval
	}
	exp.Multiplier = 2
	exp.MaxElapsedTime = r.MaxElapsed
	exp.Reset()
	return backoff.WithContext(exp, ctx)
}

// withRetry runs fn until it succeeds, fails irrecoverably or the policy
// gives up. The last error is returned unchanged.
func withRetry(ctx context.Context, r Retry, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errs.IsIrrecoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, r.backOff(ctx))
}

// check turns a transport error or an error status into a classified error.
func check(ctx context.Context, op string, resp *resty.Response, err error) error {
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return errs.NewNetworkError(op, err)
	}
	if resp.IsError() {
		return errs.NewHTTPError(resp.StatusCode(), string(resp.Body()), op)
	}
	return nil
}

func decode(op string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errs.NewDecodeError(op, err)
	}
	return nil
}

// getJSON issues a retried GET and decodes the body into out.
func getJSON(ctx context.Context, rc *resty.Client, r Retry, op, path string, params map[string]string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return withRetry(ctx, r, func() error {
		resp, rerr := rc.R().SetContext(ctx).SetPathParams(params).Get(path)
		if err := check(ctx, op, resp, rerr); err != nil {
			return err
		}
		return decode(op, resp, out)
	})
}
