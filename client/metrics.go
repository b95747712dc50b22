package client

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	errs "github.com/satishkumarchitti/AI-Chat-Bot/client/internal/errors"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docupilot",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Backend calls by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

func observe(op string, err error) {
	requestsTotal.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	var ce *ClassifiedError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case !asClassified(err, &ce):
		return "error"
	case ce.StatusCode == 401:
		return "unauthorized"
	case ce.StatusCode == 404:
		return "not_found"
	case ce.StatusCode >= 500:
		return "server_error"
	case ce.StatusCode >= 400:
		return "client_error"
	case ce.StatusCode == 0 && ce.Category == errs.Recoverable:
		return "network_error"
	default:
		return "error"
	}
}

func asClassified(err error, target **ClassifiedError) bool { return errors.As(err, target) }
