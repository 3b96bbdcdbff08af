package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seantiz/cellbook/internal/notebook"
)

const (
	unmatched   = "unmatched"
	streamRoute = "/v1/cells/stream"
)

// Endpoints that append cells.
const (
	endpointCells = "cells"
	endpointAgent = "agent"
)

// Outcomes of a request that asked for a cell to be appended.
const (
	runOK           = "ok"
	runCodeFault    = "code_fault"
	runPlannerFault = "planner_fault"
	runStorageFault = "storage_fault"
	runBadRequest   = "bad_request"
	runError        = "error"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellbook_api_requests_total",
			Help: "HTTP requests by route and status class.",
		},
		[]string{"route", "class"},
	)

	apiRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cellbook_api_request_seconds",
			Help:    "HTTP request latency by route, excluding the cell stream.",
			Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60},
		},
		[]string{"route"},
	)

	apiRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellbook_api_runs_total",
			Help: "Requests to append a cell, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal, apiRequestSeconds, apiRunsTotal)

	for _, e := range []string{endpointCells, endpointAgent} {
		for _, o := range []string{runOK, runCodeFault, runPlannerFault, runStorageFault, runBadRequest, runError} {
			apiRunsTotal.WithLabelValues(e, o)
		}
	}
}

// metricsMiddleware counts requests per chi route pattern and status class.
// The stream route is counted when the client disconnects but its duration
// is not observed.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		apiRequestsTotal.WithLabelValues(route, statusClass(ww.Status())).Inc()
		if route != streamRoute {
			apiRequestSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

func statusClass(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status/100) + "xx"
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

// runOutcome classifies the result of a cell or agent request.
func runOutcome(err error, faulted bool) string {
	switch {
	case err == nil && faulted:
		return runCodeFault
	case err == nil:
		return runOK
	case errors.Is(err, notebook.ErrEmptyMessage):
		return runBadRequest
	case errors.Is(err, notebook.ErrPlanner):
		return runPlannerFault
	case errors.Is(err, notebook.ErrStorage):
		return runStorageFault
	default:
		return runError
	}
}

func recordRun(endpoint string, err error, faulted bool) {
	apiRunsTotal.WithLabelValues(endpoint, runOutcome(err, faulted)).Inc()
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
