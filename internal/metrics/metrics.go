// Package metrics defines the Prometheus collectors for FirmDesk and the Fiber
// middleware that feeds the HTTP ones.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds every collector. A nil *Recorder records nothing, which keeps
// service tests free of registry setup.
type Recorder struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	taskTransitions   *prometheus.CounterVec
	tasksOverdue      prometheus.Counter
	approvalDecisions *prometheus.CounterVec
	accessDenials     *prometheus.CounterVec
	hierarchyFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		taskTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdesk_task_transitions_total",
				Help: "Task status changes applied, by source and target status.",
			},
			[]string{"from", "to"},
		),
		tasksOverdue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firmdesk_tasks_marked_overdue_total",
			Help: "Tasks moved to overdue by lazy detection.",
		}),
		approvalDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdesk_approval_decisions_total",
				Help: "Approval decisions, by outcome.",
			},
			[]string{"decision"},
		),
		accessDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdesk_access_denials_total",
				Help: "Requests refused by authorization, by error code.",
			},
			[]string{"code"},
		),
		hierarchyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "firmdesk_hierarchy_failures_total",
				Help: "Root owner lookups that did not find an owner, by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		r.httpInFlight, r.httpRequestsTotal, r.httpRequestDuration,
		r.taskTransitions, r.tasksOverdue, r.approvalDecisions,
		r.accessDenials, r.hierarchyFailures,
	)
	return r
}

// Handler serves the metrics in g as a Fiber handler.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Instrument records request count, latency and in-flight gauge per route.
// The route label is the registered pattern (/api/tasks/:id), never the raw path.
func (r *Recorder) Instrument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r == nil {
			return c.Next()
		}
		r.httpInFlight.Inc()
		defer r.httpInFlight.Dec()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := "unmatched"
		if rt := c.Route(); rt != nil && rt.Path != "" {
			route = rt.Path
		}
		labels := []string{c.Method(), route, strconv.Itoa(status)}
		r.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		r.httpRequestsTotal.WithLabelValues(labels...).Inc()
		return err
	}
}

// TaskTransition counts one applied status change.
func (r *Recorder) TaskTransition(from, to string) {
	if r == nil {
		return
	}
	r.taskTransitions.WithLabelValues(from, to).Inc()
}

// TasksOverdue counts tasks moved to overdue.
func (r *Recorder) TasksOverdue(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.tasksOverdue.Add(float64(n))
}

// ApprovalDecision counts an approve or reject.
func (r *Recorder) ApprovalDecision(decision string) {
	if r == nil {
		return
	}
	r.approvalDecisions.WithLabelValues(decision).Inc()
}

// AccessDenied counts a refused request by error code.
func (r *Recorder) AccessDenied(code string) {
	if r == nil {
		return
	}
	r.accessDenials.WithLabelValues(code).Inc()
}

// HierarchyFailure counts a root lookup that ended without an owner.
func (r *Recorder) HierarchyFailure(outcome string) {
	if r == nil {
		return
	}
	r.hierarchyFailures.WithLabelValues(outcome).Inc()
}
