package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Submission workflow
	SubmissionDuration *prometheus.HistogramVec
	SubmissionResults  *prometheus.CounterVec
	ReportsPurged      prometheus.Counter
	ReportsCreated     prometheus.Counter

	// Mail relay circuit breaker, 1 on the current state
	MailCircuitState *prometheus.GaugeVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftreports",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shiftreports",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// Sane initial defaults
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "shiftreports",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shiftreports",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftreports",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),

		SubmissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shiftreports",
				Subsystem: "submissions",
				Name:      "duration_seconds",
				Help:      "Send workflow duration by result",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"result"}, // result=sent|delivery_failed|purge_failed|busy
		),
		SubmissionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftreports",
				Subsystem: "submissions",
				Name:      "results_total",
				Help:      "Send workflow outcomes.",
			},
			[]string{"result"},
		),
		ReportsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shiftreports",
				Subsystem: "submissions",
				Name:      "reports_purged_total",
				Help:      "Reports removed after a successful delivery.",
			},
		),
		ReportsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "shiftreports",
				Subsystem: "reports",
				Name:      "created_total",
				Help:      "Reports filed.",
			},
		),
		MailCircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "shiftreports",
				Subsystem: "mail",
				Name:      "circuit_state",
				Help:      "Mail relay circuit breaker state (1 = current).",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.SubmissionDuration, p.SubmissionResults, p.ReportsPurged, p.ReportsCreated, p.MailCircuitState)

	return p
}

// ObserveSubmission records one send workflow outcome.
func (p *Prom) ObserveSubmission(result string, d time.Duration, purged int64) {
	p.SubmissionResults.WithLabelValues(result).Inc()
	p.SubmissionDuration.WithLabelValues(result).Observe(d.Seconds())

	if purged > 0 {
		p.ReportsPurged.Add(float64(purged))
	}
}

var circuitStates = []string{"closed", "open", "half_open"}

// ObserveMailCircuit marks state as the current breaker state.
func (p *Prom) ObserveMailCircuit(state string) {
	for _, s := range circuitStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.MailCircuitState.WithLabelValues(s).Set(v)
	}
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
