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
	// Postgres and the session store
	StoreOpDuration  *prometheus.HistogramVec
	StoreErrorsTotal *prometheus.CounterVec

	// Access
	AccessDecisions *prometheus.CounterVec
	RoleSwitches    *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripdesk",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tripdesk",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// Sane initial defaults
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "tripdesk",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tripdesk",
				Subsystem: "store",
				Name:      "op_duration_seconds",
				Help:      "Storage operation latency by store and logical op.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"store", "op", "status"}, // store=postgres|sessions, status=ok|miss|error
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripdesk",
				Subsystem: "store",
				Name:      "errors_total",
				Help:      "Storage errors by store, logical op and class.",
			},
			[]string{"store", "op", "class"},
		),

		AccessDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripdesk",
				Subsystem: "access",
				Name:      "decisions_total",
				Help:      "Access decisions by section and outcome.",
			},
			[]string{"section", "outcome"}, // outcome=allow|deny|redirect
		),
		RoleSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tripdesk",
				Subsystem: "access",
				Name:      "role_switches_total",
				Help:      "Role switch attempts by result.",
			},
			[]string{"result"}, // result=ok|forbidden|invalid_role|unauthenticated|error
		),
	}
	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.StoreOpDuration, p.StoreErrorsTotal, p.AccessDecisions, p.RoleSwitches)

	return p
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

func (p *Prom) AccessDecision(section, outcome string) {
	if section == "" {
		section = "unmatched"
	}
	p.AccessDecisions.WithLabelValues(section, outcome).Inc()
}

func (p *Prom) RoleSwitch(result string) {
	p.RoleSwitches.WithLabelValues(result).Inc()
}
