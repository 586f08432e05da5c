// Package metrics exposes accounting counters to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "familyxp"

type Metrics struct {
	registry *prometheus.Registry

	submissions   *prometheus.CounterVec
	pointsAwarded prometheus.Counter
	deposits      prometheus.Counter
	depositPoints prometheus.Counter
	milestones    *prometheus.CounterVec
	goalsDone     prometheus.Counter
	tickets       *prometheus.CounterVec
	swept         *prometheus.CounterVec
	sweepErrors   prometheus.Counter
	wsClients     prometheus.GaugeFunc
}

// New registers all collectors on a private registry. clients, if non-nil,
// reports the number of connected websocket clients.
func New(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_submissions_total",
			Help:      "Task submissions by resulting completion status.",
		}, []string{"status"}),
		pointsAwarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points credited for approved tasks.",
		}),
		deposits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_deposits_total",
			Help:      "Deposits into goals.",
		}),
		depositPoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_deposit_points_total",
			Help:      "Points moved from balances into goals.",
		}),
		milestones: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goal_milestones_total",
			Help:      "Milestones reached, by percentage.",
		}, []string{"percentage"}),
		goalsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goals_completed_total",
			Help:      "Goals reaching their target.",
		}),
		tickets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_total",
			Help:      "Reward ticket transitions, by action.",
		}, []string{"action"}),
		swept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_processed_total",
			Help:      "Records resolved by the expiry sweep, by kind.",
		}, []string{"kind"}),
		sweepErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Records the expiry sweep failed to resolve.",
		}),
	}
	if clients != nil {
		m.wsClients = f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}, func() float64 { return float64(clients()) })
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Submission(status string, points int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
	if points > 0 {
		m.pointsAwarded.Add(float64(points))
	}
}

func (m *Metrics) PointsAwarded(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.Add(float64(points))
}

func (m *Metrics) Deposit(amount int) {
	if m == nil {
		return
	}
	m.deposits.Inc()
	m.depositPoints.Add(float64(amount))
}

func (m *Metrics) Milestone(percentage string) {
	if m == nil {
		return
	}
	m.milestones.WithLabelValues(percentage).Inc()
}

func (m *Metrics) GoalCompleted() {
	if m == nil {
		return
	}
	m.goalsDone.Inc()
}

func (m *Metrics) Ticket(action string) {
	if m == nil {
		return
	}
	m.tickets.WithLabelValues(action).Inc()
}

func (m *Metrics) Swept(kind string, n int, failed int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.swept.WithLabelValues(kind).Add(float64(n))
	}
	if failed > 0 {
		m.sweepErrors.Add(float64(failed))
	}
}
