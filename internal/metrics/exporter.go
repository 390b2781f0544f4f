package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chairtools/chairstat/internal/stats"
)

// Exporter publishes the latest aggregates as Prometheus gauges.
type Exporter struct {
	capacity        *prometheus.GaugeVec
	members         *prometheus.GaugeVec
	membersDeclared *prometheus.GaugeVec
	activeMembers   *prometheus.GaugeVec

	activePapers    prometheus.Gauge
	withdrawnPapers prometheus.Gauge
	flaggedPapers   prometheus.Gauge
	missingReviews  prometheus.Gauge
	papersByReviews *prometheus.GaugeVec

	lastRefresh   prometheus.Gauge
	refreshErrors prometheus.Counter
}

// NewExporter creates the gauges and registers them with registerer. A nil
// registerer leaves them unregistered.
func NewExporter(registerer prometheus.Registerer) *Exporter {
	e := &Exporter{
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chairstat_capacity_reviews",
			Help: "Sum of declared maximum loads per role",
		}, []string{"role"}),
		members: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chairstat_members",
			Help: "Members of each role group",
		}, []string{"role"}),
		membersDeclared: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chairstat_members_declared",
			Help: "Members who declared a maximum load",
		}, []string{"role"}),
		activeMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chairstat_members_active",
			Help: "Members with a non-zero maximum load",
		}, []string{"role"}),

		activePapers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chairstat_active_papers",
			Help: "Submissions that are not withdrawn or desk rejected",
		}),
		withdrawnPapers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chairstat_withdrawn_papers",
			Help: "Submissions withdrawn or desk rejected",
		}),
		flaggedPapers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chairstat_flagged_papers",
			Help: "Active papers with fewer submitted reviews than required",
		}),
		missingReviews: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chairstat_missing_reviews",
			Help: "Assigned reviews not yet submitted",
		}),
		papersByReviews: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chairstat_papers_by_reviews",
			Help: "Active papers by number of submitted reviews",
		}, []string{"reviews"}),

		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chairstat_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful refresh",
		}),
		refreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chairstat_refresh_errors_total",
			Help: "Refreshes that failed",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			e.capacity,
			e.members,
			e.membersDeclared,
			e.activeMembers,
			e.activePapers,
			e.withdrawnPapers,
			e.flaggedPapers,
			e.missingReviews,
			e.papersByReviews,
			e.lastRefresh,
			e.refreshErrors,
		)
	}

	return e
}

func (e *Exporter) ObserveCapacity(reports []stats.CapacityReport) {
	for _, r := range reports {
		role := r.Role.Key()
		e.capacity.WithLabelValues(role).Set(float64(r.Total))
		e.members.WithLabelValues(role).Set(float64(r.Members))
		e.membersDeclared.WithLabelValues(role).Set(float64(r.Declared))
		e.activeMembers.WithLabelValues(role).Set(float64(r.Active))
	}
}

func (e *Exporter) ObserveProgress(r stats.ProgressReport) {
	e.activePapers.Set(float64(r.ActivePapers))
	e.withdrawnPapers.Set(float64(r.WithdrawnPapers))
	e.flaggedPapers.Set(float64(len(r.Flagged)))
	e.missingReviews.Set(float64(r.MissingReviews))

	// Buckets that emptied since the last refresh must not linger.
	e.papersByReviews.Reset()
	for _, b := range r.Histogram {
		e.papersByReviews.WithLabelValues(strconv.Itoa(b.Reviews)).Set(float64(b.Papers))
	}
}

func (e *Exporter) RefreshSucceeded(at time.Time) {
	e.lastRefresh.Set(float64(at.Unix()))
}

func (e *Exporter) RefreshFailed() {
	e.refreshErrors.Inc()
}
