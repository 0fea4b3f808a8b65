package persistence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks unit-of-work commits. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Commits        *prometheus.CounterVec
	CommitDuration prometheus.Histogram
	AuditRecords   *prometheus.CounterVec
}

// NewMetrics registers the unit-of-work metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_uow_commits_total",
			Help: "Unit of work Complete calls by outcome",
		}, []string{"outcome"}),
		CommitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hms_uow_commit_duration_seconds",
			Help:    "Duration of unit of work Complete calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		AuditRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hms_audit_records_total",
			Help: "Audit records written by action",
		}, []string{"action"}),
	}
}

// ObserveCommit records one Complete call started at start.
func (m *Metrics) ObserveCommit(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Commits.WithLabelValues(outcome).Inc()
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

// IncAuditRecords counts one audit record written for action.
func (m *Metrics) IncAuditRecords(action Action) {
	if m == nil {
		return
	}
	m.AuditRecords.WithLabelValues(string(action)).Inc()
}
