package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Publishing
	ObjectsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadmirror_objects_published_total",
		Help: "The total number of delta events published",
	}, []string{"type", "phase"})

	PublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadmirror_publish_errors_total",
		Help: "The total number of publish or flush failures",
	}, []string{"type"})

	// Progress
	CursorCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadmirror_cursor_commits_total",
		Help: "The total number of persisted cursor advancements",
	}, []string{"type", "phase"})

	ChangesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadmirror_changes_skipped_total",
		Help: "The total number of change notifications skipped after a fetch failure",
	}, []string{"type"})

	// Scheduling
	TicksSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roadmirror_ticks_skipped_total",
		Help: "The total number of ticks dropped because a runner was in flight",
	}, []string{"type"})

	BatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "roadmirror_batch_duration_seconds",
		Help: "The duration of one backfill batch or update cycle",
	}, []string{"type", "phase"})
)

func init() {
	prometheus.MustRegister(
		ObjectsPublished,
		PublishErrors,
		CursorCommits,
		ChangesSkipped,
		TicksSkipped,
		BatchDuration,
	)
}
