package producer

import (
	"strconv"
	"time"

	"roadmirror/internal/producer/metrics"
)

const (
	phaseBackfill = "backfill"
	phaseUpdates  = "updates"
)

func observePublished(typeID int, phase string, count int) {
	metrics.ObjectsPublished.WithLabelValues(strconv.Itoa(typeID), phase).Add(float64(count))
}

func observePublishError(typeID int) {
	metrics.PublishErrors.WithLabelValues(strconv.Itoa(typeID)).Inc()
}

func observeCursorCommit(typeID int, phase string) {
	metrics.CursorCommits.WithLabelValues(strconv.Itoa(typeID), phase).Inc()
}

func observeChangeSkipped(typeID int) {
	metrics.ChangesSkipped.WithLabelValues(strconv.Itoa(typeID)).Inc()
}

func observeTickSkipped(typeID int) {
	metrics.TicksSkipped.WithLabelValues(strconv.Itoa(typeID)).Inc()
}

func observeBatch(typeID int, phase string, start time.Time) {
	metrics.BatchDuration.WithLabelValues(strconv.Itoa(typeID), phase).Observe(time.Since(start).Seconds())
}
