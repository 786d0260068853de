package scheduler

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Recomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// ReconcileJob rebuilds every store's averageRating and totalRatings from the ratings table.
// Mutations already keep them exact; this repairs rows touched outside the service.
type ReconcileJob struct {
	ratings  Recomputer
	schedule string
	log      logrus.FieldLogger
}

func NewReconcileJob(ratings Recomputer, schedule string, log logrus.FieldLogger) *ReconcileJob {
	return &ReconcileJob{ratings: ratings, schedule: schedule, log: log}
}

func (j *ReconcileJob) GetName() string {
	return "reconcile-store-aggregates"
}

func (j *ReconcileJob) GetSchedule() string {
	return j.schedule
}

func (j *ReconcileJob) Execute(ctx context.Context) error {
	repaired, err := j.ratings.RecomputeAll(ctx)
	if repaired > 0 {
		j.log.WithField("stores", repaired).Warn("store aggregates repaired")
	}
	return err
}
