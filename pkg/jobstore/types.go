package jobstore

import (
	"context"

	"github.com/gridshift-project/gridshift/pkg/models"
)

// JobFilter selects jobs from the store. Zero value matches everything.
type JobFilter struct {
	Statuses []models.JobStatus
}

// Matches reports whether a job passes the filter.
func (f JobFilter) Matches(job models.Job) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if job.Status == s {
			return true
		}
	}
	return false
}

// UpdateStatusRequest is a conditional status transition. The update is
// applied only when the job's current status equals ExpectedStatus (when
// set) and the transition is valid for the lifecycle.
type UpdateStatusRequest struct {
	JobID          string
	ExpectedStatus models.JobStatus
	NewStatus      models.JobStatus
}

// Store is the single job table. Status is a field, not a queue: the
// pending/scheduled/running/... views are filters over one table, so a job
// can never be in two lifecycle queues at once. UpdateStatus is the sole
// mutator of a job's status.
type Store interface {
	Create(ctx context.Context, job models.Job) error
	Get(ctx context.Context, jobID string) (models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]models.Job, error)
	UpdateStatus(ctx context.Context, request UpdateStatusRequest) error
	Pending(ctx context.Context) ([]models.Job, error)
}
