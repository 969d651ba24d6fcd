package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/gridshift-project/gridshift/pkg/jobstore"
	"github.com/gridshift-project/gridshift/pkg/models"
)

// Store is an in-memory job table keyed by job ID.
type Store struct {
	jobs  map[string]models.Job
	mtx   sync.RWMutex
	clock clock.Clock
}

type Option func(store *Store)

func WithClock(c clock.Clock) Option {
	return func(store *Store) {
		store.clock = c
	}
}

func NewStore(options ...Option) *Store {
	res := &Store{
		jobs:  make(map[string]models.Job),
		clock: clock.New(),
	}
	for _, opt := range options {
		opt(res)
	}
	return res
}

func (s *Store) Create(_ context.Context, job models.Job) error {
	job.Normalize()
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validating job %s: %w", job.ID, err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return jobstore.NewErrJobAlreadyExists(job.ID)
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = s.clock.Now()
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) Get(_ context.Context, jobID string) (models.Job, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, jobstore.NewErrJobNotFound(jobID)
	}
	return job, nil
}

func (s *Store) List(_ context.Context, filter jobstore.JobFilter) ([]models.Job, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	res := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Matches(job) {
			res = append(res, job)
		}
	}
	// map iteration order is not stable; callers expect arrival order
	slices.SortFunc(res, func(a, b models.Job) bool {
		if a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.ID < b.ID
		}
		return a.SubmittedAt.Before(b.SubmittedAt)
	})
	return res, nil
}

func (s *Store) Pending(ctx context.Context) ([]models.Job, error) {
	return s.List(ctx, jobstore.JobFilter{Statuses: []models.JobStatus{models.JobStatusPending}})
}

func (s *Store) UpdateStatus(_ context.Context, request jobstore.UpdateStatusRequest) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	job, ok := s.jobs[request.JobID]
	if !ok {
		return jobstore.NewErrJobNotFound(request.JobID)
	}
	if request.ExpectedStatus != "" && job.Status != request.ExpectedStatus {
		return jobstore.NewErrInvalidJobState(request.JobID, string(job.Status), string(request.ExpectedStatus))
	}
	if !models.IsValidTransition(job.Status, request.NewStatus) {
		return jobstore.NewErrInvalidJobState(
			request.JobID, string(job.Status), "a state that can move to "+string(request.NewStatus))
	}
	job.Status = request.NewStatus
	s.jobs[request.JobID] = job
	return nil
}

// Len returns the total number of jobs in the table.
func (s *Store) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.jobs)
}

// JobIDs returns every job ID in the table, unordered.
func (s *Store) JobIDs() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return maps.Keys(s.jobs)
}

var _ jobstore.Store = &Store{}
