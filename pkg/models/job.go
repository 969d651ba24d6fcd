package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// JobType tags the workload class of a job.
type JobType string

const (
	JobTypeTraining       JobType = "training"
	JobTypeBatchInference JobType = "batch-inference"
	JobTypeAnalytics      JobType = "analytics"
	JobTypeDataProcessing JobType = "data-processing"
	JobTypeSimulation     JobType = "simulation"
)

// JobTypes lists every valid job type.
func JobTypes() []JobType {
	return []JobType{
		JobTypeTraining,
		JobTypeBatchInference,
		JobTypeAnalytics,
		JobTypeDataProcessing,
		JobTypeSimulation,
	}
}

// JobStatus is the lifecycle state of a job. Transitions are monotonic:
// pending -> scheduled -> running -> completed, with failed reachable from
// any non-terminal state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var jobStatusOrder = map[JobStatus]int{
	JobStatusPending:   0,
	JobStatusScheduled: 1,
	JobStatusRunning:   2,
	JobStatusCompleted: 3,
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusScheduled, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValidTransition reports whether moving a job from one status to another
// preserves the monotonic lifecycle.
func IsValidTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobStatusFailed {
		return true
	}
	fromOrder, ok := jobStatusOrder[from]
	if !ok {
		return false
	}
	toOrder, ok := jobStatusOrder[to]
	if !ok {
		return false
	}
	return toOrder == fromOrder+1
}

// SLATier is the coarse priority classification of a job.
type SLATier string

const (
	SLATierCritical SLATier = "critical"
	SLATierStandard SLATier = "standard"
	SLATierFlexible SLATier = "flexible"
)

// Resources is the resource demand of a job, or the remaining capacity of a
// region for one hour.
type Resources struct {
	CPUCores int     `json:"cpu_cores"`
	GPUCount int     `json:"gpu_count"`
	MemoryGB float64 `json:"memory_gb"`
}

// Add returns the element-wise sum.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPUCores: r.CPUCores + other.CPUCores,
		GPUCount: r.GPUCount + other.GPUCount,
		MemoryGB: r.MemoryGB + other.MemoryGB,
	}
}

// Sub returns the element-wise difference.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		CPUCores: r.CPUCores - other.CPUCores,
		GPUCount: r.GPUCount - other.GPUCount,
		MemoryGB: r.MemoryGB - other.MemoryGB,
	}
}

// Covers reports whether r has at least as much of everything as the demand.
func (r Resources) Covers(demand Resources) bool {
	return r.CPUCores >= demand.CPUCores &&
		r.GPUCount >= demand.GPUCount &&
		r.MemoryGB >= demand.MemoryGB
}

func (r Resources) IsZero() bool {
	return r.CPUCores == 0 && r.GPUCount == 0 && r.MemoryGB == 0
}

func (r Resources) String() string {
	return fmt.Sprintf("cpu:%d gpu:%d mem:%.0fGB", r.CPUCores, r.GPUCount, r.MemoryGB)
}

// Job is a deferrable computational workload.
type Job struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     JobType   `json:"type"`
	Priority int       `json:"priority"`
	Status   JobStatus `json:"status"`

	Resources Resources `json:"resources"`
	EnergyKWh float64   `json:"energy_kwh"`
	PowerMW   float64   `json:"power_mw"`

	// DurationHours is how long the job occupies its window.
	DurationHours int `json:"duration_hours"`

	SubmittedAt time.Time `json:"submitted_at"`

	// EarliestStartHour and DeadlineHour are offsets into the current
	// forecast horizon. The job may not start before the former and must
	// finish by the latter.
	EarliestStartHour int `json:"earliest_start_hour"`
	DeadlineHour      int `json:"deadline_hour"`

	CanDefer           bool   `json:"can_defer"`
	CanInterrupt       bool   `json:"can_interrupt"`
	CanMigrate         bool   `json:"can_migrate"`
	FlexibilityMinutes int    `json:"flexibility_minutes"`
	PreferredRegion    string `json:"preferred_region,omitempty"`
}

// Normalize fills zero values that have meaningful defaults.
func (j *Job) Normalize() {
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.DurationHours <= 0 {
		j.DurationHours = 1
	}
	if j.DeadlineHour <= 0 {
		j.DeadlineHour = j.EarliestStartHour + j.DurationHours
	}
}

// Validate checks the job for reasonable configuration.
func (j *Job) Validate() error {
	mErr := new(multierror.Error)
	if j.ID == "" {
		mErr = multierror.Append(mErr, errors.New("missing job ID"))
	}
	if j.Priority < 0 || j.Priority > 10 {
		mErr = multierror.Append(mErr, fmt.Errorf("priority %d out of range [0,10]", j.Priority))
	}
	if !j.Status.IsValid() {
		mErr = multierror.Append(mErr, fmt.Errorf("invalid status %q", j.Status))
	}
	if j.EnergyKWh < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("negative energy requirement %f", j.EnergyKWh))
	}
	if j.PowerMW < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("negative power draw %f", j.PowerMW))
	}
	if j.DurationHours <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("duration %d must be positive", j.DurationHours))
	}
	if j.DeadlineHour < j.EarliestStartHour+j.DurationHours {
		mErr = multierror.Append(mErr, fmt.Errorf(
			"deadline hour %d leaves no room for %d hour(s) from earliest start %d",
			j.DeadlineHour, j.DurationHours, j.EarliestStartHour))
	}
	return mErr.ErrorOrNil()
}

// SLATier derives the tier from priority.
func (j *Job) SLATier() SLATier {
	switch {
	case j.Priority >= CriticalPriorityThreshold:
		return SLATierCritical
	case j.Priority >= StandardPriorityThreshold:
		return SLATierStandard
	default:
		return SLATierFlexible
	}
}

// IsImmediate reports whether the job must start now rather than being
// deferred to a cheaper window.
func (j *Job) IsImmediate() bool {
	return !j.CanDefer || j.Priority >= CriticalPriorityThreshold
}

// Region returns the job's preferred region, or the default.
func (j *Job) Region() string {
	if j.PreferredRegion != "" {
		return j.PreferredRegion
	}
	return DefaultRegion
}

// Copy returns a deep copy of the job.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	nj := new(Job)
	*nj = *j
	return nj
}
