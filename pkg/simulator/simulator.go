package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gridshift-project/gridshift/pkg/capacity"
	"github.com/gridshift-project/gridshift/pkg/models"
	"github.com/gridshift-project/gridshift/pkg/util/idgen"
)

// jobProfile is the characteristic shape of one workload type.
type jobProfile struct {
	jobType   models.JobType
	resources models.Resources
	energyKWh [2]float64
	duration  [2]int
	deferable bool
	interrupt bool
	migrate   bool
}

var jobProfiles = []jobProfile{
	{
		jobType:   models.JobTypeTraining,
		resources: models.Resources{CPUCores: 16, GPUCount: 4, MemoryGB: 128},
		energyKWh: [2]float64{80, 400},
		duration:  [2]int{2, 8},
		deferable: true,
		interrupt: true,
		migrate:   true,
	},
	{
		jobType:   models.JobTypeBatchInference,
		resources: models.Resources{CPUCores: 8, GPUCount: 1, MemoryGB: 32},
		energyKWh: [2]float64{10, 60},
		duration:  [2]int{1, 3},
		deferable: true,
		interrupt: true,
		migrate:   true,
	},
	{
		jobType:   models.JobTypeAnalytics,
		resources: models.Resources{CPUCores: 32, GPUCount: 0, MemoryGB: 64},
		energyKWh: [2]float64{5, 40},
		duration:  [2]int{1, 4},
		deferable: true,
		interrupt: false,
		migrate:   false,
	},
	{
		jobType:   models.JobTypeDataProcessing,
		resources: models.Resources{CPUCores: 8, GPUCount: 0, MemoryGB: 16},
		energyKWh: [2]float64{2, 20},
		duration:  [2]int{1, 2},
		deferable: false,
		interrupt: false,
		migrate:   false,
	},
	{
		jobType:   models.JobTypeSimulation,
		resources: models.Resources{CPUCores: 64, GPUCount: 2, MemoryGB: 256},
		energyKWh: [2]float64{100, 500},
		duration:  [2]int{4, 12},
		deferable: true,
		interrupt: false,
		migrate:   true,
	},
}

type JobSourceParams struct {
	Seed int64
	// MinJobs and MaxJobs bound how many jobs one cycle delivers.
	MinJobs int
	MaxJobs int
	Regions []string
	// HorizonHours bounds generated deadlines.
	HorizonHours int
}

// JobSource fabricates a plausible workload stream. The same seed yields
// the same jobs in the same order, so runs are reproducible end to end.
type JobSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	minJobs int
	maxJobs int
	regions []string
	horizon int
	serial  int
}

func NewJobSource(params JobSourceParams) *JobSource {
	if params.MaxJobs <= 0 {
		params.MaxJobs = 5
	}
	if params.MinJobs < 0 || params.MinJobs > params.MaxJobs {
		params.MinJobs = 0
	}
	if len(params.Regions) == 0 {
		params.Regions = []string{"north", "south", "scotland"}
	}
	if params.HorizonHours <= 0 {
		params.HorizonHours = models.DefaultHorizonHours
	}
	return &JobSource{
		rng:     rand.New(rand.NewSource(params.Seed)),
		minJobs: params.MinJobs,
		maxJobs: params.MaxJobs,
		regions: params.Regions,
		horizon: params.HorizonHours,
	}
}

func (s *JobSource) FetchJobs(ctx context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.minJobs + s.rng.Intn(s.maxJobs-s.minJobs+1)
	jobs := make([]models.Job, 0, count)
	for i := 0; i < count; i++ {
		jobs = append(jobs, s.generate())
	}
	log.Ctx(ctx).Debug().Int("Count", len(jobs)).Msg("simulated job submissions")
	return jobs, nil
}

func (s *JobSource) generate() models.Job {
	profile := jobProfiles[s.rng.Intn(len(jobProfiles))]
	s.serial++

	duration := profile.duration[0] + s.rng.Intn(profile.duration[1]-profile.duration[0]+1)
	energy := profile.energyKWh[0] + s.rng.Float64()*(profile.energyKWh[1]-profile.energyKWh[0])

	// Deadline leaves at least one feasible start hour inside the horizon.
	latestDeadline := s.horizon
	earliestDeadline := duration + 1
	deadline := earliestDeadline
	if latestDeadline > earliestDeadline {
		deadline += s.rng.Intn(latestDeadline - earliestDeadline + 1)
	}

	job := models.Job{
		ID:                 idgen.NewJobID(),
		Name:               fmt.Sprintf("%s-%04d", profile.jobType, s.serial),
		Type:               profile.jobType,
		Priority:           1 + s.rng.Intn(10),
		Resources:          profile.resources,
		EnergyKWh:          energy,
		PowerMW:            energy / float64(duration) / 1000,
		DurationHours:      duration,
		EarliestStartHour:  0,
		DeadlineHour:       deadline,
		CanDefer:           profile.deferable,
		CanInterrupt:       profile.interrupt,
		CanMigrate:         profile.migrate,
		FlexibilityMinutes: 0,
		PreferredRegion:    s.regions[s.rng.Intn(len(s.regions))],
	}
	if job.CanDefer {
		job.FlexibilityMinutes = 15 * (1 + s.rng.Intn(16))
	}
	return job
}

// StaticCapacity serves a fixed per-region resource pool.
type StaticCapacity struct {
	snapshot capacity.Snapshot
}

func NewStaticCapacity(snapshot capacity.Snapshot) *StaticCapacity {
	if len(snapshot) == 0 {
		snapshot = capacity.Snapshot{
			"north":    {CPUCores: 256, GPUCount: 32, MemoryGB: 1024},
			"south":    {CPUCores: 512, GPUCount: 64, MemoryGB: 2048},
			"scotland": {CPUCores: 128, GPUCount: 16, MemoryGB: 512},
		}
	}
	return &StaticCapacity{snapshot: snapshot}
}

func (c *StaticCapacity) Capacity(ctx context.Context) (capacity.Snapshot, error) {
	out := make(capacity.Snapshot, len(c.snapshot))
	for region, resources := range c.snapshot {
		out[region] = resources
	}
	return out, nil
}
