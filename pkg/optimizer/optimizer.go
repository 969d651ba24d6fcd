package optimizer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/gridshift-project/gridshift/pkg/bidstrategy"
	"github.com/gridshift-project/gridshift/pkg/capacity"
	"github.com/gridshift-project/gridshift/pkg/models"
)

const DefaultMaxForecastWorkers = 4

// WindowRanker produces candidate windows for one job. Implemented by
// forecaster.Ranker.
type WindowRanker interface {
	RankWindows(ctx context.Context, job models.Job, forecast *models.GridForecast) []models.CandidateWindow
}

type Params struct {
	Ranker   WindowRanker
	Valuator *bidstrategy.Valuator

	// MaxForecastWorkers bounds how many jobs have their windows ranked
	// concurrently, so an advisory forecasting source is not overwhelmed.
	MaxForecastWorkers int
	DefaultRegion      string
}

// Optimizer assigns every job to a single (region, start-hour) honoring
// capacity and deadline constraints.
type Optimizer struct {
	ranker        WindowRanker
	valuator      *bidstrategy.Valuator
	maxWorkers    int
	defaultRegion string
}

func New(params Params) *Optimizer {
	o := &Optimizer{
		ranker:        params.Ranker,
		valuator:      params.Valuator,
		maxWorkers:    params.MaxForecastWorkers,
		defaultRegion: params.DefaultRegion,
	}
	if o.maxWorkers <= 0 {
		o.maxWorkers = DefaultMaxForecastWorkers
	}
	if o.defaultRegion == "" {
		o.defaultRegion = models.DefaultRegion
	}
	return o
}

// Optimize produces exactly one assignment per input job: immediate jobs
// get first claim on capacity, deferrable jobs take their best feasible
// ranked window, and a job with no feasible window is placed best-effort
// rather than dropped. Window ranking runs concurrently across jobs; the
// reservation pass is strictly sequential so capacity decrements are
// observed in order.
//
// Any internal fault (including a panic) aborts the optimization with an
// error; the caller is expected to fall back to Fallback.
func (o *Optimizer) Optimize(
	ctx context.Context,
	jobs []models.Job,
	forecast *models.GridForecast,
	tracker *capacity.Tracker,
) (schedule *models.Schedule, err error) {
	defer func() {
		if r := recover(); r != nil {
			schedule = nil
			err = errors.Errorf("optimizer panic: %v", r)
		}
	}()

	if forecast == nil {
		return nil, errors.New("nil forecast")
	}

	immediate, deferrable := partition(jobs)
	log.Ctx(ctx).Debug().
		Int("Immediate", len(immediate)).
		Int("Deferrable", len(deferrable)).
		Msg("partitioned jobs by flexibility")

	windowsByJob, err := o.rankConcurrently(ctx, deferrable, forecast)
	if err != nil {
		return nil, err
	}

	// Immediate jobs first, then deferrable ascending by flexibility:
	// the least flexible job picks first to reduce contention.
	slices.SortStableFunc(immediate, func(a, b models.Job) bool {
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	slices.SortStableFunc(deferrable, func(a, b models.Job) bool {
		if a.FlexibilityMinutes != b.FlexibilityMinutes {
			return a.FlexibilityMinutes < b.FlexibilityMinutes
		}
		return a.ID < b.ID
	})

	assignments := make([]models.Assignment, 0, len(jobs))
	for _, job := range immediate {
		assignments = append(assignments, o.placeImmediate(ctx, job, forecast, tracker))
	}
	for _, job := range deferrable {
		assignments = append(assignments, o.placeDeferrable(ctx, job, windowsByJob[job.ID], forecast, tracker))
	}

	for i := range assignments {
		o.attachMarketRevenue(&assignments[i], jobByID(jobs, assignments[i].JobID), forecast)
		attachBaseline(&assignments[i], jobByID(jobs, assignments[i].JobID))
	}

	return &models.Schedule{Assignments: assignments}, nil
}

// rankConcurrently calls the window ranker for every deferrable job with a
// bounded number of workers. Each worker recovers its own panics: a panic
// inside a goroutine would kill the process before the recover in Optimize
// could see it, so it is converted to an error here instead.
func (o *Optimizer) rankConcurrently(
	ctx context.Context, jobs []models.Job, forecast *models.GridForecast,
) (map[string][]models.CandidateWindow, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string][]models.CandidateWindow, len(jobs))
		rankErr error
		sem     = make(chan struct{}, o.maxWorkers)
	)
	for _, job := range jobs {
		job := job
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if rankErr == nil {
						rankErr = errors.Errorf("ranking windows for job %s: %v", job.ID, r)
					}
					mu.Unlock()
				}
			}()
			windows := o.ranker.RankWindows(ctx, job, forecast)
			mu.Lock()
			results[job.ID] = windows
			mu.Unlock()
		}()
	}
	wg.Wait()
	if rankErr != nil {
		return nil, rankErr
	}
	return results, nil
}

// placeImmediate reserves the job's preferred region at its earliest start
// hour, falling back to an unconstrained best-effort placement when even
// that has no room.
func (o *Optimizer) placeImmediate(
	ctx context.Context, job models.Job, forecast *models.GridForecast, tracker *capacity.Tracker,
) models.Assignment {
	region := o.regionFor(job)
	start := job.EarliestStartHour
	end := start + job.DurationHours
	if err := tracker.Reserve(region, start, end, job.Resources); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("JobID", job.ID).
			Msg("no capacity for immediate job, placing best-effort")
		return o.bestEffort(job, forecast)
	}
	return o.assignment(job, region, start, forecast)
}

// placeDeferrable walks the ranked candidate windows and accepts the first
// one that fits capacity and deadline, then retries the preferred region,
// then places best-effort.
func (o *Optimizer) placeDeferrable(
	ctx context.Context,
	job models.Job,
	windows []models.CandidateWindow,
	forecast *models.GridForecast,
	tracker *capacity.Tracker,
) models.Assignment {
	for _, w := range windows {
		end := w.StartHour + job.DurationHours
		if w.StartHour < job.EarliestStartHour || end > job.DeadlineHour {
			continue
		}
		if !job.CanMigrate && job.PreferredRegion != "" && w.Region != job.PreferredRegion {
			continue
		}
		if err := tracker.Reserve(w.Region, w.StartHour, end, job.Resources); err != nil {
			continue
		}
		return o.assignment(job, w.Region, w.StartHour, forecast)
	}

	// no candidate window worked out; retry the preferred region at the
	// job's earliest start
	region := o.regionFor(job)
	start := job.EarliestStartHour
	end := start + job.DurationHours
	if end <= job.DeadlineHour {
		if err := tracker.Reserve(region, start, end, job.Resources); err == nil {
			return o.assignment(job, region, start, forecast)
		}
	}

	log.Ctx(ctx).Warn().Str("JobID", job.ID).
		Msg("no feasible window, placing best-effort")
	return o.bestEffort(job, forecast)
}

func (o *Optimizer) assignment(job models.Job, region string, start int, forecast *models.GridForecast) models.Assignment {
	end := start + job.DurationHours
	price, carbon, err := forecast.WindowMeans(region, start, job.DurationHours)
	if err != nil {
		price = forecast.SpotPrice(region, start)
		carbon = forecast.SpotCarbon(region, start)
	}
	return models.Assignment{
		JobID:     job.ID,
		Region:    region,
		StartHour: start,
		EndHour:   end,
		Cost:      job.EnergyKWh * price,
		Carbon:    job.EnergyKWh * carbon,
	}
}

// bestEffort is an unconstrained immediate placement: the job is assigned
// rather than dropped, without a capacity reservation.
func (o *Optimizer) bestEffort(job models.Job, forecast *models.GridForecast) models.Assignment {
	a := o.assignment(job, o.regionFor(job), job.EarliestStartHour, forecast)
	a.BestEffort = true
	return a
}

// attachMarketRevenue values the job against every flexibility event
// overlapping the assignment window and keeps the best positive bid.
func (o *Optimizer) attachMarketRevenue(a *models.Assignment, job *models.Job, forecast *models.GridForecast) {
	if o.valuator == nil || job == nil {
		return
	}
	var best float64
	for _, event := range forecast.Events {
		if !event.Overlaps(a.Region, a.StartHour, a.EndHour) {
			continue
		}
		if value := o.valuator.Value(*job, event); value > best {
			best = value
		}
	}
	a.MarketRevenue = best
}

func attachBaseline(a *models.Assignment, job *models.Job) {
	if job == nil {
		return
	}
	a.BaselineCost = job.EnergyKWh * models.ReferencePriceGBPPerKWh
	a.BaselineCarbon = job.EnergyKWh * models.ReferenceCarbonGCO2PerKWh
}

func (o *Optimizer) regionFor(job models.Job) string {
	if job.PreferredRegion != "" {
		return job.PreferredRegion
	}
	return o.defaultRegion
}

func partition(jobs []models.Job) (immediate, deferrable []models.Job) {
	for _, job := range jobs {
		if job.IsImmediate() {
			immediate = append(immediate, job)
		} else {
			deferrable = append(deferrable, job)
		}
	}
	return immediate, deferrable
}

func jobByID(jobs []models.Job, id string) *models.Job {
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i]
		}
	}
	return nil
}
