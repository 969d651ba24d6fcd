package agent

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/gridshift-project/gridshift/pkg/capacity"
	"github.com/gridshift-project/gridshift/pkg/jobstore"
	"github.com/gridshift-project/gridshift/pkg/models"
	"github.com/gridshift-project/gridshift/pkg/optimizer"
)

const DefaultCycleInterval = 5 * time.Minute

type Params struct {
	Store    jobstore.Store
	Jobs     JobSource
	Capacity CapacitySource
	Forecast ForecastProvider
	Planner  Scheduler
	Executor ScheduleExecutor
	Recorder DecisionRecorder

	HorizonHours int
	Clock        clock.Clock
}

// Agent runs the scheduling loop: ingest jobs, fetch the forecast, build
// a schedule, execute it, record the decision. One cycle is one decision;
// cycles never overlap.
type Agent struct {
	store    jobstore.Store
	jobs     JobSource
	capacity CapacitySource
	forecast ForecastProvider
	planner  Scheduler
	executor ScheduleExecutor
	recorder DecisionRecorder

	horizonHours int
	clock        clock.Clock

	// pendingRecord holds a decision whose ledger append failed; it is
	// retried at the start of the next cycle so the trail stays complete.
	pendingRecord *models.DecisionRecord

	running       atomic.Bool
	cycles        atomic.Int64
	cycleFailures atomic.Int64
	jobsScheduled atomic.Int64
}

func New(params Params) *Agent {
	if params.HorizonHours <= 0 {
		params.HorizonHours = models.DefaultHorizonHours
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Agent{
		store:        params.Store,
		jobs:         params.Jobs,
		capacity:     params.Capacity,
		forecast:     params.Forecast,
		planner:      params.Planner,
		executor:     params.Executor,
		recorder:     params.Recorder,
		horizonHours: params.HorizonHours,
		clock:        params.Clock,
	}
}

// Run executes cycles at the given interval until the context is
// cancelled. The first cycle runs immediately. Cancellation is observed
// between cycles, never mid-cycle.
func (a *Agent) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	a.running.Store(true)
	defer a.running.Store(false)

	log.Ctx(ctx).Info().Dur("Interval", interval).Int("HorizonHours", a.horizonHours).
		Msg("agent started")

	ticker := a.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		if err := a.RunCycle(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("cycle failed")
		}
		select {
		case <-ctx.Done():
			log.Ctx(ctx).Info().Msg("agent stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full scheduling pass. A cycle with no pending
// jobs records nothing and touches nothing.
func (a *Agent) RunCycle(ctx context.Context) error {
	a.cycles.Inc()

	if err := a.flushPending(ctx); err != nil {
		a.cycleFailures.Inc()
		return err
	}
	if err := a.ingestJobs(ctx); err != nil {
		a.cycleFailures.Inc()
		return err
	}

	pending, err := a.store.Pending(ctx)
	if err != nil {
		a.cycleFailures.Inc()
		return errors.Wrap(err, "listing pending jobs")
	}
	if len(pending) == 0 {
		log.Ctx(ctx).Debug().Msg("no pending jobs, skipping cycle")
		return nil
	}

	forecast := a.forecast.Fetch(ctx, a.horizonHours)

	snapshot, err := a.capacity.Capacity(ctx)
	if err != nil {
		a.cycleFailures.Inc()
		return errors.Wrap(err, "fetching capacity")
	}
	tracker := capacity.NewTracker(snapshot, a.horizonHours)

	schedule, err := a.planner.Optimize(ctx, pending, forecast, tracker)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("optimizer failed, using fallback schedule")
		schedule = optimizer.Fallback(pending, forecast)
	}

	transactions := a.executor.ExecuteSchedule(ctx, schedule)
	confirmed := 0
	for _, txn := range transactions {
		if txn != nil && txn.State == models.TransactionStateConfirmed {
			confirmed++
		}
	}
	a.jobsScheduled.Add(int64(confirmed))

	record := a.buildRecord(pending, forecast, schedule)
	stored, err := a.recorder.Record(ctx, record)
	if err != nil {
		a.pendingRecord = &record
		a.cycleFailures.Inc()
		return errors.Wrap(err, "recording decision")
	}

	log.Ctx(ctx).Info().
		Str("DecisionID", stored.ID).
		Int("Jobs", len(pending)).
		Int("Confirmed", confirmed).
		Bool("Fallback", schedule.Fallback).
		Float64("Cost", stored.Metrics.TotalCost).
		Float64("Revenue", stored.Metrics.TotalRevenue).
		Msg("cycle complete")
	return nil
}

// flushPending retries a decision whose append failed last cycle.
func (a *Agent) flushPending(ctx context.Context) error {
	if a.pendingRecord == nil {
		return nil
	}
	if _, err := a.recorder.Record(ctx, *a.pendingRecord); err != nil {
		return errors.Wrap(err, "retrying stashed decision record")
	}
	a.pendingRecord = nil
	return nil
}

func (a *Agent) ingestJobs(ctx context.Context) error {
	jobs, err := a.jobs.FetchJobs(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching jobs")
	}
	for _, job := range jobs {
		if err := a.store.Create(ctx, job); err != nil {
			var alreadyExists jobstore.ErrJobAlreadyExists
			if errors.As(err, &alreadyExists) {
				continue
			}
			log.Ctx(ctx).Warn().Err(err).Str("JobID", job.ID).Msg("rejected submitted job")
		}
	}
	return nil
}

func (a *Agent) buildRecord(jobs []models.Job, forecast *models.GridForecast, schedule *models.Schedule) models.DecisionRecord {
	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, models.JobSummary{
			ID:           job.ID,
			Name:         job.Name,
			Type:         job.Type,
			Priority:     job.Priority,
			EnergyKWh:    job.EnergyKWh,
			CanDefer:     job.CanDefer,
			DeadlineHour: job.DeadlineHour,
		})
	}

	regions := make(map[string]models.RegionStats)
	for _, assignment := range schedule.Assignments {
		stats := regions[assignment.Region]
		stats.Jobs++
		stats.Cost += assignment.Cost
		stats.Carbon += assignment.Carbon
		stats.Revenue += assignment.MarketRevenue
		if job := jobByID(jobs, assignment.JobID); job != nil {
			stats.EnergyKWh += job.EnergyKWh
		}
		regions[assignment.Region] = stats
	}

	return models.DecisionRecord{
		Jobs: summaries,
		Forecast: models.ForecastSummary{
			AvgPrice:        forecast.AvgPrice,
			AvgCarbon:       forecast.AvgCarbon,
			EventCount:      len(forecast.Events),
			HorizonHours:    forecast.HorizonHours,
			FetchedAt:       forecast.FetchedAt,
			DegradedSources: forecast.DegradedSources,
		},
		Assignments: schedule.Assignments,
		Metrics:     buildMetrics(schedule),
		Regions:     regions,
		Fallback:    schedule.Fallback,
	}
}

// buildMetrics compares the schedule against the run-now baseline carried
// on each assignment.
func buildMetrics(schedule *models.Schedule) models.DecisionMetrics {
	metrics := models.DecisionMetrics{
		TotalCost:    schedule.TotalCost(),
		TotalCarbon:  schedule.TotalCarbon(),
		TotalRevenue: schedule.TotalRevenue(),
	}
	baselineCost := schedule.TotalBaselineCost()
	baselineCarbon := schedule.TotalBaselineCarbon()
	metrics.CostSavings = baselineCost - metrics.TotalCost
	metrics.CarbonSavings = baselineCarbon - metrics.TotalCarbon
	if baselineCost > 0 {
		metrics.CostSavingsPercent = 100 * metrics.CostSavings / baselineCost
	}
	if baselineCarbon > 0 {
		metrics.CarbonSavingsPercent = 100 * metrics.CarbonSavings / baselineCarbon
	}
	metrics.NetCost = metrics.TotalCost - metrics.TotalRevenue
	return metrics
}

// Metrics is a point-in-time snapshot of the agent's counters and the
// ledger's running totals.
type Metrics struct {
	Running       bool  `json:"running"`
	Cycles        int64 `json:"cycles"`
	CycleFailures int64 `json:"cycle_failures"`
	JobsScheduled int64 `json:"jobs_scheduled"`

	TotalCostSaved     float64 `json:"total_cost_saved"`
	TotalCarbonSaved   float64 `json:"total_carbon_saved"`
	TotalMarketRevenue float64 `json:"total_market_revenue"`
}

func (a *Agent) Metrics() Metrics {
	report := a.recorder.Report()
	return Metrics{
		Running:            a.running.Load(),
		Cycles:             a.cycles.Load(),
		CycleFailures:      a.cycleFailures.Load(),
		JobsScheduled:      a.jobsScheduled.Load(),
		TotalCostSaved:     report.Totals.CostSavings,
		TotalCarbonSaved:   report.Totals.CarbonSavings,
		TotalMarketRevenue: report.Totals.TotalRevenue,
	}
}

// RecentDecisions returns up to n of the latest ledger records.
func (a *Agent) RecentDecisions(n int) []models.DecisionRecord {
	return a.recorder.Recent(n)
}

func jobByID(jobs []models.Job, id string) *models.Job {
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i]
		}
	}
	return nil
}
