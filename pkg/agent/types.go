package agent

import (
	"context"

	"github.com/gridshift-project/gridshift/pkg/capacity"
	"github.com/gridshift-project/gridshift/pkg/ledger"
	"github.com/gridshift-project/gridshift/pkg/models"
)

// JobSource supplies newly submitted jobs at the start of each cycle. The
// agent deduplicates against the store, so sources may re-deliver.
type JobSource interface {
	FetchJobs(ctx context.Context) ([]models.Job, error)
}

// CapacitySource reports the per-region resources available for the
// coming horizon. Queried fresh every cycle.
type CapacitySource interface {
	Capacity(ctx context.Context) (capacity.Snapshot, error)
}

// ForecastProvider returns the grid forecast for the coming horizon. It
// never fails outright; degraded sources are flagged on the forecast.
type ForecastProvider interface {
	Fetch(ctx context.Context, horizonHours int) *models.GridForecast
}

// Scheduler turns pending jobs into window assignments against a capacity
// tracker.
type Scheduler interface {
	Optimize(ctx context.Context, jobs []models.Job, forecast *models.GridForecast, tracker *capacity.Tracker) (*models.Schedule, error)
}

// ScheduleExecutor drives confirmed assignments through the external
// protocol.
type ScheduleExecutor interface {
	ExecuteSchedule(ctx context.Context, schedule *models.Schedule) []*models.Transaction
}

// DecisionRecorder appends one decision per cycle to the audit trail.
type DecisionRecorder interface {
	Record(ctx context.Context, record models.DecisionRecord) (models.DecisionRecord, error)
	Recent(n int) []models.DecisionRecord
	Report() ledger.Report
}
