package forecaster

import (
	"context"

	"github.com/gridshift-project/gridshift/pkg/models"
)

// Advisor is an optional external source of window rankings, for example a
// model-backed forecasting service. It must return windows in the same
// shape as the heuristic; the ranker enforces a timeout around every call
// and falls back to the heuristic on error, timeout, or an empty result.
type Advisor interface {
	Advise(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error)
}

// AdvisorFunc adapts a function to the Advisor interface.
type AdvisorFunc func(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error)

func (f AdvisorFunc) Advise(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error) {
	return f(ctx, job, forecast)
}
