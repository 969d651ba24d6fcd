package forecaster

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"

	"github.com/gridshift-project/gridshift/pkg/models"
)

const DefaultAdvisorTimeout = 10 * time.Second

// Ranker scores candidate (region, start-hour) windows for a job against
// the grid forecast. Lower scores are better.
type Ranker struct {
	windowCount    int
	advisor        Advisor
	advisorTimeout time.Duration
}

type Option func(*Ranker)

// WithAdvisor attaches an external advisory source. The heuristic remains
// the fallback for every call.
func WithAdvisor(advisor Advisor, timeout time.Duration) Option {
	return func(r *Ranker) {
		r.advisor = advisor
		if timeout > 0 {
			r.advisorTimeout = timeout
		}
	}
}

func WithWindowCount(count int) Option {
	return func(r *Ranker) {
		if count > 0 {
			r.windowCount = count
		}
	}
}

func NewRanker(options ...Option) *Ranker {
	r := &Ranker{
		windowCount:    models.DefaultWindowCount,
		advisorTimeout: DefaultAdvisorTimeout,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// RankWindows returns up to K candidate windows, best first. The advisory
// path is strictly additive: it never blocks past its timeout, and any
// failure yields the heuristic result instead.
func (r *Ranker) RankWindows(ctx context.Context, job models.Job, forecast *models.GridForecast) []models.CandidateWindow {
	if r.advisor != nil {
		adviseCtx, cancel := context.WithTimeout(ctx, r.advisorTimeout)
		windows, err := r.advisor.Advise(adviseCtx, job, forecast)
		cancel()
		if err == nil && len(windows) > 0 {
			if len(windows) > r.windowCount {
				windows = windows[:r.windowCount]
			}
			return windows
		}
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("JobID", job.ID).
				Msg("advisory forecast failed, using heuristic")
		}
	}
	return r.heuristic(job, forecast)
}

// heuristic scores every feasible window by normalized price and carbon,
// weighted equally.
func (r *Ranker) heuristic(job models.Job, forecast *models.GridForecast) []models.CandidateWindow {
	windows := make([]models.CandidateWindow, 0, len(forecast.Regions)*forecast.HorizonHours)
	for _, region := range forecast.Regions {
		for hour := 0; hour+job.DurationHours <= forecast.HorizonHours; hour++ {
			price, carbon, err := forecast.WindowMeans(region, hour, job.DurationHours)
			if err != nil {
				continue
			}
			score := 0.5*(price/models.ScoreReferencePrice) + 0.5*(carbon/models.ScoreReferenceCarbon)
			windows = append(windows, models.CandidateWindow{
				Region:    region,
				StartHour: hour,
				AvgPrice:  price,
				AvgCarbon: carbon,
				Score:     score,
			})
		}
	}
	slices.SortFunc(windows, func(a, b models.CandidateWindow) bool {
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.StartHour < b.StartHour
	})
	if len(windows) > r.windowCount {
		windows = windows[:r.windowCount]
	}
	return windows
}
