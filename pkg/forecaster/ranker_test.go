//go:build unit || !integration

package forecaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gridshift-project/gridshift/pkg/logger"
	"github.com/gridshift-project/gridshift/pkg/models"
)

// flatForecast has a uniform south and a cheap, clean scotland with its
// minimum at hour 3.
func flatForecast() *models.GridForecast {
	south := make([]float64, 6)
	southCarbon := make([]float64, 6)
	scotland := make([]float64, 6)
	scotlandCarbon := make([]float64, 6)
	for h := 0; h < 6; h++ {
		south[h] = 0.20
		southCarbon[h] = 250
		scotland[h] = 0.12
		scotlandCarbon[h] = 100
	}
	scotland[3] = 0.08
	scotlandCarbon[3] = 60
	return &models.GridForecast{
		HorizonHours: 6,
		Regions:      []string{"south", "scotland"},
		Price:        map[string][]float64{"south": south, "scotland": scotland},
		Carbon:       map[string][]float64{"south": southCarbon, "scotland": scotlandCarbon},
	}
}

func rankerJob() models.Job {
	return models.Job{ID: "j-1", DurationHours: 1, DeadlineHour: 6, CanDefer: true}
}

func TestHeuristicPrefersCheapCleanWindow(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ranker := NewRanker()

	windows := ranker.RankWindows(context.Background(), rankerJob(), flatForecast())
	require.Len(t, windows, models.DefaultWindowCount)
	require.Equal(t, "scotland", windows[0].Region)
	require.Equal(t, 3, windows[0].StartHour)
	for i := 1; i < len(windows); i++ {
		require.GreaterOrEqual(t, windows[i].Score, windows[i-1].Score, "windows must be best first")
	}
}

func TestHeuristicRespectsDuration(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ranker := NewRanker(WithWindowCount(100))

	job := rankerJob()
	job.DurationHours = 4
	windows := ranker.RankWindows(context.Background(), job, flatForecast())
	require.NotEmpty(t, windows)
	for _, w := range windows {
		require.LessOrEqual(t, w.StartHour+job.DurationHours, 6, "window must fit the horizon")
	}
}

func TestAdvisorResultWins(t *testing.T) {
	logger.ConfigureTestLogging(t)
	advised := []models.CandidateWindow{{Region: "south", StartHour: 5, Score: 0.1}}
	ranker := NewRanker(WithAdvisor(AdvisorFunc(
		func(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error) {
			return advised, nil
		}), time.Second))

	windows := ranker.RankWindows(context.Background(), rankerJob(), flatForecast())
	require.Equal(t, advised, windows)
}

func TestAdvisorErrorFallsBackToHeuristic(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ranker := NewRanker(WithAdvisor(AdvisorFunc(
		func(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error) {
			return nil, errors.New("model service down")
		}), time.Second))

	windows := ranker.RankWindows(context.Background(), rankerJob(), flatForecast())
	require.NotEmpty(t, windows)
	require.Equal(t, "scotland", windows[0].Region)
}

func TestAdvisorTimeoutFallsBackToHeuristic(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ranker := NewRanker(WithAdvisor(AdvisorFunc(
		func(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), 10*time.Millisecond))

	start := time.Now()
	windows := ranker.RankWindows(context.Background(), rankerJob(), flatForecast())
	require.Less(t, time.Since(start), time.Second, "advisor must not block past its timeout")
	require.NotEmpty(t, windows)
}

func TestAdvisorEmptyResultFallsBack(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ranker := NewRanker(WithAdvisor(AdvisorFunc(
		func(ctx context.Context, job models.Job, forecast *models.GridForecast) ([]models.CandidateWindow, error) {
			return nil, nil
		}), time.Second))

	windows := ranker.RankWindows(context.Background(), rankerJob(), flatForecast())
	require.NotEmpty(t, windows, "empty advice falls back to the heuristic")
}
