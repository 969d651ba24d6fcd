//go:build unit || !integration

package bidstrategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridshift-project/gridshift/pkg/models"
)

func flexibleJob() models.Job {
	return models.Job{
		ID:                 "j-flex",
		PowerMW:            2,
		CanDefer:           true,
		CanInterrupt:       true,
		FlexibilityMinutes: 60,
	}
}

func containmentEvent() models.FlexibilityEvent {
	return models.FlexibilityEvent{
		Hour:            5,
		Region:          "north",
		Product:         models.ProductFastResponse,
		ClearingPrice:   150,
		DurationMinutes: 30,
		VolumeMW:        10,
	}
}

func TestValueFastResponse(t *testing.T) {
	valuator := NewValuator()

	// 150 x 2MW x 0.5h x 0.8 = 120, minus the 10% platform share
	value := valuator.Value(flexibleJob(), containmentEvent())
	require.InDelta(t, 108, value, 1e-9)
}

func TestValueRespectsRevenueShare(t *testing.T) {
	valuator := NewValuator(WithRevenueShare(0))
	value := valuator.Value(flexibleJob(), containmentEvent())
	require.InDelta(t, 120, value, 1e-9)
}

func TestValueProductMultipliers(t *testing.T) {
	valuator := NewValuator(WithRevenueShare(0))
	job := flexibleJob()

	event := containmentEvent()
	event.Product = models.ProductMediumResponse
	event.DurationMinutes = 60
	require.InDelta(t, 150*2*1*0.5, valuator.Value(job, event), 1e-9)

	event.Product = models.ProductSlowResponse
	event.DurationMinutes = 120
	require.InDelta(t, 150*2*2*0.3, valuator.Value(job, event), 1e-9)
}

func TestEligibility(t *testing.T) {
	testCases := []struct {
		name    string
		job     models.Job
		product models.ProductClass
		want    bool
	}{
		{"interruptible gets fast response", models.Job{CanInterrupt: true}, models.ProductFastResponse, true},
		{"non-interruptible excluded from fast", models.Job{CanDefer: true}, models.ProductFastResponse, false},
		{"deferrable with slack gets medium", models.Job{CanDefer: true, FlexibilityMinutes: 5}, models.ProductMediumResponse, true},
		{"deferrable without slack excluded from medium", models.Job{CanDefer: true, FlexibilityMinutes: 2}, models.ProductMediumResponse, false},
		{"deferrable gets slow", models.Job{CanDefer: true}, models.ProductSlowResponse, true},
		{"rigid job excluded from slow", models.Job{}, models.ProductSlowResponse, false},
		{"unknown product never eligible", models.Job{CanDefer: true, CanInterrupt: true}, models.ProductClass("mystery"), false},
	}

	valuator := NewValuator()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.job.PowerMW = 1
			event := containmentEvent()
			event.Product = tc.product
			value := valuator.Value(tc.job, event)
			if tc.want {
				require.Positive(t, value)
			} else {
				require.Zero(t, value)
			}
		})
	}
}

func TestCreateBid(t *testing.T) {
	valuator := NewValuator()

	bid := valuator.CreateBid(flexibleJob(), containmentEvent())
	require.NotNil(t, bid)
	require.Equal(t, "j-flex", bid.JobID)
	require.Equal(t, models.ProductFastResponse, bid.Product)
	require.InDelta(t, 108, bid.ExpectedRevenue, 1e-9)
	require.InDelta(t, 108/(2*0.5), bid.BidPrice, 1e-9)

	rigid := models.Job{ID: "j-rigid", PowerMW: 2}
	require.Nil(t, valuator.CreateBid(rigid, containmentEvent()), "no bid for ineligible jobs")
}

func TestTotalPotential(t *testing.T) {
	valuator := NewValuator(WithRevenueShare(0))
	jobs := []models.Job{flexibleJob(), {ID: "j-rigid", PowerMW: 5}}
	events := []models.FlexibilityEvent{containmentEvent(), containmentEvent()}

	// only the flexible job earns, once per event
	require.InDelta(t, 240, valuator.TotalPotential(jobs, events), 1e-9)
}
