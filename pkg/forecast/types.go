package forecast

import (
	"context"

	"github.com/gridshift-project/gridshift/pkg/models"
)

// PriceSource supplies a per-region electricity price forecast.
type PriceSource interface {
	Name() string
	FetchPriceForecast(ctx context.Context, horizonHours int) (map[string][]float64, error)
}

// CarbonSource supplies a per-region carbon intensity forecast.
type CarbonSource interface {
	Name() string
	FetchCarbonForecast(ctx context.Context, horizonHours int) (map[string][]float64, error)
}

// EventSource supplies flexibility market events over the horizon.
type EventSource interface {
	Name() string
	FetchFlexibilityEvents(ctx context.Context, horizonHours int) ([]models.FlexibilityEvent, error)
}
