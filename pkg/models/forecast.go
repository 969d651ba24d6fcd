package models

import (
	"fmt"
	"time"
)

// ProductClass differentiates flexibility market products by how fast a
// participating job must respond.
type ProductClass string

const (
	ProductFastResponse   ProductClass = "fast-response"
	ProductMediumResponse ProductClass = "medium-response"
	ProductSlowResponse   ProductClass = "slow-response"
)

func (p ProductClass) IsValid() bool {
	switch p {
	case ProductFastResponse, ProductMediumResponse, ProductSlowResponse:
		return true
	}
	return false
}

// FlexibilityEvent is a market opportunity at a specific hour and region.
type FlexibilityEvent struct {
	Hour            int          `json:"hour"`
	Region          string       `json:"region"`
	Product         ProductClass `json:"product"`
	ClearingPrice   float64      `json:"clearing_price"` // currency/MW/h
	DurationMinutes int          `json:"duration_minutes"`
	VolumeMW        float64      `json:"volume_mw"`
}

// Overlaps reports whether the event falls inside [startHour, endHour) in
// the given region.
func (e FlexibilityEvent) Overlaps(region string, startHour, endHour int) bool {
	return e.Region == region && e.Hour >= startHour && e.Hour < endHour
}

// GridForecast holds price and carbon series per region over a fixed
// horizon, plus flexibility market events. Immutable once produced for a
// cycle.
type GridForecast struct {
	HorizonHours int                  `json:"horizon_hours"`
	Regions      []string             `json:"regions"`
	Price        map[string][]float64 `json:"price"`  // currency/kWh
	Carbon       map[string][]float64 `json:"carbon"` // gCO2/kWh
	Events       []FlexibilityEvent   `json:"events"`
	AvgPrice     float64              `json:"avg_price"`
	AvgCarbon    float64              `json:"avg_carbon"`
	FetchedAt    time.Time            `json:"fetched_at"`

	// DegradedSources names every source that fell back to cached or
	// synthetic data while building this forecast.
	DegradedSources []string `json:"degraded_sources,omitempty"`
}

// WindowMeans returns the mean price and carbon intensity over
// [startHour, startHour+duration) for a region.
func (f *GridForecast) WindowMeans(region string, startHour, duration int) (price, carbon float64, err error) {
	prices, ok := f.Price[region]
	if !ok {
		return 0, 0, fmt.Errorf("no price series for region %q", region)
	}
	carbons, ok := f.Carbon[region]
	if !ok {
		return 0, 0, fmt.Errorf("no carbon series for region %q", region)
	}
	end := startHour + duration
	if startHour < 0 || duration <= 0 || end > len(prices) || end > len(carbons) {
		return 0, 0, fmt.Errorf("window [%d,%d) outside forecast horizon", startHour, end)
	}
	for h := startHour; h < end; h++ {
		price += prices[h]
		carbon += carbons[h]
	}
	return price / float64(duration), carbon / float64(duration), nil
}

// SpotPrice returns the price at a given hour, falling back to the
// reference price when the region or hour is missing.
func (f *GridForecast) SpotPrice(region string, hour int) float64 {
	if series, ok := f.Price[region]; ok && hour >= 0 && hour < len(series) {
		return series[hour]
	}
	return ReferencePriceGBPPerKWh
}

// SpotCarbon returns the carbon intensity at a given hour, falling back to
// the reference intensity when the region or hour is missing.
func (f *GridForecast) SpotCarbon(region string, hour int) float64 {
	if series, ok := f.Carbon[region]; ok && hour >= 0 && hour < len(series) {
		return series[hour]
	}
	return ReferenceCarbonGCO2PerKWh
}

// IsDegraded reports whether any source fell back while building this
// forecast.
func (f *GridForecast) IsDegraded() bool {
	return len(f.DegradedSources) > 0
}

// CandidateWindow is a ranked (region, start-hour) placement option for one
// job. Lower score is better.
type CandidateWindow struct {
	Region     string  `json:"region"`
	StartHour  int     `json:"start_hour"`
	AvgPrice   float64 `json:"avg_price"`
	AvgCarbon  float64 `json:"avg_carbon"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence,omitempty"`
}
