package models

import "time"

// JobSummary is the slice of a job worth keeping in the audit trail.
type JobSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         JobType `json:"type"`
	Priority     int     `json:"priority"`
	EnergyKWh    float64 `json:"energy_kwh"`
	CanDefer     bool    `json:"can_defer"`
	DeadlineHour int     `json:"deadline_hour"`
}

// ForecastSummary captures the grid state a decision was made against.
type ForecastSummary struct {
	AvgPrice        float64   `json:"avg_price"`
	AvgCarbon       float64   `json:"avg_carbon"`
	EventCount      int       `json:"event_count"`
	HorizonHours    int       `json:"horizon_hours"`
	FetchedAt       time.Time `json:"fetched_at"`
	DegradedSources []string  `json:"degraded_sources,omitempty"`
}

// DecisionMetrics are the aggregate figures for one optimization cycle.
type DecisionMetrics struct {
	TotalCost            float64 `json:"total_cost"`
	TotalCarbon          float64 `json:"total_carbon"`
	TotalRevenue         float64 `json:"total_revenue"`
	CostSavings          float64 `json:"cost_savings"`
	CarbonSavings        float64 `json:"carbon_savings"`
	CostSavingsPercent   float64 `json:"cost_savings_percent"`
	CarbonSavingsPercent float64 `json:"carbon_savings_percent"`
	NetCost              float64 `json:"net_cost"`
}

// RegionStats is the per-region slice of a schedule.
type RegionStats struct {
	Jobs      int     `json:"jobs"`
	EnergyKWh float64 `json:"energy_kwh"`
	Cost      float64 `json:"cost"`
	Carbon    float64 `json:"carbon"`
	Revenue   float64 `json:"revenue"`
}

// DecisionRecord is an immutable snapshot of one optimization cycle. The
// Hash field is a sha256 over the canonical serialization of the record
// with Hash itself empty; it is set at append time and never mutated.
type DecisionRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Jobs        []JobSummary           `json:"jobs"`
	Forecast    ForecastSummary        `json:"forecast"`
	Assignments []Assignment           `json:"assignments"`
	Metrics     DecisionMetrics        `json:"metrics"`
	Regions     map[string]RegionStats `json:"regions"`
	Fallback    bool                   `json:"fallback,omitempty"`

	Hash string `json:"hash,omitempty"`
}
