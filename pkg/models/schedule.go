package models

import "time"

// Assignment binds one job to one (region, start-hour, end-hour) with the
// costs computed for that binding.
type Assignment struct {
	JobID     string `json:"job_id"`
	Region    string `json:"region"`
	StartHour int    `json:"start_hour"`
	EndHour   int    `json:"end_hour"`

	Cost          float64 `json:"cost"`
	Carbon        float64 `json:"carbon"`
	MarketRevenue float64 `json:"market_revenue"`

	// Baseline figures represent running the job immediately in the default
	// region at reference price and carbon, for savings reporting.
	BaselineCost   float64 `json:"baseline_cost"`
	BaselineCarbon float64 `json:"baseline_carbon"`

	// BestEffort marks a placement that could not be capacity-checked: the
	// job had no feasible window and was assigned immediately rather than
	// dropped.
	BestEffort bool `json:"best_effort,omitempty"`
}

// Schedule is the optimizer's output: exactly one assignment per input job.
type Schedule struct {
	Assignments []Assignment `json:"assignments"`

	// Fallback marks a schedule produced by the FIFO degraded mode rather
	// than the optimizer.
	Fallback bool `json:"fallback,omitempty"`
}

func (s *Schedule) TotalCost() float64 {
	var total float64
	for _, a := range s.Assignments {
		total += a.Cost
	}
	return total
}

func (s *Schedule) TotalCarbon() float64 {
	var total float64
	for _, a := range s.Assignments {
		total += a.Carbon
	}
	return total
}

func (s *Schedule) TotalRevenue() float64 {
	var total float64
	for _, a := range s.Assignments {
		total += a.MarketRevenue
	}
	return total
}

func (s *Schedule) TotalBaselineCost() float64 {
	var total float64
	for _, a := range s.Assignments {
		total += a.BaselineCost
	}
	return total
}

func (s *Schedule) TotalBaselineCarbon() float64 {
	var total float64
	for _, a := range s.Assignments {
		total += a.BaselineCarbon
	}
	return total
}

// Bid is an offer of one job's flexibility into a market event. Created
// only when the expected net value is positive.
type Bid struct {
	ID              string       `json:"id"`
	JobID           string       `json:"job_id"`
	Product         ProductClass `json:"product"`
	PowerMW         float64      `json:"power_mw"`
	DurationMinutes int          `json:"duration_minutes"`

	// BidPrice is the implied per-unit price: value / (MW x hours).
	BidPrice        float64   `json:"bid_price"`
	ExpectedRevenue float64   `json:"expected_revenue"`
	CreatedAt       time.Time `json:"created_at"`
}
