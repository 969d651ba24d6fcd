package models

const (
	// DefaultRegion is where a job lands when it has no preference and no
	// better window could be found.
	DefaultRegion = "south"

	// ReferencePriceGBPPerKWh is the "run now, no optimization" price used
	// for baseline cost reporting.
	ReferencePriceGBPPerKWh = 0.15

	// ReferenceCarbonGCO2PerKWh is the baseline carbon intensity.
	ReferenceCarbonGCO2PerKWh = 250.0

	// ScoreReferencePrice and ScoreReferenceCarbon normalize window scores
	// so price and carbon weigh equally.
	ScoreReferencePrice  = 0.15
	ScoreReferenceCarbon = 200.0

	// DefaultWindowCount is how many candidate windows the forecaster
	// returns per job.
	DefaultWindowCount = 3

	// DefaultHorizonHours is the forecast horizon.
	DefaultHorizonHours = 24
)

// Priority thresholds for SLA tier derivation.
const (
	CriticalPriorityThreshold = 9
	StandardPriorityThreshold = 6
)
