package bidstrategy

import "github.com/gridshift-project/gridshift/pkg/models"

// ProductSpec describes a flexibility market product class: how fast a
// participant must respond and what share of the clearing value a job of
// that class typically captures.
type ProductSpec struct {
	Name                string
	ResponseTimeSeconds int
	MinDurationMinutes  int
	RevenueMultiplier   float64
}

var productSpecs = map[models.ProductClass]ProductSpec{
	models.ProductFastResponse: {
		Name:                "Dynamic Containment",
		ResponseTimeSeconds: 1,
		MinDurationMinutes:  30,
		RevenueMultiplier:   0.8,
	},
	models.ProductMediumResponse: {
		Name:                "Dynamic Moderation",
		ResponseTimeSeconds: 300,
		MinDurationMinutes:  60,
		RevenueMultiplier:   0.5,
	},
	models.ProductSlowResponse: {
		Name:                "Dynamic Regulation",
		ResponseTimeSeconds: 600,
		MinDurationMinutes:  120,
		RevenueMultiplier:   0.3,
	},
}

// SpecFor returns the product spec for a class.
func SpecFor(product models.ProductClass) (ProductSpec, bool) {
	spec, ok := productSpecs[product]
	return spec, ok
}

// eligible reports whether the job's flexibility attributes allow it to
// participate in the product class at all.
func eligible(job models.Job, product models.ProductClass) bool {
	switch product {
	case models.ProductFastResponse:
		// requires immediate interrupt capability
		return job.CanInterrupt
	case models.ProductMediumResponse:
		return job.CanDefer && job.FlexibilityMinutes >= 5
	case models.ProductSlowResponse:
		return job.CanDefer
	default:
		return false
	}
}
