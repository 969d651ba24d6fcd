package bidstrategy

import (
	"github.com/benbjohnson/clock"

	"github.com/gridshift-project/gridshift/pkg/models"
	"github.com/gridshift-project/gridshift/pkg/util/idgen"
)

// DefaultRevenueShare is the fraction of market revenue the platform
// retains.
const DefaultRevenueShare = 0.10

// Valuator prices the optional revenue from offering a job's flexibility
// into a grid balancing market event.
type Valuator struct {
	revenueShare float64
	clock        clock.Clock
}

type Option func(*Valuator)

func WithRevenueShare(share float64) Option {
	return func(v *Valuator) {
		if share >= 0 && share < 1 {
			v.revenueShare = share
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(v *Valuator) {
		v.clock = c
	}
}

func NewValuator(options ...Option) *Valuator {
	v := &Valuator{
		revenueShare: DefaultRevenueShare,
		clock:        clock.New(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Value returns the expected net revenue if the job is offered into the
// event, after the platform share. Ineligible combinations are worth 0.
//
// revenue = clearing price (currency/MW/h) x power (MW) x duration (h) x multiplier
func (v *Valuator) Value(job models.Job, event models.FlexibilityEvent) float64 {
	spec, ok := SpecFor(event.Product)
	if !ok || !eligible(job, event.Product) {
		return 0
	}
	durationHours := float64(event.DurationMinutes) / 60
	revenue := event.ClearingPrice * job.PowerMW * durationHours * spec.RevenueMultiplier
	return revenue * (1 - v.revenueShare)
}

// CreateBid builds a bid record for the job/event pair, or nil when the
// net value is not positive.
func (v *Valuator) CreateBid(job models.Job, event models.FlexibilityEvent) *models.Bid {
	value := v.Value(job, event)
	if value <= 0 {
		return nil
	}
	durationHours := float64(event.DurationMinutes) / 60
	return &models.Bid{
		ID:              idgen.NewBidID(),
		JobID:           job.ID,
		Product:         event.Product,
		PowerMW:         job.PowerMW,
		DurationMinutes: event.DurationMinutes,
		BidPrice:        value / (job.PowerMW * durationHours),
		ExpectedRevenue: value,
		CreatedAt:       v.clock.Now(),
	}
}

// TotalPotential sums the expected net revenue across every job/event
// pairing.
func (v *Valuator) TotalPotential(jobs []models.Job, events []models.FlexibilityEvent) float64 {
	var total float64
	for _, job := range jobs {
		for _, event := range events {
			total += v.Value(job, event)
		}
	}
	return total
}
