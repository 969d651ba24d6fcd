package forecast

import (
	"context"
	"math"
	"math/rand"

	"github.com/gridshift-project/gridshift/pkg/models"
)

// regionProfile shapes the synthetic series so regions differ in a
// plausible way: scotland is cleaner and slightly cheaper, south is the
// most expensive.
type regionProfile struct {
	basePrice  float64 // currency/kWh
	baseCarbon float64 // gCO2/kWh
}

var defaultProfiles = map[string]regionProfile{
	"north":    {basePrice: 0.14, baseCarbon: 200},
	"south":    {basePrice: 0.17, baseCarbon: 230},
	"scotland": {basePrice: 0.11, baseCarbon: 90},
}

var fallbackProfile = regionProfile{basePrice: models.ReferencePriceGBPPerKWh, baseCarbon: models.ReferenceCarbonGCO2PerKWh}

// SyntheticSource generates deterministic grid data, used both as the
// per-source fallback when a real source fails and as the demo data feed.
// The same seed always yields the same series and events.
type SyntheticSource struct {
	regions []string
	seed    int64
}

func NewSyntheticSource(regions []string, seed int64) *SyntheticSource {
	return &SyntheticSource{regions: regions, seed: seed}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) FetchPriceForecast(_ context.Context, horizonHours int) (map[string][]float64, error) {
	res := make(map[string][]float64, len(s.regions))
	for _, region := range s.regions {
		profile := profileFor(region)
		series := make([]float64, horizonHours)
		for h := 0; h < horizonHours; h++ {
			// evening peak around hour 18, overnight trough around hour 3
			series[h] = profile.basePrice * (1 + 0.35*math.Sin(2*math.Pi*float64(h-9)/24))
		}
		res[region] = series
	}
	return res, nil
}

func (s *SyntheticSource) FetchCarbonForecast(_ context.Context, horizonHours int) (map[string][]float64, error) {
	res := make(map[string][]float64, len(s.regions))
	for _, region := range s.regions {
		profile := profileFor(region)
		series := make([]float64, horizonHours)
		for h := 0; h < horizonHours; h++ {
			// carbon dips midday with solar, peaks in the evening
			series[h] = profile.baseCarbon * (1 + 0.3*math.Cos(2*math.Pi*float64(h-19)/24))
		}
		res[region] = series
	}
	return res, nil
}

func (s *SyntheticSource) FetchFlexibilityEvents(_ context.Context, horizonHours int) ([]models.FlexibilityEvent, error) {
	rng := rand.New(rand.NewSource(s.seed)) //nolint:gosec // reproducible demo data, not crypto
	count := 3 + rng.Intn(6)
	events := make([]models.FlexibilityEvent, 0, count)
	for i := 0; i < count; i++ {
		region := s.regions[rng.Intn(len(s.regions))]
		hour := rng.Intn(horizonHours)
		var event models.FlexibilityEvent
		switch rng.Intn(3) {
		case 0:
			event = models.FlexibilityEvent{
				Product:         models.ProductFastResponse,
				ClearingPrice:   100 + rng.Float64()*150,
				DurationMinutes: 30,
				VolumeMW:        10 + rng.Float64()*40,
			}
		case 1:
			event = models.FlexibilityEvent{
				Product:         models.ProductMediumResponse,
				ClearingPrice:   50 + rng.Float64()*100,
				DurationMinutes: 60,
				VolumeMW:        20 + rng.Float64()*60,
			}
		default:
			event = models.FlexibilityEvent{
				Product:         models.ProductSlowResponse,
				ClearingPrice:   20 + rng.Float64()*80,
				DurationMinutes: 120,
				VolumeMW:        30 + rng.Float64()*70,
			}
		}
		event.Hour = hour
		event.Region = region
		events = append(events, event)
	}
	return events, nil
}

func profileFor(region string) regionProfile {
	if p, ok := defaultProfiles[region]; ok {
		return p
	}
	return fallbackProfile
}

var (
	_ PriceSource  = &SyntheticSource{}
	_ CarbonSource = &SyntheticSource{}
	_ EventSource  = &SyntheticSource{}
)
