package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.ptx.dk/multierrgroup"

	"github.com/gridshift-project/gridshift/pkg/models"
)

const (
	DefaultSourceTimeout = 10 * time.Second
	DefaultCacheTTL      = 5 * time.Minute
)

// IngestorParams wires an Ingestor. Fallback is required; it stands in for
// any source that is nil, fails, or times out.
type IngestorParams struct {
	Regions  []string
	Price    PriceSource
	Carbon   CarbonSource
	Events   EventSource
	Fallback *SyntheticSource

	// SourceTimeout bounds each individual source fetch.
	SourceTimeout time.Duration
	// CacheTTL is how long a fetched forecast is served from cache.
	CacheTTL time.Duration
	Clock    clock.Clock
}

// Ingestor builds the GridForecast for a cycle. The three source fetches
// run concurrently, each under its own timeout with its own fallback, so
// one slow or failing source never blocks the others.
type Ingestor struct {
	regions  []string
	price    PriceSource
	carbon   CarbonSource
	events   EventSource
	fallback *SyntheticSource

	sourceTimeout time.Duration
	cacheTTL      time.Duration
	clock         clock.Clock

	mu     sync.Mutex
	cached *models.GridForecast
}

func NewIngestor(params IngestorParams) *Ingestor {
	ing := &Ingestor{
		regions:       params.Regions,
		price:         params.Price,
		carbon:        params.Carbon,
		events:        params.Events,
		fallback:      params.Fallback,
		sourceTimeout: params.SourceTimeout,
		cacheTTL:      params.CacheTTL,
		clock:         params.Clock,
	}
	if ing.fallback == nil {
		ing.fallback = NewSyntheticSource(params.Regions, 0)
	}
	if ing.price == nil {
		ing.price = ing.fallback
	}
	if ing.carbon == nil {
		ing.carbon = ing.fallback
	}
	if ing.events == nil {
		ing.events = ing.fallback
	}
	if ing.sourceTimeout <= 0 {
		ing.sourceTimeout = DefaultSourceTimeout
	}
	if ing.cacheTTL <= 0 {
		ing.cacheTTL = DefaultCacheTTL
	}
	if ing.clock == nil {
		ing.clock = clock.New()
	}
	return ing
}

// Fetch returns the grid forecast for the horizon, served from cache while
// it is fresh. Fetch never fails: a degraded source is replaced by
// synthetic data and recorded on the forecast.
func (i *Ingestor) Fetch(ctx context.Context, horizonHours int) *models.GridForecast {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	if i.cached != nil && i.cached.HorizonHours == horizonHours && now.Sub(i.cached.FetchedAt) < i.cacheTTL {
		log.Ctx(ctx).Debug().Time("FetchedAt", i.cached.FetchedAt).Msg("serving cached grid forecast")
		return i.cached
	}

	var (
		resultMu sync.Mutex
		prices   map[string][]float64
		carbons  map[string][]float64
		events   []models.FlexibilityEvent
		degraded []string
	)

	wg := multierrgroup.Group{}
	wg.Go(func() error {
		data, err := i.fetchPrices(ctx, horizonHours)
		resultMu.Lock()
		defer resultMu.Unlock()
		prices = data
		if err != nil {
			degraded = append(degraded, i.price.Name())
		}
		return err
	})
	wg.Go(func() error {
		data, err := i.fetchCarbon(ctx, horizonHours)
		resultMu.Lock()
		defer resultMu.Unlock()
		carbons = data
		if err != nil {
			degraded = append(degraded, i.carbon.Name())
		}
		return err
	})
	wg.Go(func() error {
		data, err := i.fetchEvents(ctx, horizonHours)
		resultMu.Lock()
		defer resultMu.Unlock()
		events = data
		if err != nil {
			degraded = append(degraded, i.events.Name())
		}
		return err
	})
	if err := wg.Wait(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Strs("Degraded", degraded).
			Msg("one or more forecast sources fell back to synthetic data")
	}

	fc := &models.GridForecast{
		HorizonHours:    horizonHours,
		Regions:         i.regions,
		Price:           prices,
		Carbon:          carbons,
		Events:          events,
		FetchedAt:       now,
		DegradedSources: degraded,
	}
	fc.AvgPrice = seriesAverage(prices)
	fc.AvgCarbon = seriesAverage(carbons)

	i.cached = fc
	return fc
}

// Invalidate drops the cached forecast so the next Fetch goes to the
// sources.
func (i *Ingestor) Invalidate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cached = nil
}

func (i *Ingestor) fetchPrices(ctx context.Context, horizonHours int) (map[string][]float64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, i.sourceTimeout)
	defer cancel()
	data, err := i.price.FetchPriceForecast(fetchCtx, horizonHours)
	if err == nil {
		return data, nil
	}
	log.Ctx(ctx).Warn().Err(err).Str("Source", i.price.Name()).Msg("price source failed")
	data, _ = i.fallback.FetchPriceForecast(context.Background(), horizonHours)
	return data, err
}

func (i *Ingestor) fetchCarbon(ctx context.Context, horizonHours int) (map[string][]float64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, i.sourceTimeout)
	defer cancel()
	data, err := i.carbon.FetchCarbonForecast(fetchCtx, horizonHours)
	if err == nil {
		return data, nil
	}
	log.Ctx(ctx).Warn().Err(err).Str("Source", i.carbon.Name()).Msg("carbon source failed")
	data, _ = i.fallback.FetchCarbonForecast(context.Background(), horizonHours)
	return data, err
}

func (i *Ingestor) fetchEvents(ctx context.Context, horizonHours int) ([]models.FlexibilityEvent, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, i.sourceTimeout)
	defer cancel()
	data, err := i.events.FetchFlexibilityEvents(fetchCtx, horizonHours)
	if err == nil {
		return data, nil
	}
	log.Ctx(ctx).Warn().Err(err).Str("Source", i.events.Name()).Msg("event source failed")
	data, _ = i.fallback.FetchFlexibilityEvents(context.Background(), horizonHours)
	return data, err
}

func seriesAverage(series map[string][]float64) float64 {
	var sum float64
	var n int
	for _, values := range series {
		for _, v := range values {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
