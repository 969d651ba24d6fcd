//go:build unit || !integration

package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/gridshift-project/gridshift/pkg/logger"
	"github.com/gridshift-project/gridshift/pkg/models"
)

var testRegions = []string{"north", "south", "scotland"}

type failingPriceSource struct{}

func (failingPriceSource) Name() string { return "broken-price-feed" }
func (failingPriceSource) FetchPriceForecast(context.Context, int) (map[string][]float64, error) {
	return nil, errors.New("upstream 503")
}

type hangingEventSource struct{}

func (hangingEventSource) Name() string { return "slow-event-feed" }
func (hangingEventSource) FetchFlexibilityEvents(ctx context.Context, _ int) ([]models.FlexibilityEvent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type IngestorSuite struct {
	suite.Suite
	ctx context.Context
}

func TestIngestorSuite(t *testing.T) {
	suite.Run(t, new(IngestorSuite))
}

func (s *IngestorSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
}

func (s *IngestorSuite) TestHealthySources() {
	ingestor := NewIngestor(IngestorParams{
		Regions:  testRegions,
		Fallback: NewSyntheticSource(testRegions, 7),
	})

	fc := ingestor.Fetch(s.ctx, 24)
	s.Require().NotNil(fc)
	s.Equal(24, fc.HorizonHours)
	s.False(fc.IsDegraded(), "synthetic primaries do not degrade")
	s.Len(fc.Price["north"], 24)
	s.Len(fc.Carbon["scotland"], 24)
	s.Positive(fc.AvgPrice)
	s.Positive(fc.AvgCarbon)
}

func (s *IngestorSuite) TestFailingSourceFallsBack() {
	ingestor := NewIngestor(IngestorParams{
		Regions:  testRegions,
		Price:    failingPriceSource{},
		Fallback: NewSyntheticSource(testRegions, 7),
	})

	fc := ingestor.Fetch(s.ctx, 24)
	s.Require().NotNil(fc)
	s.True(fc.IsDegraded())
	s.Equal([]string{"broken-price-feed"}, fc.DegradedSources)
	s.Len(fc.Price["north"], 24, "fallback data still covers the horizon")
}

func (s *IngestorSuite) TestHangingSourceTimesOut() {
	ingestor := NewIngestor(IngestorParams{
		Regions:       testRegions,
		Events:        hangingEventSource{},
		Fallback:      NewSyntheticSource(testRegions, 7),
		SourceTimeout: 20 * time.Millisecond,
	})

	fc := ingestor.Fetch(s.ctx, 24)
	s.Require().NotNil(fc)
	s.Contains(fc.DegradedSources, "slow-event-feed")
	s.NotEmpty(fc.Events, "fallback events stand in")
}

func (s *IngestorSuite) TestCacheTTL() {
	mock := clock.NewMock()
	ingestor := NewIngestor(IngestorParams{
		Regions:  testRegions,
		Fallback: NewSyntheticSource(testRegions, 7),
		CacheTTL: 5 * time.Minute,
		Clock:    mock,
	})

	first := ingestor.Fetch(s.ctx, 24)
	second := ingestor.Fetch(s.ctx, 24)
	s.Same(first, second, "fresh forecast is served from cache")

	mock.Add(5 * time.Minute)
	third := ingestor.Fetch(s.ctx, 24)
	s.NotSame(first, third, "expired cache triggers a refetch")
}

func (s *IngestorSuite) TestCacheIgnoredForDifferentHorizon() {
	ingestor := NewIngestor(IngestorParams{
		Regions:  testRegions,
		Fallback: NewSyntheticSource(testRegions, 7),
	})

	first := ingestor.Fetch(s.ctx, 24)
	second := ingestor.Fetch(s.ctx, 12)
	s.NotSame(first, second)
	s.Equal(12, second.HorizonHours)
}

func (s *IngestorSuite) TestInvalidate() {
	ingestor := NewIngestor(IngestorParams{
		Regions:  testRegions,
		Fallback: NewSyntheticSource(testRegions, 7),
	})

	first := ingestor.Fetch(s.ctx, 24)
	ingestor.Invalidate()
	second := ingestor.Fetch(s.ctx, 24)
	s.NotSame(first, second)
}

func TestSyntheticSourceDeterminism(t *testing.T) {
	logger.ConfigureTestLogging(t)
	ctx := context.Background()

	a := NewSyntheticSource(testRegions, 42)
	b := NewSyntheticSource(testRegions, 42)

	eventsA, err := a.FetchFlexibilityEvents(ctx, 24)
	if err != nil {
		t.Fatal(err)
	}
	eventsB, err := b.FetchFlexibilityEvents(ctx, 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(eventsA) != len(eventsB) {
		t.Fatalf("same seed produced %d vs %d events", len(eventsA), len(eventsB))
	}
	for i := range eventsA {
		if eventsA[i] != eventsB[i] {
			t.Fatalf("event %d differs across identically seeded sources", i)
		}
	}
}
