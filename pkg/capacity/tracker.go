package capacity

import (
	"fmt"

	"github.com/gridshift-project/gridshift/pkg/models"
)

// Snapshot is the per-region available capacity reported by the capacity
// source at the start of a cycle.
type Snapshot map[string]models.Resources

// Tracker is the per-region, per-hour reservation table for one
// optimization cycle. The optimizer owns it and decrements it during its
// sequential reservation pass; it is never shared across cycles.
type Tracker struct {
	hours     int
	remaining map[string][]models.Resources
}

// NewTracker builds a tracker where every hour of the horizon starts with
// the region's snapshot capacity.
func NewTracker(snapshot Snapshot, horizonHours int) *Tracker {
	remaining := make(map[string][]models.Resources, len(snapshot))
	for region, res := range snapshot {
		hours := make([]models.Resources, horizonHours)
		for h := range hours {
			hours[h] = res
		}
		remaining[region] = hours
	}
	return &Tracker{hours: horizonHours, remaining: remaining}
}

// Regions returns the regions the tracker knows about.
func (t *Tracker) Regions() []string {
	regions := make([]string, 0, len(t.remaining))
	for region := range t.remaining {
		regions = append(regions, region)
	}
	return regions
}

// Fits reports whether the demand fits in every hour of
// [startHour, endHour) for the region.
func (t *Tracker) Fits(region string, startHour, endHour int, demand models.Resources) bool {
	hours, ok := t.remaining[region]
	if !ok {
		return false
	}
	if startHour < 0 || endHour > len(hours) || startHour >= endHour {
		return false
	}
	for h := startHour; h < endHour; h++ {
		if !hours[h].Covers(demand) {
			return false
		}
	}
	return true
}

// Reserve decrements the region's remaining capacity for every hour of
// [startHour, endHour). It checks the whole range first so a failed
// reservation never leaves a partial decrement.
func (t *Tracker) Reserve(region string, startHour, endHour int, demand models.Resources) error {
	if !t.Fits(region, startHour, endHour, demand) {
		return fmt.Errorf("insufficient capacity in %s for hours [%d,%d): need %s",
			region, startHour, endHour, demand)
	}
	hours := t.remaining[region]
	for h := startHour; h < endHour; h++ {
		hours[h] = hours[h].Sub(demand)
	}
	return nil
}

// Remaining returns the free capacity of a region at a given hour.
func (t *Tracker) Remaining(region string, hour int) models.Resources {
	hours, ok := t.remaining[region]
	if !ok || hour < 0 || hour >= len(hours) {
		return models.Resources{}
	}
	return hours[hour]
}
