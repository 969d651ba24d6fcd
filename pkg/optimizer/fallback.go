package optimizer

import (
	"github.com/gridshift-project/gridshift/pkg/models"
)

// Fallback produces the degraded-but-safe FIFO schedule: every job starts
// immediately in its preferred region (or the default) at that region's
// hour-zero spot price and carbon. It is a pure function of its inputs so
// the same job list and forecast always yield the same schedule.
func Fallback(jobs []models.Job, forecast *models.GridForecast) *models.Schedule {
	assignments := make([]models.Assignment, 0, len(jobs))
	for _, job := range jobs {
		region := job.Region()
		price := models.ReferencePriceGBPPerKWh
		carbon := models.ReferenceCarbonGCO2PerKWh
		if forecast != nil {
			price = forecast.SpotPrice(region, 0)
			carbon = forecast.SpotCarbon(region, 0)
		}
		assignments = append(assignments, models.Assignment{
			JobID:          job.ID,
			Region:         region,
			StartHour:      0,
			EndHour:        job.DurationHours,
			Cost:           job.EnergyKWh * price,
			Carbon:         job.EnergyKWh * carbon,
			BaselineCost:   job.EnergyKWh * models.ReferencePriceGBPPerKWh,
			BaselineCarbon: job.EnergyKWh * models.ReferenceCarbonGCO2PerKWh,
		})
	}
	return &models.Schedule{Assignments: assignments, Fallback: true}
}
