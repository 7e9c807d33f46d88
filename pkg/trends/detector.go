// Package trends detects volume-trend spikes from time-bucketed post counts.
package trends

import "github.com/gamepop/fin-x-watcher/pkg/models"

// SpikeThresholdPercent is the velocity change above which a series counts as
// spiking.
const SpikeThresholdPercent = 50.0

// Velocity computes the relative volume change between the older and recent
// halves of a bucketed series. Series with fewer than two buckets have no
// trend and yield zero.
func Velocity(buckets []models.CountBucket) float64 {
	if len(buckets) < 2 {
		return 0
	}

	mid := len(buckets) / 2
	var older, recent int
	for _, b := range buckets[:mid] {
		older += b.Count
	}
	for _, b := range buckets[mid:] {
		recent += b.Count
	}

	if older == 0 {
		if recent > 0 {
			return 100
		}
		return 0
	}
	return float64(recent-older) / float64(older) * 100
}

// Summarize derives a TrendSummary from a bucketed count series.
func Summarize(buckets []models.CountBucket) models.TrendSummary {
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	velocity := Velocity(buckets)
	return models.TrendSummary{
		Buckets:               buckets,
		TotalCount:            total,
		VelocityChangePercent: velocity,
		IsSpiking:             velocity > SpikeThresholdPercent,
	}
}

// ErrorSummary marks trend data as unavailable. Trend data is best-effort, so
// fetch failures become an explicit marker instead of an error return.
func ErrorSummary(err error) models.TrendSummary {
	return models.TrendSummary{Err: err.Error()}
}
