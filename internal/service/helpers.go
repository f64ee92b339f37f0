package service

import (
	"math"
	"time"
)

// engagementRate divides numerator by denominator and returns nil instead of
// NaN or Inf, so a zero denominator never leaks into storage.
func engagementRate(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	rate := numerator / denominator
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}
	return &rate
}

// snapshotDate is the single capture date for a whole sync run.
func snapshotDate(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
