package metrics

import "time"

// Stage times one pipeline stage. Call the returned func with the error code ("" on success).
func Stage(name string) func(errorCode string) {
	start := time.Now()
	StageRunsTotal.WithLabelValues(name).Inc()
	return func(errorCode string) {
		StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if errorCode != "" {
			StageFailuresTotal.WithLabelValues(name, errorCode).Inc()
		}
	}
}
