package models

import "time"

// SystemMetrics is a point-in-time digest of the service's instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	SessionsClosed           uint64    `json:"sessions_closed"`
	ResponsesSubmitted       uint64    `json:"responses_submitted"`
	AverageCompileDurationMs float64   `json:"average_compile_duration_ms"`
	CloseJobFailures         uint64    `json:"close_job_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
