package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Rating scale bounds used by the distribution.
const (
	MinRating = 1
	MaxRating = 5
)

// CommentEntry is a comment surfaced in one of the compiled buckets.
type CommentEntry struct {
	Text       string  `json:"text"`
	AvgRating  float64 `json:"avgRating"`
	ResponseID string  `json:"responseId"`
}

// CompiledStats is the frozen summary attached to a closed session.
// Recompilation replaces it wholesale.
type CompiledStats struct {
	TotalResponses     int            `json:"totalResponses"`
	AvgRating          float64        `json:"avgRating"`
	TopRating          float64        `json:"topRating"`
	LeastRating        float64        `json:"leastRating"`
	RatingDistribution map[int]int    `json:"ratingDistribution"`
	TopComments        []CommentEntry `json:"topComments"`
	AvgComments        []CommentEntry `json:"avgComments"`
	LeastRatedComments []CommentEntry `json:"leastRatedComments"`
	CompiledAt         time.Time      `json:"compiledAt"`
}

// EmptyDistribution returns a distribution with every 1..5 bucket zeroed.
func EmptyDistribution() map[int]int {
	dist := make(map[int]int, MaxRating-MinRating+1)
	for r := MinRating; r <= MaxRating; r++ {
		dist[r] = 0
	}
	return dist
}

// RatingAnswerCount sums the distribution buckets.
func (s CompiledStats) RatingAnswerCount() int {
	total := 0
	for _, count := range s.RatingDistribution {
		total += count
	}
	return total
}

// Value marshals stats to JSON for persistence.
func (s CompiledStats) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal compiled stats: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the stats struct.
func (s *CompiledStats) Scan(value interface{}) error {
	data, err := jsonBytes(value, "CompiledStats")
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*s = CompiledStats{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal compiled stats: %w", err)
	}
	return nil
}
