package service

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/feedback-sessions-api/internal/models"
)

const (
	// bucketShare is the fraction of rated responses that form the top and the bottom bucket.
	bucketShare = 0.2
	// commentsPerBucket caps every comment bucket.
	commentsPerBucket = 5
)

// responseSummary is the per-response view the aggregation works on.
type responseSummary struct {
	responseID string
	ratings    []float64
	avgRating  float64
	comments   []string
}

func (r responseSummary) rated() bool {
	return len(r.ratings) > 0
}

// CompileStats produces the frozen statistics for a session's responses.
//
// It is a pure function of its input: no I/O and no shared state, so it is safe
// to call concurrently for different sessions. Responses must be passed in the
// repository's submission order because equal averages keep their input order
// when bucketing comments. Empty input yields the zero summary.
func CompileStats(responses []models.Response) models.CompiledStats {
	return compileStats(responses, time.Now().UTC())
}

func compileStats(responses []models.Response, now time.Time) models.CompiledStats {
	summaries := make([]responseSummary, 0, len(responses))
	for _, response := range responses {
		summaries = append(summaries, summarizeResponse(response))
	}

	rated := filterRated(summaries)
	avg, top, least := ratingAggregates(rated)
	high, mid, low := percentileBuckets(rated)

	return models.CompiledStats{
		TotalResponses:     len(responses),
		AvgRating:          round2(avg),
		TopRating:          round2(top),
		LeastRating:        round2(least),
		RatingDistribution: ratingDistribution(summaries),
		TopComments:        extractComments(high),
		AvgComments:        extractComments(mid),
		LeastRatedComments: extractComments(low),
		CompiledAt:         now,
	}
}

func summarizeResponse(response models.Response) responseSummary {
	summary := responseSummary{responseID: response.ID}
	for _, answer := range response.Answers {
		switch v := answer.Value.(type) {
		case models.Rating:
			if value, ok := usableRating(v); ok {
				summary.ratings = append(summary.ratings, value)
			}
		case models.FreeText:
			if strings.TrimSpace(string(v)) != "" {
				summary.comments = append(summary.comments, string(v))
			}
		}
	}
	if summary.rated() {
		summary.avgRating = mean(summary.ratings)
	}
	return summary
}

// usableRating discards non-finite values and values that do not round into 1..5.
func usableRating(r models.Rating) (float64, bool) {
	value := float64(r)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	bucket := int(math.Round(value))
	if bucket < models.MinRating || bucket > models.MaxRating {
		return 0, false
	}
	return value, true
}

func filterRated(summaries []responseSummary) []responseSummary {
	rated := make([]responseSummary, 0, len(summaries))
	for _, summary := range summaries {
		if summary.rated() {
			rated = append(rated, summary)
		}
	}
	return rated
}

func ratingAggregates(rated []responseSummary) (avg, top, least float64) {
	if len(rated) == 0 {
		return 0, 0, 0
	}
	averages := make([]float64, len(rated))
	top, least = rated[0].avgRating, rated[0].avgRating
	for i, summary := range rated {
		averages[i] = summary.avgRating
		top = math.Max(top, summary.avgRating)
		least = math.Min(least, summary.avgRating)
	}
	return mean(averages), top, least
}

func ratingDistribution(summaries []responseSummary) map[int]int {
	dist := models.EmptyDistribution()
	for _, summary := range summaries {
		for _, rating := range summary.ratings {
			bucket := int(math.Round(rating))
			if bucket < models.MinRating || bucket > models.MaxRating {
				continue
			}
			dist[bucket]++
		}
	}
	return dist
}

// percentileBuckets splits rated responses into high, middle and low slices by rank.
// Slicing is strictly by index: with a single rated response the high and the low
// slice both hold it and the middle is empty.
func percentileBuckets(rated []responseSummary) (high, mid, low []responseSummary) {
	n := len(rated)
	if n == 0 {
		return nil, nil, nil
	}

	sorted := make([]responseSummary, n)
	copy(sorted, rated)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].avgRating > sorted[j].avgRating
	})

	topCount := bucketSize(n)
	bottomCount := bucketSize(n)

	high = sorted[:minInt(topCount, n)]

	lowStart := maxInt(n-bottomCount, 0)
	low = make([]responseSummary, 0, n-lowStart)
	for i := n - 1; i >= lowStart; i-- {
		low = append(low, sorted[i])
	}

	if topCount < lowStart {
		mid = sorted[topCount:lowStart]
	}
	return high, mid, low
}

// bucketSize is ceil(n * bucketShare) computed without float drift.
func bucketSize(n int) int {
	per := int(math.Round(1 / bucketShare))
	return (n + per - 1) / per
}

func extractComments(bucket []responseSummary) []models.CommentEntry {
	comments := make([]models.CommentEntry, 0, commentsPerBucket)
	for _, summary := range bucket {
		for _, text := range summary.comments {
			if len(comments) == commentsPerBucket {
				return comments
			}
			comments = append(comments, models.CommentEntry{
				Text:       text,
				AvgRating:  round2(summary.avgRating),
				ResponseID: summary.responseID,
			})
		}
	}
	return comments
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
