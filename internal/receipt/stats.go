package receipt

import (
	"math"
	"sort"
	"time"
)

// GreenThreshold is the lowest ecoScore that counts as a green purchase
const GreenThreshold = 7.0

// scorePrecision is the number of decimal places scores are rounded to
const scorePrecision = 4

// EcoStats summarizes the eco scores of a receipt collection
type EcoStats struct {
	TotalScore     float64        `json:"totalScore"`
	AverageScore   float64        `json:"averageScore"`
	GreenPurchases int            `json:"greenPurchases"`
	TotalPurchases int            `json:"totalPurchases"`
	MonthlyTrend   []MonthlyScore `json:"monthlyTrend"`
}

// MonthlyScore is the mean ecoScore of the receipts uploaded in one calendar month
type MonthlyScore struct {
	Month string  `json:"month"` // YYYY-MM, UTC
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Aggregate derives EcoStats from a receipt collection. Months without
// receipts do not appear in the trend.
func Aggregate(receipts []Receipt) EcoStats {
	stats := EcoStats{
		TotalPurchases: len(receipts),
		MonthlyTrend:   make([]MonthlyScore, 0),
	}

	type bucket struct {
		start time.Time
		sum   float64
		count int
	}
	months := make(map[time.Time]*bucket)

	var total float64
	for _, r := range receipts {
		total += r.EcoScore
		if r.EcoScore >= GreenThreshold {
			stats.GreenPurchases++
		}

		d := r.UploadDate.UTC()
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, ok := months[start]
		if !ok {
			b = &bucket{start: start}
			months[start] = b
		}
		b.sum += r.EcoScore
		b.count++
	}

	stats.TotalScore = roundScore(total)
	if len(receipts) > 0 {
		stats.AverageScore = roundScore(total / float64(len(receipts)))
	}

	for _, b := range months {
		stats.MonthlyTrend = append(stats.MonthlyTrend, MonthlyScore{
			Month: b.start.Format("2006-01"),
			Score: roundScore(b.sum / float64(b.count)),
			Count: b.count,
		})
	}
	// YYYY-MM sorts chronologically as a string
	sort.Slice(stats.MonthlyTrend, func(i, j int) bool {
		return stats.MonthlyTrend[i].Month < stats.MonthlyTrend[j].Month
	})

	return stats
}

func roundScore(v float64) float64 {
	p := math.Pow(10, scorePrecision)
	return math.Round(v*p) / p
}
