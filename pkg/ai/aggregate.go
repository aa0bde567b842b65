package ai

import (
	"math"
	"sort"
)

// AggregateItems averages item scores overall and per category.
// An item without a category is left out of that category's average.
func AggregateItems(items []SummaryItem) Aggregate {
	result := Aggregate{CategoryAverages: map[string]float64{}, AnswerCount: len(items)}
	if len(items) == 0 {
		return result
	}

	sorted := sortedItems(items)

	sums := make(map[string]float64)
	counts := make(map[string]int)
	total := 0.0
	for _, item := range sorted {
		total += item.Score
		names := make([]string, 0, len(item.CategoryScores))
		for name := range item.CategoryScores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sums[name] += item.CategoryScores[name]
			counts[name]++
		}
	}

	result.OverallScore = round2(total / float64(len(sorted)))
	for name, sum := range sums {
		result.CategoryAverages[name] = round2(sum / float64(counts[name]))
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
