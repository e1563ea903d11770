package stats

import (
	"sort"
	"time"

	"githubinsight/models"
)

// Chronotype labels.
const (
	EarlyBird = "Early Bird"
	NightOwl  = "Night Owl"
	DayWalker = "Day Walker"
)

// LongestStreak returns the longest run of consecutive calendar days (UTC) with
// at least one commit.
func LongestStreak(commits []models.CommitRecord) int {
	if len(commits) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(commits))
	days := make([]time.Time, 0, len(commits))
	for _, c := range commits {
		d := truncateDay(c.Date)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, current := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

// MostProductiveDay returns the weekday name with the most commits.
func MostProductiveDay(commits []models.CommitRecord) string {
	return mode(commits, func(t time.Time) string { return t.Weekday().String() })
}

// MostActiveMonth returns the month name with the most commits.
func MostActiveMonth(commits []models.CommitRecord) string {
	return mode(commits, func(t time.Time) string { return t.Month().String() })
}

// Chronotype classifies the average commit hour. Early Bird is checked first,
// so an average below 4 is an Early Bird too.
func Chronotype(commits []models.CommitRecord) string {
	if len(commits) == 0 {
		return DayWalker
	}
	total := 0
	for _, c := range commits {
		total += c.Date.Hour()
	}
	avg := float64(total) / float64(len(commits))

	switch {
	case avg < 10:
		return EarlyBird
	case avg >= 20 || avg < 4:
		return NightOwl
	default:
		return DayWalker
	}
}

// mode returns the most frequent key; ties go to the key seen first.
func mode(commits []models.CommitRecord, key func(time.Time) string) string {
	counts := make(map[string]int)
	var order []string
	for _, c := range commits {
		k := key(c.Date)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}

	best, bestCount := "", 0
	for _, k := range order {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
