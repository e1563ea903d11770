// Package stats derives summary statistics from a built data model.
// Every function is pure and safe to call in any order.
package stats

import (
	"sort"

	"githubinsight/models"
)

// LanguageCount is the number of repositories whose primary language is Language.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// BasicStats are the headline totals of a profile.
type BasicStats struct {
	TotalRepos   int             `json:"total_repos"`
	TotalStars   int             `json:"total_stars"`
	Languages    []LanguageCount `json:"top_languages"`
	TotalCommits int             `json:"total_commits_tracked"`
}

// Summary bundles the per-profile statistics.
type Summary struct {
	Basic             BasicStats `json:"basic"`
	LongestStreak     int        `json:"longest_streak"`
	MostProductiveDay string     `json:"most_productive_day"`
	MostActiveMonth   string     `json:"most_active_month"`
	Chronotype        string     `json:"chronotype"`
	TopLanguage       string     `json:"top_language"`
}

// Basic counts repositories, stars and commits. Languages are ordered by
// descending repository count; equal counts keep first-seen order.
func Basic(m *models.DataModel) BasicStats {
	stats := BasicStats{
		TotalRepos:   len(m.Repos),
		TotalCommits: len(m.Commits),
	}

	index := make(map[string]int)
	for _, r := range m.Repos {
		stats.TotalStars += r.Stars
		i, ok := index[r.Language]
		if !ok {
			i = len(stats.Languages)
			index[r.Language] = i
			stats.Languages = append(stats.Languages, LanguageCount{Language: r.Language})
		}
		stats.Languages[i].Count++
	}
	sort.SliceStable(stats.Languages, func(i, j int) bool {
		return stats.Languages[i].Count > stats.Languages[j].Count
	})
	return stats
}

// TopLanguage returns the most common language, or "" without repositories.
func TopLanguage(b BasicStats) string {
	if len(b.Languages) == 0 {
		return ""
	}
	return b.Languages[0].Language
}

// Summarize computes every profile-level statistic.
func Summarize(m *models.DataModel) Summary {
	basic := Basic(m)
	return Summary{
		Basic:             basic,
		LongestStreak:     LongestStreak(m.Commits),
		MostProductiveDay: MostProductiveDay(m.Commits),
		MostActiveMonth:   MostActiveMonth(m.Commits),
		Chronotype:        Chronotype(m.Commits),
		TopLanguage:       TopLanguage(basic),
	}
}
