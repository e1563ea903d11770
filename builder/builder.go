// Package builder turns a stored snapshot into the typed records the analysis
// works on. It is the only place optional source fields get their defaults.
package builder

import (
	"strings"
	"time"
	"unicode/utf8"

	"githubinsight/models"
)

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Build flattens s into repository and commit records.
func Build(s *models.Snapshot) *models.DataModel {
	if s == nil {
		return &models.DataModel{}
	}

	m := &models.DataModel{
		Profile:  s.Profile,
		JoinedAt: ParseTime(s.Profile.CreatedAt),
		Repos:    make([]models.RepoRecord, 0, len(s.Repositories)),
	}

	for _, entry := range s.Repositories {
		meta, details := entry.Metadata, entry.Details

		language := models.UnknownLanguage
		if meta.Language != nil && *meta.Language != "" {
			language = *meta.Language
		}

		var description string
		if meta.Description != nil {
			description = *meta.Description
		}

		m.Repos = append(m.Repos, models.RepoRecord{
			Name:         meta.Name,
			Description:  description,
			Stars:        meta.Stars,
			Forks:        meta.Forks,
			Language:     language,
			Size:         meta.Size,
			ReadmeLength: utf8.RuneCountInString(details.Readme),
			ReadmeText:   details.Readme,
			Files:        details.Files,
			Topics:       meta.Topics,
			Languages:    details.Languages,
			CreatedAt:    ParseTime(meta.CreatedAt),
			UpdatedAt:    ParseTime(meta.UpdatedAt),
		})

		for _, c := range details.RecentCommits {
			date := ParseTime(c.Commit.Author.Date)
			if date.IsZero() {
				continue
			}
			m.Commits = append(m.Commits, models.CommitRecord{
				RepoName: meta.Name,
				Date:     date,
				Message:  c.Commit.Message,
				Author:   c.Commit.Author.Name,
			})
		}
	}

	return m
}

// ParseTime parses a source timestamp in UTC. Values without a zone are taken as
// UTC. An empty or unparsable value yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
