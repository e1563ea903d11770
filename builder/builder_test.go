package builder

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"githubinsight/models"
)

func snapshotFrom(t *testing.T, doc string) *models.Snapshot {
	t.Helper()
	var s models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(doc), &s))
	return &s
}

func TestBuild(t *testing.T) {
	s := snapshotFrom(t, `{
		"profile": {"login": "octocat", "created_at": "2011-01-25T18:44:36Z"},
		"repositories": [
			{"metadata": {"name": "alpha", "description": "A CLI", "language": "Go", "stargazers_count": 4, "forks_count": 2, "size": 90,
			              "topics": ["cli"], "created_at": "2020-01-01T00:00:00Z", "updated_at": "2024-02-01T08:00:00+02:00"},
			 "details": {"readme": "héllo", "files": ["go.mod"], "languages": {"Go": 10},
			             "recent_commits": [
			               {"sha": "b", "commit": {"message": "second", "author": {"name": "Octo", "date": "2024-01-03T23:30:00-05:00"}}},
			               {"sha": "a", "commit": {"message": "first", "author": {"name": "Octo", "date": "2024-01-02T10:00:00Z"}}}
			             ]}},
			{"metadata": {"name": "beta", "language": null, "created_at": "not a date"},
			 "details": {"recent_commits": [
			   {"sha": "c", "commit": {"message": "undated", "author": {"name": "Octo"}}},
			   {"sha": "d", "commit": {"message": "garbled", "author": {"name": "Octo", "date": "yesterday"}}}
			 ]}},
			{"metadata": {"name": "gamma", "language": ""}, "details": {}}
		]
	}`)

	m := Build(s)

	assert.Equal(t, "octocat", m.Profile.Login)
	assert.Equal(t, time.Date(2011, 1, 25, 18, 44, 36, 0, time.UTC), m.JoinedAt)
	require.Len(t, m.Repos, 3)

	alpha := m.Repos[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, "Go", alpha.Language)
	assert.Equal(t, "A CLI", alpha.Description)
	assert.Equal(t, 4, alpha.Stars)
	assert.Equal(t, 2, alpha.Forks)
	assert.Equal(t, 90, alpha.Size)
	assert.Equal(t, 5, alpha.ReadmeLength)
	assert.Equal(t, []string{"cli"}, alpha.Topics)
	assert.Equal(t, []string{"go.mod"}, alpha.Files)
	assert.Equal(t, time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC), alpha.UpdatedAt)

	beta := m.Repos[1]
	assert.Equal(t, models.UnknownLanguage, beta.Language)
	assert.Zero(t, beta.Stars)
	assert.Empty(t, beta.Description)
	assert.Zero(t, beta.ReadmeLength)
	assert.True(t, beta.CreatedAt.IsZero())
	assert.True(t, beta.UpdatedAt.IsZero())

	assert.Equal(t, models.UnknownLanguage, m.Repos[2].Language)

	require.Len(t, m.Commits, 2)
	assert.Equal(t, "second", m.Commits[0].Message)
	assert.Equal(t, "alpha", m.Commits[0].RepoName)
	assert.Equal(t, time.Date(2024, 1, 4, 4, 30, 0, 0, time.UTC), m.Commits[0].Date)
	assert.Equal(t, time.UTC, m.Commits[0].Date.Location())
	assert.Equal(t, "first", m.Commits[1].Message)
	assert.Equal(t, "Octo", m.Commits[1].Author)
}

func TestBuildNil(t *testing.T) {
	m := Build(nil)
	assert.Empty(t, m.Repos)
	assert.Empty(t, m.Commits)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02T10:00:00Z", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-01-02T10:00:00.123Z", time.Date(2024, 1, 2, 10, 0, 0, 123000000, time.UTC)},
		{"2024-01-02T10:00:00+01:00", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)},
		{"2024-01-02T10:00:00", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-01-02 10:00:00", time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{" 2024-01-02 ", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"02/01/2024", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTime(tt.in))
		})
	}
}
