// Package models defines the snapshot document persisted after a fetch and the
// records derived from it for analysis.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Profile is the account object returned by users/{user}.
// Only the attributes the analysis reads are typed; Fields keeps the rest of the
// source object (and typed keys whose source value the attribute cannot reproduce,
// such as a null name) so a snapshot survives a write/read cycle unchanged.
type Profile struct {
	Login       string
	Name        string
	CreatedAt   string
	PublicRepos int
	Followers   int
	Following   int

	Fields map[string]json.RawMessage
}

type profileAttrs struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshalling profile: %w", err)
	}
	var attrs profileAttrs
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("unmarshalling profile attributes: %w", err)
	}

	typed := attrs.values()
	var fields map[string]json.RawMessage
	for k, v := range raw {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("compacting profile field %q: %w", k, err)
		}
		if b, ok := typed[k]; ok && bytes.Equal(b, buf.Bytes()) {
			continue
		}
		if fields == nil {
			fields = make(map[string]json.RawMessage)
		}
		fields[k] = buf.Bytes()
	}

	*p = Profile{
		Login:       attrs.Login,
		Name:        attrs.Name,
		CreatedAt:   attrs.CreatedAt,
		PublicRepos: attrs.PublicRepos,
		Followers:   attrs.Followers,
		Following:   attrs.Following,
		Fields:      fields,
	}
	return nil
}

// values returns the encoded non-zero attributes keyed by their JSON name.
func (a profileAttrs) values() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, 6)
	add := func(key string, v any, zero bool) {
		if zero {
			return
		}
		if b, err := json.Marshal(v); err == nil {
			out[key] = b
		}
	}
	add("login", a.Login, a.Login == "")
	add("name", a.Name, a.Name == "")
	add("created_at", a.CreatedAt, a.CreatedAt == "")
	add("public_repos", a.PublicRepos, a.PublicRepos == 0)
	add("followers", a.Followers, a.Followers == 0)
	add("following", a.Following, a.Following == 0)
	return out
}

// MarshalJSON implements json.Marshaler. Non-zero typed attributes override the
// source fields of the same name.
func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Fields)+6)
	for k, v := range p.Fields {
		out[k] = v
	}
	attrs := profileAttrs{
		Login:       p.Login,
		Name:        p.Name,
		CreatedAt:   p.CreatedAt,
		PublicRepos: p.PublicRepos,
		Followers:   p.Followers,
		Following:   p.Following,
	}
	for k, v := range attrs.values() {
		out[k] = v
	}
	return json.Marshal(out)
}

// RepositoryMetadata is one element of users/{user}/repos.
type RepositoryMetadata struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Fork        bool     `json:"fork"`
	Language    *string  `json:"language"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Size        int      `json:"size"`
	Topics      []string `json:"topics"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// CommitAuthor is the git author block of a commit payload.
// Date stays textual until the builder parses it.
type CommitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

// CommitPayload is the nested "commit" object of repos/{user}/{repo}/commits.
type CommitPayload struct {
	Message string       `json:"message"`
	Author  CommitAuthor `json:"author"`
}

// CommitEntry is one element of repos/{user}/{repo}/commits.
type CommitEntry struct {
	SHA     string        `json:"sha"`
	Commit  CommitPayload `json:"commit"`
	HTMLURL string        `json:"html_url"`
}

// RepositoryDetail holds the per-repository data fetched after the listing.
// Commits are newest first, as the API returns them.
type RepositoryDetail struct {
	Languages     map[string]int64 `json:"languages"`
	Readme        string           `json:"readme"`
	RecentCommits []CommitEntry    `json:"recent_commits"`
	Files         []string         `json:"files"`
}

// RepositoryEntry pairs a listed repository with its details.
type RepositoryEntry struct {
	Metadata RepositoryMetadata `json:"metadata"`
	Details  RepositoryDetail   `json:"details"`
}

// Snapshot is the document produced by one fetch run and persisted wholesale.
type Snapshot struct {
	Profile      Profile           `json:"profile"`
	Repositories []RepositoryEntry `json:"repositories"`
}

// Validate checks that repository names are unique within the snapshot.
func (s *Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Repositories))
	for i, r := range s.Repositories {
		if r.Metadata.Name == "" {
			return fmt.Errorf("repository at position %d has no name", i)
		}
		if _, ok := seen[r.Metadata.Name]; ok {
			return fmt.Errorf("duplicate repository name %q", r.Metadata.Name)
		}
		seen[r.Metadata.Name] = struct{}{}
	}
	return nil
}

// UnknownLanguage replaces a missing repository language.
const UnknownLanguage = "Unknown"

// RepoRecord is the flattened per-repository view used by the analysis.
// A zero CreatedAt or UpdatedAt means the source timestamp was missing or unparsable.
type RepoRecord struct {
	Name         string
	Description  string
	Stars        int
	Forks        int
	Language     string
	Size         int
	ReadmeLength int
	ReadmeText   string
	Files        []string
	Topics       []string
	Languages    map[string]int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CommitRecord is one commit flattened out of a repository's recent commits.
// Date is always in UTC.
type CommitRecord struct {
	RepoName string
	Date     time.Time
	Message  string
	Author   string
}

// DataModel is the typed view of a snapshot, rebuilt on every analysis session.
type DataModel struct {
	Profile  Profile
	JoinedAt time.Time
	Repos    []RepoRecord
	Commits  []CommitRecord
}
