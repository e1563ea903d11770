package stats

import (
	"sort"

	"githubinsight/models"
)

const dateLayout = "2006-01-02"

// Event is one dated milestone of a profile.
type Event struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Repo  string `json:"repo,omitempty"`
}

// Timeline lists the milestones of a profile in ascending date order.
//
// The most-starred event is dated at that repository's creation, not at the
// moment it became popular.
func Timeline(m *models.DataModel) []Event {
	var events []Event
	if !m.JoinedAt.IsZero() {
		events = append(events, Event{Date: m.JoinedAt.Format(dateLayout), Title: "Joined"})
	}

	if len(m.Repos) > 0 {
		first := -1
		starred := 0
		for i, r := range m.Repos {
			if !r.CreatedAt.IsZero() && (first < 0 || r.CreatedAt.Before(m.Repos[first].CreatedAt)) {
				first = i
			}
			if r.Stars > m.Repos[starred].Stars {
				starred = i
			}
		}

		if first >= 0 {
			r := m.Repos[first]
			events = append(events, Event{Date: r.CreatedAt.Format(dateLayout), Title: "First repository created", Repo: r.Name})
		}
		if r := m.Repos[starred]; r.Stars > 0 && !r.CreatedAt.IsZero() {
			events = append(events, Event{Date: r.CreatedAt.Format(dateLayout), Title: "Created most-starred repository", Repo: r.Name})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	return events
}
