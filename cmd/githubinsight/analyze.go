package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"githubinsight/service"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the stored snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := svc.Analyze(cmd.Context())
		if err != nil {
			return err
		}
		if analyzeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON")
}

func printReport(w io.Writer, r *service.Report) {
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "WARNING: %s\n", warning)
	}

	s := r.Summary
	fmt.Fprintf(w, "Profile: %s\n", r.Login)
	fmt.Fprintf(w, "Repositories: %d  Stars: %d  Commits tracked: %d\n",
		s.Basic.TotalRepos, s.Basic.TotalStars, s.Basic.TotalCommits)
	fmt.Fprintf(w, "Top language: %s  Longest streak: %d days\n", s.TopLanguage, s.LongestStreak)
	fmt.Fprintf(w, "Most productive day: %s  Most active month: %s  Chronotype: %s\n",
		s.MostProductiveDay, s.MostActiveMonth, s.Chronotype)

	fmt.Fprintln(w, "\nLanguages:")
	for _, lc := range s.Basic.Languages {
		fmt.Fprintf(w, "  %-20s %d\n", lc.Language, lc.Count)
	}

	fmt.Fprintln(w, "\nRepositories:")
	names := make([]string, 0, len(r.Health))
	for name := range r.Health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := r.Health[name]
		fmt.Fprintf(w, "  %-30s health %s (%d/4)  stack: %s\n", name, h.Grade, h.Score, strings.Join(r.Stack[name], ", "))
	}

	if len(r.Clusters) > 0 {
		fmt.Fprintln(w, "\nClusters:")
		for _, c := range r.Clusters {
			fmt.Fprintf(w, "  %-30s cluster %d  stars %d  forks %d\n", c.Name, c.Cluster, c.Stars, c.Forks)
		}
	}

	if r.Forecast != nil {
		last := r.Forecast.Points[len(r.Forecast.Points)-1]
		fmt.Fprintf(w, "\nForecast: %d days of history, %d days ahead; %s: %.2f commits/day (%.2f..%.2f)\n",
			r.Forecast.HistoryDays, r.Forecast.Horizon, last.Date.Format("2006-01-02"), last.Predicted, last.Lower, last.Upper)
	}

	if len(r.Timeline) > 0 {
		fmt.Fprintln(w, "\nTimeline:")
		for _, e := range r.Timeline {
			if e.Repo != "" {
				fmt.Fprintf(w, "  %s  %s (%s)\n", e.Date, e.Title, e.Repo)
			} else {
				fmt.Fprintf(w, "  %s  %s\n", e.Date, e.Title)
			}
		}
	}

	for feature, reason := range r.Unavailable {
		fmt.Fprintf(w, "\n%s unavailable: %s\n", feature, reason)
	}
}
