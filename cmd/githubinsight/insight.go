package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"githubinsight/insight"
	"githubinsight/logger"
	"githubinsight/stats"
)

var compareModels []string

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Ask a language model about the stored snapshot",
	Long: `insight sends parts of the stored snapshot to an OpenAI-compatible chat endpoint
(LLM_BASE_URL, a local Ollama server by default) for a user title, commit sentiment,
skill extraction, topic classification and a README review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		m, warnings, err := svc.Load(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, warning := range warnings {
			logger.Warn("Snapshot check", zap.String("warning", warning))
			fmt.Fprintf(out, "WARNING: %s\n", warning)
		}

		completer := insight.NewOpenAICompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger.Named("insight"))
		analyzer := insight.NewAnalyzer(completer, logger.Named("insight"))

		fmt.Fprintf(out, "Title: %s\n", analyzer.UserTitle(ctx, stats.Summarize(m)))

		if len(m.Commits) > 0 {
			c := m.Commits[0]
			sentiment, err := analyzer.Sentiment(ctx, c.Message)
			if err != nil {
				fmt.Fprintf(out, "Sentiment: unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "Sentiment of %q: %s\n", firstLine(c.Message), sentiment)
			}
		}

		if len(m.Repos) > 0 {
			top := m.Repos[0]
			for _, r := range m.Repos[1:] {
				if r.Stars > top.Stars {
					top = r
				}
			}
			fmt.Fprintf(out, "Topic of %s: %s\n", top.Name, analyzer.ClassifyTopic(ctx, top.Description))
			if top.ReadmeText != "" {
				if skills, err := analyzer.ExtractSkills(ctx, top.ReadmeText); err == nil {
					fmt.Fprintf(out, "Skills in %s: %s\n", top.Name, strings.Join(skills, ", "))
				} else {
					fmt.Fprintf(out, "Skills: unavailable (%v)\n", err)
				}
				if review, err := analyzer.ReadmeReview(ctx, top.ReadmeText); err == nil {
					fmt.Fprintf(out, "README review for %s:\n%s\n", top.Name, review)
				}
			}
		}

		if len(compareModels) > 0 {
			prompt := "Summarize the coding style based on these commits:\n"
			for _, c := range m.Commits {
				prompt += "- " + firstLine(c.Message) + "\n"
			}
			for _, r := range insight.CompareModels(ctx, completer, prompt, compareModels) {
				if r.Err != "" {
					fmt.Fprintf(out, "\n[%s] error: %s\n", r.Model, r.Err)
					continue
				}
				fmt.Fprintf(out, "\n[%s] %s\n%s\n", r.Model, r.Latency.Round(time.Millisecond), r.Response)
			}
		}
		return nil
	},
}

func init() {
	insightCmd.Flags().StringSliceVar(&compareModels, "compare", nil, "models to compare on a commit style prompt, e.g. llama3.1,mistral")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
