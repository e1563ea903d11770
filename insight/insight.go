// Package insight derives narrative summaries of a profile from a text
// completion model.
package insight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"githubinsight/stats"
)

// Sentiment labels.
const (
	Positive = "Positive"
	Neutral  = "Neutral"
	Negative = "Negative"
)

// Topics a repository description is classified into.
var Topics = []string{"Web Development", "Data Science", "Machine Learning", "Mobile App", "DevOps", "Other"}

// FallbackTitle is used when no title could be generated.
const FallbackTitle = "The GitHub Wanderer"

// readmeContext bounds how much README text goes into a prompt.
const readmeContext = 2000

// Analyzer builds prompts for profile data and interprets the answers.
type Analyzer struct {
	completer Completer
	log       *zap.Logger
}

// NewAnalyzer creates an Analyzer over completer.
func NewAnalyzer(completer Completer, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{completer: completer, log: log}
}

// Sentiment classifies a commit message. Answers that name no known label count
// as Neutral.
func (a *Analyzer) Sentiment(ctx context.Context, message string) (string, error) {
	prompt := "Analyze the sentiment of the following commit message. " +
		"Return only 'Positive', 'Neutral', or 'Negative'.\n\nCommit Message: " + message
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("analyzing sentiment: %w", err)
	}
	if label := matchLabel(answer, []string{Positive, Negative, Neutral}); label != "" {
		return label, nil
	}
	a.log.Debug("Unrecognized sentiment answer", zap.String("answer", answer))
	return Neutral, nil
}

// ExtractSkills lists the technologies a README mentions.
func (a *Analyzer) ExtractSkills(ctx context.Context, readme string) ([]string, error) {
	prompt := "Extract a list of technical skills, languages, and frameworks mentioned in the following README content. " +
		"Return them as a comma-separated list.\n\nREADME:\n" + truncate(readme, readmeContext)
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extracting skills: %w", err)
	}

	seen := make(map[string]struct{})
	skills := []string{}
	for _, part := range strings.Split(answer, ",") {
		skill := strings.Trim(strings.TrimSpace(part), ".*-")
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, skill)
	}
	return skills, nil
}

// ClassifyTopic maps a repository description onto one of Topics. Failures and
// unrecognized answers yield "Other".
func (a *Analyzer) ClassifyTopic(ctx context.Context, description string) string {
	prompt := fmt.Sprintf("Classify the following repository description into one of these topics: %s. "+
		"Return only the topic name.\n\nDescription: %s", quoteList(Topics), description)
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("Topic classification failed", zap.Error(err))
		return "Other"
	}
	if topic := matchLabel(answer, Topics); topic != "" {
		return topic
	}
	return "Other"
}

// UserTitle asks for a short RPG-style title for the profile. Failures yield
// FallbackTitle.
func (a *Analyzer) UserTitle(ctx context.Context, s stats.Summary) string {
	prompt := fmt.Sprintf("Based on the following GitHub stats, generate a creative, fun, RPG-style user title (max 5 words).\n"+
		"Return ONLY the title.\nStats:\n"+
		"- Top Language: %s\n- Longest Streak: %d days\n- Most Productive Day: %s\n- Chronotype: %s\n",
		s.TopLanguage, s.LongestStreak, s.MostProductiveDay, s.Chronotype)
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("Title generation failed", zap.Error(err))
		return FallbackTitle
	}
	title := strings.TrimSpace(strings.ReplaceAll(answer, `"`, ""))
	if title == "" {
		return FallbackTitle
	}
	return title
}

// ReadmeReview returns a short checklist of README improvements.
func (a *Analyzer) ReadmeReview(ctx context.Context, readme string) (string, error) {
	prompt := "Analyze the quality of this README file.\n" +
		"Provide a checklist of 3-5 improvements. Focus on missing standard sections (Installation, Usage, Contributing, License).\n" +
		"Keep it concise and actionable.\nREADME Content (first 2000 chars):\n" + truncate(readme, readmeContext)
	answer, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("reviewing readme: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// ModelResult is one model's answer in a comparison.
type ModelResult struct {
	Model    string        `json:"model"`
	Response string        `json:"response,omitempty"`
	Latency  time.Duration `json:"latency"`
	Err      string        `json:"error,omitempty"`
}

// CompareModels runs prompt against each model in turn, recording latency. A
// failing model does not stop the comparison.
func CompareModels(ctx context.Context, mc ModelCompleter, prompt string, models []string) []ModelResult {
	results := make([]ModelResult, 0, len(models))
	for _, model := range models {
		start := time.Now()
		answer, err := mc.CompleteWith(ctx, model, prompt)
		r := ModelResult{Model: model, Latency: time.Since(start)}
		if err != nil {
			r.Err = err.Error()
		} else {
			r.Response = answer
		}
		results = append(results, r)
	}
	return results
}

// matchLabel maps a model answer onto one of labels, ignoring case. An answer
// that is exactly a label wins; otherwise the answer must mention exactly one
// label, and mentions of several are treated as no match.
func matchLabel(answer string, labels []string) string {
	trimmed := strings.Trim(strings.TrimSpace(answer), ".!\"'*` ")
	for _, l := range labels {
		if strings.EqualFold(trimmed, l) {
			return l
		}
	}

	lower := strings.ToLower(answer)
	found := ""
	for _, l := range labels {
		if !strings.Contains(lower, strings.ToLower(l)) {
			continue
		}
		if found != "" {
			return ""
		}
		found = l
	}
	return found
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return strings.Join(quoted, ", ")
}
