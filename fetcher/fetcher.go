package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"githubinsight/github"
	"githubinsight/models"
)

// GitHubClientInterface defines the single-object GET the fetcher needs.
type GitHubClientInterface interface {
	GetInto(ctx context.Context, path string, query url.Values, v any) error
}

// PageCollector defines the paginated listing the fetcher needs.
type PageCollector interface {
	Collect(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error)
}

// ProgressFunc is called before each repository is fetched, with a zero-based index.
type ProgressFunc func(index, total int, name string)

// Options configures a Fetcher.
type Options struct {
	Username string
	// CommitWindow is the number of most recent commits requested per repository.
	CommitWindow int
	// RequestDelay is the minimum spacing between two repositories' detail fetches.
	RequestDelay time.Duration
}

// Fetcher assembles a complete snapshot of one user's public activity.
type Fetcher struct {
	client  GitHubClientInterface
	pages   PageCollector
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a Fetcher. pages is normally a *github.Paginator over client.
func New(client GitHubClientInterface, pages PageCollector, opts Options, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CommitWindow < 1 {
		opts.CommitWindow = 5
	}
	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}
	return &Fetcher{
		client:  client,
		pages:   pages,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// FetchAll fetches the profile, the repository list and the details of every
// repository. Profile and listing failures are fatal; an undecodable listing item
// is skipped and a failed detail call leaves only that field empty. Cancellation is checked between repositories.
func (f *Fetcher) FetchAll(ctx context.Context, progress ProgressFunc) (*models.Snapshot, error) {
	user := f.opts.Username
	if user == "" {
		return nil, fmt.Errorf("fetching snapshot: username is required")
	}
	log := f.log.With(zap.String("user", user), zap.String("run_id", uuid.NewString()))
	log.Info("Starting fetch run")

	var profile models.Profile
	if err := f.client.GetInto(ctx, "users/"+user, nil, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile for %s: %w", user, err)
	}

	repoPath := fmt.Sprintf("users/%s/repos", user)
	items, err := f.pages.Collect(ctx, repoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories for %s: %w", user, err)
	}

	repos := make([]models.RepositoryEntry, 0, len(items))
	for i, raw := range items {
		var meta models.RepositoryMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			log.Warn("Skipping undecodable repository listing item", zap.Int("index", i), zap.Error(err))
			continue
		}
		repos = append(repos, models.RepositoryEntry{Metadata: meta})
	}
	log.Info("Listed repositories", zap.Int("repo_count", len(repos)))

	for i := range repos {
		name := repos[i].Metadata.Name
		if err := ctx.Err(); err != nil {
			log.Warn("Fetch run cancelled", zap.Int("completed", i))
			return nil, fmt.Errorf("fetch cancelled before %s: %w", name, err)
		}
		f.report(progress, i, len(repos), name)

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch cancelled before %s: %w", name, err)
		}
		repos[i].Details = f.fetchDetails(ctx, log.With(zap.String("repo", name)), user, name)
	}

	snapshot := &models.Snapshot{Profile: profile, Repositories: repos}
	log.Info("Fetch run complete", zap.Int("repo_count", len(repos)))
	return snapshot, nil
}

func (f *Fetcher) fetchDetails(ctx context.Context, log *zap.Logger, user, name string) models.RepositoryDetail {
	base := fmt.Sprintf("repos/%s/%s", user, name)
	var d models.RepositoryDetail

	var languages map[string]int64
	if f.get(ctx, log, base+"/languages", nil, &languages) {
		d.Languages = languages
	}

	var readme struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if f.get(ctx, log, base+"/readme", nil, &readme) {
		text, err := decodeReadme(readme.Content)
		if err != nil {
			log.Warn("Failed to decode README", zap.Error(err))
		}
		d.Readme = text
	}

	var commits []models.CommitEntry
	query := url.Values{"per_page": {strconv.Itoa(f.opts.CommitWindow)}}
	if f.get(ctx, log, base+"/commits", query, &commits) {
		d.RecentCommits = commits
	}

	var contents []struct {
		Name string `json:"name"`
	}
	if f.get(ctx, log, base+"/contents", nil, &contents) {
		for _, c := range contents {
			d.Files = append(d.Files, c.Name)
		}
	}

	return d
}

// get performs one detail call and reports whether v was filled.
func (f *Fetcher) get(ctx context.Context, log *zap.Logger, path string, query url.Values, v any) bool {
	if err := f.client.GetInto(ctx, path, query, v); err != nil {
		log.Warn("Detail fetch failed, leaving field empty",
			zap.String("path", path),
			zap.Int("status_code", github.StatusCode(err)),
			zap.Error(err))
		return false
	}
	return true
}

func (f *Fetcher) report(progress ProgressFunc, index, total int, name string) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Progress callback panicked", zap.String("repo", name), zap.Any("panic", r))
		}
	}()
	progress(index, total, name)
}

// decodeReadme decodes the base64 payload of the readme endpoint, which arrives
// split across lines.
func decodeReadme(content string) (string, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(content)
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("readme is not valid UTF-8")
	}
	return string(raw), nil
}
