package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"githubinsight/builder"
	"githubinsight/cluster"
	"githubinsight/config"
	"githubinsight/db"
	"githubinsight/fetcher"
	"githubinsight/forecast"
	"githubinsight/github"
	"githubinsight/limiter"
	"githubinsight/logger"
	"githubinsight/models"
	"githubinsight/stats"
	"githubinsight/store"
)

// SnapshotFetcher abstracts the fetch pipeline (for testability)
type SnapshotFetcher interface {
	FetchAll(ctx context.Context, progress fetcher.ProgressFunc) (*models.Snapshot, error)
}

// RateLimitChecker abstracts the rate limit endpoint (for testability)
type RateLimitChecker interface {
	RateLimitStatus(ctx context.Context) (github.RateLimit, error)
}

// Service errors
var (
	ErrServiceInit          = errors.New("service initialization error")
	ErrSnapshotUserMismatch = errors.New("snapshot belongs to a different user")
)

// Service runs fetch and analysis sessions against the configured store.
type Service struct {
	config  *config.Config
	fetcher SnapshotFetcher
	store   store.Store
	limits  RateLimitChecker
	closers []io.Closer
	log     *zap.Logger
}

// NewService wires the production components described by cfg.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	log := logger.Named("service")

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	doer := limiter.NewHTTPDoer(httpClient, cfg.RequestsPerSecond)
	policy := github.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	if cfg.BaseBackoff > 0 {
		policy.BaseDelay = cfg.BaseBackoff
	}
	if cfg.MaxRateLimitWait > 0 {
		policy.MaxRateLimitWait = cfg.MaxRateLimitWait
	}
	client := github.NewClient(doer, cfg.APIBaseURL, cfg.GitHubToken, policy, logger.Named("github"))
	paginator := github.NewPaginator(client, cfg.PageSize, logger.Named("paginator"))
	f := fetcher.New(client, paginator, fetcher.Options{
		Username:     cfg.Username,
		CommitWindow: cfg.CommitWindow,
		RequestDelay: cfg.RequestDelay,
	}, logger.Named("fetcher"))

	s := &Service{
		config:  cfg,
		fetcher: f,
		limits:  client,
		log:     log,
	}

	switch cfg.StoreBackend {
	case config.BackendFile:
		s.store = store.NewFileStore(logger.Named("store"))
	case config.BackendBolt:
		bs, err := store.NewBoltStore(cfg.BoltPath, logger.Named("store"))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open bolt store: %v", ErrServiceInit, err)
		}
		s.store = bs
		s.closers = append(s.closers, bs)
	case config.BackendPostgres:
		conn, err := db.New(ctx, cfg.PostgresDSN, logger.Named("db"))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
		}
		archive := db.NewSnapshotArchive(conn)
		if err := archive.EnsureSchema(ctx); err != nil {
			archive.Close()
			return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
		}
		s.store = archive
		s.closers = append(s.closers, archive)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", ErrServiceInit, cfg.StoreBackend)
	}

	log.Info("Service initialized successfully",
		zap.String("user", cfg.Username),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("location", cfg.SnapshotLocation()))
	return s, nil
}

// New assembles a Service from existing components.
func New(cfg *config.Config, f SnapshotFetcher, st store.Store, limits RateLimitChecker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{config: cfg, fetcher: f, store: st, limits: limits, log: log}
}

// Fetch runs a full fetch and replaces the stored snapshot with the result.
// Nothing is written when the fetch fails.
func (s *Service) Fetch(ctx context.Context, progress fetcher.ProgressFunc) (*models.Snapshot, error) {
	if err := s.config.RequireUsername(); err != nil {
		return nil, err
	}
	snap, err := s.fetcher.FetchAll(ctx, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot for %s: %w", s.config.Username, err)
	}

	location := s.config.SnapshotLocation()
	if err := s.store.Write(ctx, location, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot at %s: %w", location, err)
	}
	s.log.Info("Snapshot stored",
		zap.String("user", s.config.Username),
		zap.String("location", location),
		zap.Int("repo_count", len(snap.Repositories)))
	return snap, nil
}

// Report is the outcome of one analysis session. Features whose preconditions
// were not met are absent and explained in Unavailable.
type Report struct {
	Login       string                        `json:"login"`
	Summary     stats.Summary                 `json:"summary"`
	Clusters    []cluster.Assignment          `json:"clusters,omitempty"`
	Forecast    *forecast.Result              `json:"forecast,omitempty"`
	Health      map[string]stats.HealthReport `json:"health"`
	Stack       map[string][]string           `json:"stack"`
	Timeline    []stats.Event                 `json:"timeline"`
	Unavailable map[string]string             `json:"unavailable,omitempty"`
	Warnings    []string                      `json:"warnings,omitempty"`
}

// Load reads the stored snapshot and builds its data model.
func (s *Service) Load(ctx context.Context) (*models.DataModel, []string, error) {
	location := s.config.SnapshotLocation()
	snap, err := s.store.Read(ctx, location)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot at %s: %w", location, err)
	}

	var warnings []string
	if s.config.Username != "" && !strings.EqualFold(snap.Profile.Login, s.config.Username) {
		err := fmt.Errorf("%w: stored %q, configured %q", ErrSnapshotUserMismatch, snap.Profile.Login, s.config.Username)
		s.log.Warn("Snapshot user mismatch, fetch again to refresh", zap.Error(err))
		warnings = append(warnings, err.Error())
	}
	return builder.Build(snap), warnings, nil
}

// Analyze reads the stored snapshot and computes every statistic.
func (s *Service) Analyze(ctx context.Context) (*Report, error) {
	m, warnings, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Login:       m.Profile.Login,
		Summary:     stats.Summarize(m),
		Health:      make(map[string]stats.HealthReport, len(m.Repos)),
		Stack:       make(map[string][]string, len(m.Repos)),
		Timeline:    stats.Timeline(m),
		Unavailable: make(map[string]string),
		Warnings:    warnings,
	}
	for _, r := range m.Repos {
		report.Health[r.Name] = stats.Health(r.Files)
		report.Stack[r.Name] = stats.TechStack(r.Files)
	}

	clusters, err := cluster.KMeans(m.Repos, s.config.ClusterCount, s.config.ClusterSeed)
	switch {
	case errors.Is(err, cluster.ErrNoData):
		report.Unavailable["clusters"] = err.Error()
	case err != nil:
		return nil, fmt.Errorf("failed to cluster repositories: %w", err)
	default:
		report.Clusters = clusters
	}

	fc, err := forecast.Forecast(m.Commits, forecast.Options{Horizon: s.config.ForecastHorizon})
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		report.Unavailable["forecast"] = err.Error()
	case err != nil:
		s.log.Warn("Forecast failed", zap.Error(err))
		report.Unavailable["forecast"] = err.Error()
	default:
		report.Forecast = fc
	}

	s.log.Info("Analysis complete",
		zap.String("user", report.Login),
		zap.Int("repo_count", len(m.Repos)),
		zap.Int("commit_count", len(m.Commits)),
		zap.Int("unavailable", len(report.Unavailable)))
	return report, nil
}

// RateLimit reports the remaining API quota for the configured credential.
func (s *Service) RateLimit(ctx context.Context) (github.RateLimit, error) {
	if s.limits == nil {
		return github.RateLimit{}, fmt.Errorf("rate limit check is not configured")
	}
	return s.limits.RateLimitStatus(ctx)
}

// Close releases the store.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
