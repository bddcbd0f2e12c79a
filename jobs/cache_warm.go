package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/brightwave/portal-api/internal/auth"
	"github.com/brightwave/portal-api/internal/cache"
	jobmetrics "github.com/brightwave/portal-api/internal/jobs"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
)

// CacheWarmJob re-primes the projects and invoices caches for every active
// portal user so dashboard reads hit warm entries.
type CacheWarmJob struct {
	Users   auth.Repository
	Tenants *tenant.Resolver
	Cache   *cache.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheWarmJob wires dependencies for the warm-up handler.
func NewCacheWarmJob(users auth.Repository, tenants *tenant.Resolver, cacheSvc *cache.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmJob {
	return &CacheWarmJob{Users: users, Tenants: tenants, Cache: cacheSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCacheWarm tasks.
func (j *CacheWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache warm: handler not configured")
	}
	var payload CacheWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskCacheWarm)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	logger.Info("starting cache warmup")

	users, err := j.Users.ListActive(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list active users", slog.Any("error", err))
		return resultErr
	}

	warmed := 0
	for _, user := range users {
		if err := j.warmUser(ctx, user, payload.Resources); err != nil {
			// One account failing must not starve the rest; a user without
			// a CRM contact is expected and skipped silently.
			if !errors.Is(err, shared.ErrNotFound) {
				logger.Warn("warm account", slog.String("email", user.Email), slog.Any("error", err))
			}
			continue
		}
		warmed++
	}

	logger.Info("completed cache warmup", slog.Int("accounts", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CacheWarmJob) warmUser(ctx context.Context, user auth.User, resources []string) error {
	account, _, err := j.Tenants.AccountForEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	for _, resource := range resolveResources(resources) {
		switch resource {
		case cache.ResourceProjects:
			if _, _, err := j.Cache.GetProjects(ctx, account.ID); err != nil {
				return err
			}
		case cache.ResourceInvoices:
			if _, _, err := j.Cache.GetInvoices(ctx, account.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolveResources(resources []string) []string {
	if len(resources) == 0 {
		return []string{cache.ResourceProjects, cache.ResourceInvoices}
	}
	return resources
}

func (j *CacheWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
