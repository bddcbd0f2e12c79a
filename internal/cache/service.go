package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/brightwave/portal-api/internal/observability"
	"github.com/brightwave/portal-api/internal/upstream"
)

// Resource types cached by the service.
const (
	ResourceProjects = "projects"
	ResourceInvoices = "invoices"
	ResourceFiles    = "files"
)

const fetchTimeout = 15 * time.Second

// Key composes the cache key for a resource type and tenant.
func Key(resource, accountID string) string {
	return resource + ":" + accountID
}

// Upstream is the slice of the CRM client the cache service reads through to.
type Upstream interface {
	GetProjects(ctx context.Context, accountID string) ([]upstream.Project, error)
	GetInvoices(ctx context.Context, accountID string) ([]upstream.Invoice, error)
	GetAllCustomerFiles(ctx context.Context, folderID string) ([]upstream.FileRef, error)
}

// TTLConfig holds per-resource cache lifetimes.
type TTLConfig struct {
	Projects time.Duration
	Invoices time.Duration
	Files    time.Duration
}

// DefaultTTLConfig returns the standard cache lifetimes.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Projects: 5 * time.Minute,
		Invoices: 10 * time.Minute,
		Files:    5 * time.Minute,
	}
}

// Service orchestrates cache-aside reads for tenant-scoped resources.
// Concurrent misses for one key are collapsed into a single upstream fetch
// via singleflight, so upstream call volume is one per key per miss window.
type Service struct {
	store   Store
	crm     Upstream
	logger  *slog.Logger
	metrics *observability.Metrics
	ttl     TTLConfig
	group   singleflight.Group
}

// NewService constructs a Service.
func NewService(store Store, crm Upstream, logger *slog.Logger, metrics *observability.Metrics, ttl TTLConfig) *Service {
	if ttl.Projects <= 0 {
		ttl.Projects = DefaultTTLConfig().Projects
	}
	if ttl.Invoices <= 0 {
		ttl.Invoices = DefaultTTLConfig().Invoices
	}
	if ttl.Files <= 0 {
		ttl.Files = DefaultTTLConfig().Files
	}
	return &Service{store: store, crm: crm, logger: logger, metrics: metrics, ttl: ttl}
}

// GetProjects returns the account's projects and whether they came from cache.
func (s *Service) GetProjects(ctx context.Context, accountID string) ([]upstream.Project, bool, error) {
	return readThrough(ctx, s, ResourceProjects, Key(ResourceProjects, accountID), s.ttl.Projects,
		func(ctx context.Context) ([]upstream.Project, error) {
			return s.crm.GetProjects(ctx, accountID)
		})
}

// GetInvoices returns the account's invoices and whether they came from cache.
func (s *Service) GetInvoices(ctx context.Context, accountID string) ([]upstream.Invoice, bool, error) {
	return readThrough(ctx, s, ResourceInvoices, Key(ResourceInvoices, accountID), s.ttl.Invoices,
		func(ctx context.Context) ([]upstream.Invoice, error) {
			return s.crm.GetInvoices(ctx, accountID)
		})
}

// GetCustomerFiles returns the documents in the account's folder and whether
// they came from cache. Entries are subkeyed by folder so project folders
// cache independently.
func (s *Service) GetCustomerFiles(ctx context.Context, accountID, folderID string) ([]upstream.FileRef, bool, error) {
	key := Key(ResourceFiles, accountID) + ":" + folderID
	return readThrough(ctx, s, ResourceFiles, key, s.ttl.Files,
		func(ctx context.Context) ([]upstream.FileRef, error) {
			return s.crm.GetAllCustomerFiles(ctx, folderID)
		})
}

// Invalidate drops every cached entry for the tenant and resource type.
// Called immediately after any write that would make a cached read stale.
// Invalidating an absent key is a no-op.
func (s *Service) Invalidate(ctx context.Context, accountID, resource string) {
	key := Key(resource, accountID)
	s.store.Invalidate(ctx, key)
	s.store.InvalidatePrefix(ctx, key+":")
	s.metrics.CacheInvalidation(resource)
}

func readThrough[T any](ctx context.Context, s *Service, resource, key string, ttl time.Duration, load func(context.Context) ([]T, error)) ([]T, bool, error) {
	if payload, ok := s.store.Get(ctx, key); ok {
		var out []T
		if err := json.Unmarshal(payload, &out); err == nil {
			s.metrics.CacheHit(resource)
			return out, true, nil
		}
		// Undecodable entry: drop it and fall through to upstream.
		if s.logger != nil {
			s.logger.Warn("cache entry corrupt", slog.String("key", key))
		}
		s.store.Invalidate(ctx, key)
	}
	s.metrics.CacheMiss(resource)

	v, err, _ := s.group.Do(key, func() (any, error) {
		// The fetch serves every collapsed waiter and populates the store,
		// so it runs detached from the first caller's request context: a
		// client disconnect mid-fetch must not fail the others or abandon
		// the write.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		data, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("cache: encode %s: %w", key, err)
		}
		s.store.Set(loadCtx, key, payload, ttl)
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	out, ok := v.([]T)
	if !ok {
		return nil, false, fmt.Errorf("cache: unexpected payload type for %s", key)
	}
	return out, false, nil
}
