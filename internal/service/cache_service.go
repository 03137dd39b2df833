package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/DPLnainar/placement-management-system-sub002/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
}

// EligibilitySummaryKey is the cache key of a job's bulk eligibility counts.
func EligibilitySummaryKey(collegeID, jobID string) string {
	return fmt.Sprintf("elig:summary:%s:%s", collegeID, jobID)
}

// CacheService fronts the cache repository. Cache faults never fail a request:
// reads degrade to a miss and writes are logged.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports whether it was a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. ttl <= 0 uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping reports whether the backing store answers.
func (s *CacheService) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return errors.New("cache disabled")
	}
	return s.repo.Ping(ctx)
}

// InvalidateJob drops every cached eligibility view of a job.
func (s *CacheService) InvalidateJob(ctx context.Context, collegeID, jobID string) {
	s.invalidate(ctx, EligibilitySummaryKey(collegeID, jobID))
}

// InvalidateCollege drops the eligibility views of every job in a college.
func (s *CacheService) InvalidateCollege(ctx context.Context, collegeID string) {
	s.invalidate(ctx, EligibilitySummaryKey(collegeID, "*"))
}

func (s *CacheService) invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
