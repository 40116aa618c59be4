package service

import (
	"context"
	"time"

	"github.com/mpas/sequencer/cmd/sequencer/scheduling"
	"github.com/mpas/sequencer/common/cache"
	"github.com/mpas/sequencer/common/logger"
	"github.com/mpas/sequencer/common/metrics"
)

const (
	anchorKeyPrefix = "anchor:"
	anchorNone      = "none"
)

// AnchorService looks up the last committed scheduled time per plant.
// Found and not-found results are cached briefly; failures never are.
type AnchorService struct {
	store   OrderStore
	cache   cache.Cache // nil disables caching
	ttl     time.Duration
	metrics *metrics.Recorder
	log     *logger.Logger
}

// NewAnchorService creates a new anchor service
func NewAnchorService(store OrderStore, c cache.Cache, ttl time.Duration, m *metrics.Recorder, log *logger.Logger) *AnchorService {
	if ttl <= 0 {
		c = nil
	}
	return &AnchorService{
		store:   store,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		log:     log,
	}
}

// Lookup returns the anchor for plant as a tagged result
func (s *AnchorService) Lookup(ctx context.Context, plant string) scheduling.Anchor {
	if anchor, ok := s.cached(ctx, plant); ok {
		s.metrics.RecordAnchorLookup(metrics.AnchorCacheHit)
		return anchor
	}

	anchor := scheduling.AnchorFromLookup(s.store.LastScheduledTime(ctx, plant))
	s.metrics.RecordAnchorLookup(anchor.Kind().String())

	switch anchor.Kind() {
	case scheduling.AnchorLookupFailed:
		s.log.WithPlant(plant).Warn("anchor lookup failed", "error", anchor.Err())
	default:
		s.remember(ctx, plant, anchor)
	}

	return anchor
}

// Invalidate drops the cached anchor for plant
func (s *AnchorService) Invalidate(ctx context.Context, plant string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, anchorKeyPrefix+plant); err != nil {
		s.log.WithPlant(plant).Warn("failed to invalidate anchor cache", "error", err)
	}
}

func (s *AnchorService) cached(ctx context.Context, plant string) (scheduling.Anchor, bool) {
	if s.cache == nil {
		return scheduling.Anchor{}, false
	}

	raw, ok, err := s.cache.Get(ctx, anchorKeyPrefix+plant)
	if err != nil || !ok {
		return scheduling.Anchor{}, false
	}

	if string(raw) == anchorNone {
		return scheduling.NoAnchor(), true
	}

	at, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return scheduling.Anchor{}, false
	}
	return scheduling.FoundAnchor(at), true
}

func (s *AnchorService) remember(ctx context.Context, plant string, anchor scheduling.Anchor) {
	if s.cache == nil {
		return
	}

	value := anchorNone
	if at, ok := anchor.Time(); ok {
		value = at.Format(time.RFC3339Nano)
	}

	if err := s.cache.Set(ctx, anchorKeyPrefix+plant, []byte(value), s.ttl); err != nil {
		s.log.WithPlant(plant).Warn("failed to cache anchor", "error", err)
	}
}
