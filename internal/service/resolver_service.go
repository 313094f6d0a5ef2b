package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

type roomMediaIndex interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
	MediaKeysInRoom(ctx context.Context, roomID string) ([]models.MediaKey, error)
}

// RoomMediaCache is the cache backing room media resolution.
type RoomMediaCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResolverService resolves "all media in a room" into concrete media keys
// using the room media index, splitting local from cached-remote by origin.
// Resolution results are cached; the quarantine path invalidates them.
type ResolverService struct {
	index      roomMediaIndex
	cache      RoomMediaCache
	metrics    *MetricsService
	logger     *zap.Logger
	serverName string
	cacheTTL   time.Duration
}

// NewResolverService constructs the resolver. cache may be nil to disable
// caching entirely.
func NewResolverService(index roomMediaIndex, cache RoomMediaCache, metrics *MetricsService, logger *zap.Logger, serverName string, cacheTTL time.Duration) *ResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ResolverService{
		index:      index,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		serverName: serverName,
		cacheTTL:   cacheTTL,
	}
}

// Resolve returns the deduplicated media referenced in the room's events.
func (s *ResolverService) Resolve(ctx context.Context, roomID string) (*models.RoomMedia, error) {
	if cached := s.cacheGet(ctx, roomID); cached != nil {
		return cached, nil
	}

	exists, err := s.index.RoomExists(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "room lookup failed")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "room not known to this server")
	}

	keys, err := s.index.MediaKeysInRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "room media lookup failed")
	}

	media := &models.RoomMedia{Local: []string{}, Remote: []models.MediaKey{}}
	seen := make(map[models.MediaKey]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if key.Origin == s.serverName {
			media.Local = append(media.Local, key.MediaID)
		} else {
			media.Remote = append(media.Remote, key)
		}
	}

	s.cacheSet(ctx, roomID, media)
	return media, nil
}

// Invalidate drops the cached resolution for a room.
func (s *ResolverService) Invalidate(ctx context.Context, roomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKeyForRoom(roomID)); err != nil {
		s.logger.Warn("room media cache invalidation failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *ResolverService) cacheGet(ctx context.Context, roomID string) *models.RoomMedia {
	if s.cache == nil {
		return nil
	}
	var media models.RoomMedia
	err := s.cache.Get(ctx, cacheKeyForRoom(roomID), &media)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("room media cache get failed", zap.String("room_id", roomID), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return nil
	}
	s.metrics.RecordCacheLookup(true)
	return &media
}

func (s *ResolverService) cacheSet(ctx context.Context, roomID string, media *models.RoomMedia) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyForRoom(roomID), media, s.cacheTTL); err != nil {
		s.logger.Warn("room media cache set failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

func cacheKeyForRoom(roomID string) string {
	return "roommedia:" + roomID
}
