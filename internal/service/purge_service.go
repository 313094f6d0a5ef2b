package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

// minEpochMillis is Dec 1970 in milliseconds and Aug 2920 in seconds.
// Timestamps below it are a seconds-for-milliseconds unit mismatch, not a
// legitimately empty date range.
const minEpochMillis = 30000000000

type purgeStore interface {
	ServerName() string
	GetLocal(ctx context.Context, mediaID string) (*models.MediaRecord, error)
	DeleteLocal(ctx context.Context, mediaID string) (bool, error)
	DeleteRemote(ctx context.Context, origin, mediaID string) (bool, error)
	SelectOldRemoteCache(ctx context.Context, beforeTS int64) ([]models.MediaKey, error)
	SelectOldLocal(ctx context.Context, beforeTS, sizeGt int64, keepProfiles bool) ([]string, error)
}

type byteStore interface {
	DeleteLocal(mediaID string) error
	DeleteRemoteCache(origin, mediaID string) error
	LocalPath(mediaID string) string
	RemotePath(origin, mediaID string) string
	SizeOnDisk(path string) int64
}

// PurgeConfig tunes purge batch execution.
type PurgeConfig struct {
	Concurrency   int
	BatchDeadline time.Duration
}

// retentionParams is validated before any candidate selection runs.
type retentionParams struct {
	BeforeTS int64 `validate:"gte=0"`
	SizeGt   int64 `validate:"gte=0"`
}

// PurgeService selects media by age, size and safety criteria and deletes
// it: the metadata record and the backing bytes together. Per item the
// outcome is "both done" or "neither done": bytes are removed first (byte
// deletion is idempotent) and the record is only removed once the bytes are
// gone, so a failed item keeps its record and is picked up again by the
// next purge with the same parameters.
type PurgeService struct {
	store    purgeStore
	bytes    byteStore
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
	validate *validator.Validate

	concurrency   int
	batchDeadline time.Duration
}

// NewPurgeService constructs the service.
func NewPurgeService(store purgeStore, bytes byteStore, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg PurgeConfig) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchDeadline <= 0 {
		cfg.BatchDeadline = 10 * time.Minute
	}
	return &PurgeService{
		store:         store,
		bytes:         bytes,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
		validate:      validator.New(),
		concurrency:   cfg.Concurrency,
		batchDeadline: cfg.BatchDeadline,
	}
}

// PurgeRemoteCache deletes cached remote media not accessed since beforeTS.
// Local originals are never touched by this mode: remote caches can always
// be re-fetched from their origin.
func (s *PurgeService) PurgeRemoteCache(ctx context.Context, beforeTS int64, actor string) (*models.PurgeResult, error) {
	if err := s.checkParams(retentionParams{BeforeTS: beforeTS}); err != nil {
		return nil, err
	}

	candidates, err := s.store.SelectOldRemoteCache(ctx, beforeTS)
	if err != nil {
		return nil, storeError(err, "select remote cache candidates")
	}

	result := s.runBatch(ctx, "remote", candidates)
	s.recordAudit(ctx, actor, models.AuditPurgeRemote,
		fmt.Sprintf("before_ts=%d", beforeTS),
		fmt.Sprintf("deleted=%d total=%d", len(result.DeletedMedia), result.Total))
	return result, nil
}

// DeleteOldLocalMedia deletes local media created before beforeTS and larger
// than sizeGt. With keepProfiles set, media referenced as a profile picture
// is excluded from the candidates regardless of age and size.
func (s *PurgeService) DeleteOldLocalMedia(ctx context.Context, beforeTS, sizeGt int64, keepProfiles bool, actor string) (*models.PurgeResult, error) {
	if err := s.checkParams(retentionParams{BeforeTS: beforeTS, SizeGt: sizeGt}); err != nil {
		return nil, err
	}

	ids, err := s.store.SelectOldLocal(ctx, beforeTS, sizeGt, keepProfiles)
	if err != nil {
		return nil, storeError(err, "select old local media")
	}

	result := s.runBatch(ctx, "local", s.localKeys(ids))
	s.recordAudit(ctx, actor, models.AuditDeleteOldLocal,
		fmt.Sprintf("before_ts=%d size_gt=%d keep_profiles=%t", beforeTS, sizeGt, keepProfiles),
		fmt.Sprintf("deleted=%d total=%d", len(result.DeletedMedia), result.Total))
	return result, nil
}

// DeleteByID deletes one local media item. Media owned by another origin is
// rejected: only this server's media may be deleted through this path.
func (s *PurgeService) DeleteByID(ctx context.Context, serverName, mediaID, actor string) (*models.PurgeResult, error) {
	if serverName != s.store.ServerName() {
		return nil, appErrors.Clone(appErrors.ErrInvalidParam, "can only delete local media")
	}
	if _, err := s.store.GetLocal(ctx, mediaID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown media")
		}
		return nil, storeError(err, "media lookup")
	}

	result := s.runBatch(ctx, "local", s.localKeys([]string{mediaID}))
	s.recordAudit(ctx, actor, models.AuditDeleteMedia, mediaID, "")
	return result, nil
}

// DeleteLocalMediaIDs deletes the given local media items. Used by the
// user-media DELETE path after pagination has produced the target page.
func (s *PurgeService) DeleteLocalMediaIDs(ctx context.Context, mediaIDs []string, actor string) (*models.PurgeResult, error) {
	result := s.runBatch(ctx, "local", s.localKeys(mediaIDs))
	s.recordAudit(ctx, actor, models.AuditDeleteMedia,
		fmt.Sprintf("batch=%d", len(mediaIDs)),
		fmt.Sprintf("deleted=%d", len(result.DeletedMedia)))
	return result, nil
}

func (s *PurgeService) checkParams(p retentionParams) error {
	if err := s.validate.Struct(p); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidParam, "query parameters before_ts and size_gt must be positive integers")
	}
	if p.BeforeTS < minEpochMillis {
		return appErrors.Clone(appErrors.ErrInvalidParam,
			"query parameter before_ts is from the year 1970; double check that you are providing a timestamp in milliseconds")
	}
	return nil
}

func (s *PurgeService) localKeys(mediaIDs []string) []models.MediaKey {
	keys := make([]models.MediaKey, len(mediaIDs))
	for i, id := range mediaIDs {
		keys[i] = models.MediaKey{Origin: s.store.ServerName(), MediaID: id}
	}
	return keys
}

// runBatch deletes the candidate set with bounded parallelism and an
// overall deadline. Items on distinct keys are independent, so no ordering
// among them is guaranteed; the returned deleted_media list preserves
// candidate order with failed items omitted. Deadline expiry returns the
// partial tally: the purge is resumable because completed items no longer
// match the next selection.
func (s *PurgeService) runBatch(ctx context.Context, kind string, candidates []models.MediaKey) *models.PurgeResult {
	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, s.batchDeadline)
	defer cancel()

	deleted := make([]bool, len(candidates))
	reclaimed := make([]int64, len(candidates))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

dispatch:
	for i := range candidates {
		select {
		case sem <- struct{}{}:
		case <-batchCtx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			deleted[i], reclaimed[i] = s.deleteOne(batchCtx, candidates[i])
		}(i)
	}
	wg.Wait()

	result := &models.PurgeResult{DeletedMedia: []string{}, Total: len(candidates)}
	var reclaimedTotal int64
	failures := 0
	for i := range candidates {
		if deleted[i] {
			result.DeletedMedia = append(result.DeletedMedia, candidates[i].MediaID)
			reclaimedTotal += reclaimed[i]
		} else {
			failures++
		}
	}

	s.metrics.RecordPurged(kind, len(result.DeletedMedia))
	s.metrics.RecordPurgeFailures(kind, failures)
	s.metrics.RecordReclaimedBytes(reclaimedTotal)
	s.metrics.ObservePurgeBatch(time.Since(start))
	s.logger.Info("purge batch complete",
		zap.String("kind", kind),
		zap.Int("candidates", len(candidates)),
		zap.Int("deleted", len(result.DeletedMedia)),
		zap.Int("failed", failures),
		zap.Int64("reclaimed_bytes", reclaimedTotal),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

// deleteOne removes one item's bytes then its record. Any failure leaves
// the record in place so the item stays selectable for retry.
func (s *PurgeService) deleteOne(ctx context.Context, key models.MediaKey) (bool, int64) {
	if ctx.Err() != nil {
		return false, 0
	}

	local := key.Origin == s.store.ServerName()

	var size int64
	if local {
		size = s.bytes.SizeOnDisk(s.bytes.LocalPath(key.MediaID))
	} else {
		size = s.bytes.SizeOnDisk(s.bytes.RemotePath(key.Origin, key.MediaID))
	}

	var err error
	if local {
		err = s.bytes.DeleteLocal(key.MediaID)
	} else {
		err = s.bytes.DeleteRemoteCache(key.Origin, key.MediaID)
	}
	if err != nil {
		s.logger.Warn("media byte deletion failed",
			zap.String("origin", key.Origin),
			zap.String("media_id", key.MediaID),
			zap.Error(err))
		return false, 0
	}

	if local {
		_, err = s.store.DeleteLocal(ctx, key.MediaID)
	} else {
		_, err = s.store.DeleteRemote(ctx, key.Origin, key.MediaID)
	}
	if err != nil {
		s.logger.Warn("media record deletion failed",
			zap.String("origin", key.Origin),
			zap.String("media_id", key.MediaID),
			zap.Error(err))
		return false, 0
	}

	return true, size
}

func (s *PurgeService) recordAudit(ctx context.Context, actor, action, target, detail string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditEntry{ActorID: actor, Action: action, Target: target, Detail: detail}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
