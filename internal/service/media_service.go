package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

type mediaLister interface {
	ServerName() string
	ListByUser(ctx context.Context, userID string, offset, limit int, order models.MediaSortOrder, dir models.SortDirection) ([]models.MediaRecord, int, error)
}

// UserMediaQuery carries validated listing parameters.
type UserMediaQuery struct {
	UserID string
	Offset int
	Limit  int
	Order  models.MediaSortOrder
	Dir    models.SortDirection
}

// MediaService serves paginated views over a user's local media.
type MediaService struct {
	store  mediaLister
	users  userDirectory
	logger *zap.Logger
}

// NewMediaService constructs the service.
func NewMediaService(store mediaLister, users userDirectory, logger *zap.Logger) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{store: store, users: users, logger: logger}
}

// ListUserMedia returns one page of media uploaded by a local user.
// Pagination is deterministic: repeated calls with identical parameters
// against an unmodified store return identical pages.
func (s *MediaService) ListUserMedia(ctx context.Context, q UserMediaQuery) (*models.UserMediaPage, error) {
	if err := s.validate(ctx, &q); err != nil {
		return nil, err
	}

	records, total, err := s.store.ListByUser(ctx, q.UserID, q.Offset, q.Limit, q.Order, q.Dir)
	if err != nil {
		return nil, storeError(err, "list user media")
	}

	page := &models.UserMediaPage{Media: records, Total: total}
	if q.Offset+q.Limit < total {
		next := q.Offset + len(records)
		page.NextToken = &next
	}
	return page, nil
}

func (s *MediaService) validate(ctx context.Context, q *UserMediaQuery) error {
	if q.Offset < 0 {
		return appErrors.Clone(appErrors.ErrInvalidParam, "query parameter from must be a positive integer")
	}
	if q.Limit < 0 {
		return appErrors.Clone(appErrors.ErrInvalidParam, "query parameter limit must be a positive integer")
	}
	if !q.Order.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidParam, "unknown order_by value")
	}
	if !q.Dir.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidParam, "unknown dir value")
	}
	if !isLocalUserOf(q.UserID, s.store.ServerName()) {
		return appErrors.Clone(appErrors.ErrInvalidParam, "can only look up local users")
	}
	exists, err := s.users.Exists(ctx, q.UserID)
	if err != nil {
		return storeError(err, "user lookup")
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown user")
	}
	return nil
}
