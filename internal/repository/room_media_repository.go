package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/meridian-im/media-admin-api/internal/models"
)

// RoomMediaRepository reads the room media index, the per-room table of
// media URIs the event ingest path maintains as messages arrive. Listing
// a room is an indexed lookup, never a replay of the room's history.
type RoomMediaRepository struct {
	db *sqlx.DB
}

// NewRoomMediaRepository constructs the repository.
func NewRoomMediaRepository(db *sqlx.DB) *RoomMediaRepository {
	return &RoomMediaRepository{db: db}
}

// RoomExists reports whether this server knows the room.
func (r *RoomMediaRepository) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, roomID); err != nil {
		return false, fmt.Errorf("check room exists: %w", err)
	}
	return exists, nil
}

// MediaKeysInRoom returns the distinct media referenced by the room's
// events, local and remote alike.
func (r *RoomMediaRepository) MediaKeysInRoom(ctx context.Context, roomID string) ([]models.MediaKey, error) {
	const query = `SELECT DISTINCT media_origin, media_id
	FROM room_media_index
	WHERE room_id = $1
	ORDER BY media_origin ASC, media_id ASC`
	keys := []models.MediaKey{}
	if err := r.db.SelectContext(ctx, &keys, query, roomID); err != nil {
		return nil, fmt.Errorf("list room media: %w", err)
	}
	return keys, nil
}
