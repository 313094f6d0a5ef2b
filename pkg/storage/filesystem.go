package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// MediaStore resolves and removes media content on the local filesystem.
//
// Layout mirrors the on-disk store the homeserver writes on upload:
//
//	local_content/<aa>/<bb>/<rest>
//	local_thumbnails/<aa>/<bb>/<rest>/...
//	remote_content/<origin>/<aa>/<bb>/<rest>
//	remote_thumbnail/<origin>/<aa>/<bb>/<rest>/...
//
// where <aa> and <bb> are the first two pairs of characters of the media ID.
type MediaStore struct {
	basePath string
}

// NewMediaStore ensures the base directory exists and returns a handle.
func NewMediaStore(basePath string) (*MediaStore, error) {
	if basePath == "" {
		basePath = "./media_store"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create media store directory: %w", err)
	}
	return &MediaStore{basePath: basePath}, nil
}

// DeleteLocal removes a local media file and its thumbnail directory.
// Missing files are not an error: deletion is idempotent so interrupted
// purges can be retried.
func (s *MediaStore) DeleteLocal(mediaID string) error {
	if err := s.removeFile(s.LocalPath(mediaID)); err != nil {
		return err
	}
	return s.removeDir(s.LocalThumbnailDir(mediaID))
}

// DeleteRemoteCache removes a cached remote media file and its thumbnails.
func (s *MediaStore) DeleteRemoteCache(origin, mediaID string) error {
	if err := s.removeFile(s.RemotePath(origin, mediaID)); err != nil {
		return err
	}
	return s.removeDir(s.RemoteThumbnailDir(origin, mediaID))
}

// LocalPath returns the content path for a local media ID.
func (s *MediaStore) LocalPath(mediaID string) string {
	return filepath.Join(s.basePath, "local_content", splitID(mediaID))
}

// LocalThumbnailDir returns the thumbnail directory for a local media ID.
func (s *MediaStore) LocalThumbnailDir(mediaID string) string {
	return filepath.Join(s.basePath, "local_thumbnails", splitID(mediaID))
}

// RemotePath returns the content path for a cached remote media ID.
func (s *MediaStore) RemotePath(origin, mediaID string) string {
	return filepath.Join(s.basePath, "remote_content", origin, splitID(mediaID))
}

// RemoteThumbnailDir returns the thumbnail directory for a cached remote media ID.
func (s *MediaStore) RemoteThumbnailDir(origin, mediaID string) string {
	return filepath.Join(s.basePath, "remote_thumbnail", origin, splitID(mediaID))
}

// SizeOnDisk reports the content file size, or 0 when the file is absent.
func (s *MediaStore) SizeOnDisk(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *MediaStore) removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

func (s *MediaStore) removeDir(path string) error {
	if path == s.basePath {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete thumbnail directory: %w", err)
	}
	return nil
}

// splitID shards a media ID over two directory levels. IDs shorter than
// five characters are stored flat.
func splitID(mediaID string) string {
	if len(mediaID) < 5 {
		return mediaID
	}
	return filepath.Join(mediaID[0:2], mediaID[2:4], mediaID[4:])
}
