package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Metadata struct {
	Title     string    `json:"title"`
	Timestamp string    `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoadMetadata reports false when the file is missing or unusable. A
// corrupt file is logged and otherwise ignored.
func (s *Store) LoadMetadata(folderID string) (Metadata, bool) {
	md, err := s.readMetadata(folderID)
	if err == nil {
		return md, true
	}

	var parseErr *MetadataParseError
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case errors.As(err, &parseErr):
		s.logger.Warn("ignoring malformed metadata", zap.String("folder_id", folderID), zap.Error(err))
	default:
		s.logger.Warn("read metadata failed", zap.String("folder_id", folderID), zap.Error(err))
	}
	return Metadata{}, false
}

func (s *Store) readMetadata(folderID string) (Metadata, error) {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return Metadata{}, err
	}

	path := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, &MetadataParseError{Path: path, Err: err}
	}
	if strings.TrimSpace(md.Title) == "" {
		return Metadata{}, &MetadataParseError{Path: path, Err: errors.New("title is empty")}
	}
	return md, nil
}

// WriteMetadata replaces the metadata file. A missing timestamp is filled
// from the folder id. A missing createdAt keeps the stored one, or falls back
// to the folder id when nothing was written before.
func (s *Store) WriteMetadata(folderID string, md Metadata) error {
	dir, err := s.existingFolder(folderID)
	if err != nil {
		return err
	}

	md.Title = strings.TrimSpace(md.Title)
	if md.Title == "" {
		return ErrEmptyTitle
	}
	if md.Timestamp == "" {
		md.Timestamp = folderID
	}
	if md.CreatedAt.IsZero() {
		if prev, err := s.readMetadata(folderID); err == nil && !prev.CreatedAt.IsZero() {
			md.CreatedAt = prev.CreatedAt
		} else {
			md.CreatedAt = s.defaultCreatedAt(folderID)
		}
	}
	md.CreatedAt = md.CreatedAt.UTC().Truncate(time.Millisecond)

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	path := filepath.Join(dir, MetadataFileName)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return &IOError{Op: "write metadata", Path: path, Err: err}
	}
	return nil
}

// Rename sets the display title. createdAt is carried over from existing
// metadata so repeated renames never move it.
func (s *Store) Rename(folderID, title string) (Recording, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Recording{}, ErrEmptyTitle
	}

	rec, err := s.Get(folderID)
	if err != nil {
		return Recording{}, err
	}

	// rec.CreatedAt already prefers the value from existing metadata.
	md := Metadata{Title: title, Timestamp: folderID, CreatedAt: rec.CreatedAt}
	if err := s.WriteMetadata(folderID, md); err != nil {
		return Recording{}, err
	}

	s.logger.Debug("recording renamed", zap.String("folder_id", folderID), zap.String("title", title))
	return s.Get(folderID)
}

func (s *Store) defaultCreatedAt(folderID string) time.Time {
	if t, ok := ParseFolderID(folderID); ok {
		return t
	}
	if info, err := os.Stat(filepath.Join(s.root, folderID, AudioFileName)); err == nil {
		return info.ModTime()
	}
	return s.now()
}
