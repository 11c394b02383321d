// Package store keeps one folder per recording under a root directory.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	AudioFileName      = "recording.wav"
	TranscriptFileName = "transcription.txt"
	MetadataFileName   = "metadata.json"

	// FolderIDLayout is DD.MM.YYYY-HH.MM.SS in local time.
	FolderIDLayout = "02.01.2006-15.04.05"

	maxCollisionSuffix = 1000
)

// Recording is one folder in the store that holds an audio file.
type Recording struct {
	FolderID         string
	Dir              string
	Title            string
	CreatedAt        time.Time
	AudioPath        string
	TranscriptPath   string
	HasTranscription bool
	HasMetadata      bool
	ModTime          time.Time
	Size             int64
}

type Store struct {
	root   string
	now    func() time.Time
	logger *zap.Logger
}

func New(root string, logger *zap.Logger) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("store root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	if filepath.Dir(abs) == abs {
		return nil, fmt.Errorf("refusing to use %s as store root", abs)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{root: abs, now: time.Now, logger: logger}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Root() string { return s.root }

// CreateFolder reserves a new recording folder named after the current
// second. Same-second collisions get a -2, -3, ... suffix.
func (s *Store) CreateFolder() (Recording, error) {
	if err := s.ensureRoot(); err != nil {
		return Recording{}, err
	}

	now := s.now()
	base := now.Format(FolderIDLayout)
	for n := 1; n <= maxCollisionSuffix; n++ {
		id := base
		if n > 1 {
			id = base + "-" + strconv.Itoa(n)
		}

		dir := filepath.Join(s.root, id)
		err := os.Mkdir(dir, 0o700)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return Recording{}, &IOError{Op: "create folder", Path: dir, Err: err}
		}

		s.logger.Debug("recording folder created", zap.String("folder_id", id))
		return Recording{
			FolderID:       id,
			Dir:            dir,
			Title:          id,
			CreatedAt:      now,
			AudioPath:      filepath.Join(dir, AudioFileName),
			TranscriptPath: filepath.Join(dir, TranscriptFileName),
		}, nil
	}

	return Recording{}, &IOError{Op: "create folder", Path: filepath.Join(s.root, base), Err: errors.New("too many recordings in the same second")}
}

type scanned struct {
	id      string
	dir     string
	modTime time.Time
	size    int64
}

// Recordings scans the root on every call and yields recordings newest
// first. Metadata and transcript state are read as each item is yielded.
func (s *Store) Recordings() iter.Seq[Recording] {
	return func(yield func(Recording) bool) {
		for _, item := range s.scan() {
			if !yield(s.build(item)) {
				return
			}
		}
	}
}

func (s *Store) List() []Recording {
	return slices.Collect(s.Recordings())
}

func (s *Store) Get(folderID string) (Recording, error) {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return Recording{}, err
	}

	info, err := os.Stat(filepath.Join(dir, AudioFileName))
	if err != nil || !info.Mode().IsRegular() {
		return Recording{}, fmt.Errorf("%w: %s", ErrNotFound, folderID)
	}

	return s.build(scanned{id: folderID, dir: dir, modTime: info.ModTime(), size: info.Size()}), nil
}

// Remove deletes a reserved folder that never received audio. Folders that
// hold a recording are left alone.
func (s *Store) Remove(folderID string) error {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, AudioFileName)); err == nil {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Op: "remove folder", Path: dir, Err: err}
	}
	return nil
}

func (s *Store) WriteTranscript(folderID, text string) error {
	dir, err := s.existingFolder(folderID)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, TranscriptFileName)
	if err := writeFileAtomic(path, []byte(text), 0o644); err != nil {
		return &IOError{Op: "write transcript", Path: path, Err: err}
	}
	return nil
}

func (s *Store) ReadTranscript(folderID string) (string, error) {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, TranscriptFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNoTranscript, folderID)
	}
	if err != nil {
		return "", &IOError{Op: "read transcript", Path: path, Err: err}
	}
	return string(data), nil
}

func (s *Store) DeleteOne(folderID string) error {
	dir, err := s.existingFolder(folderID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return &IOError{Op: "delete recording", Path: dir, Err: err}
	}
	s.logger.Info("recording deleted", zap.String("folder_id", folderID))
	return nil
}

// DeleteAll removes every recording and recreates an empty root before
// returning.
func (s *Store) DeleteAll() error {
	if err := os.RemoveAll(s.root); err != nil {
		return &IOError{Op: "delete all recordings", Path: s.root, Err: err}
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}
	s.logger.Info("all recordings deleted", zap.String("root", s.root))
	return nil
}

func (s *Store) scan() []scanned {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("read store root failed", zap.String("root", s.root), zap.Error(err))
		}
		return nil
	}

	items := make([]scanned, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(s.root, entry.Name())
		info, err := os.Stat(filepath.Join(dir, AudioFileName))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("skipping unreadable recording", zap.String("folder_id", entry.Name()), zap.Error(err))
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		items = append(items, scanned{id: entry.Name(), dir: dir, modTime: info.ModTime(), size: info.Size()})
	}

	slices.SortFunc(items, func(a, b scanned) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(b.id, a.id)
	})
	return items
}

func (s *Store) build(item scanned) Recording {
	rec := Recording{
		FolderID:       item.id,
		Dir:            item.dir,
		Title:          item.id,
		AudioPath:      filepath.Join(item.dir, AudioFileName),
		TranscriptPath: filepath.Join(item.dir, TranscriptFileName),
		ModTime:        item.modTime,
		Size:           item.size,
	}

	if created, ok := ParseFolderID(item.id); ok {
		rec.CreatedAt = created
	} else {
		rec.CreatedAt = item.modTime
	}

	if info, err := os.Stat(rec.TranscriptPath); err == nil && info.Mode().IsRegular() {
		rec.HasTranscription = true
	}

	if md, ok := s.LoadMetadata(item.id); ok {
		rec.HasMetadata = true
		rec.Title = md.Title
		if !md.CreatedAt.IsZero() {
			rec.CreatedAt = md.CreatedAt
		}
	}

	return rec
}

// ParseFolderID recovers the creation time encoded in a folder id,
// ignoring any collision suffix.
func ParseFolderID(folderID string) (time.Time, bool) {
	if len(folderID) < len(FolderIDLayout) {
		return time.Time{}, false
	}

	stamp, suffix := folderID[:len(FolderIDLayout)], folderID[len(FolderIDLayout):]
	if suffix != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(suffix, "-"))
		if !strings.HasPrefix(suffix, "-") || err != nil || n < 2 {
			return time.Time{}, false
		}
	}

	t, err := time.ParseInLocation(FolderIDLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) folderPath(folderID string) (string, error) {
	if folderID == "" || folderID == "." || folderID == ".." || strings.ContainsAny(folderID, `/\`) || filepath.Base(folderID) != folderID {
		return "", fmt.Errorf("%w: %q", ErrInvalidFolderID, folderID)
	}
	return filepath.Join(s.root, folderID), nil
}

func (s *Store) existingFolder(folderID string) (string, error) {
	dir, err := s.folderPath(folderID)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, folderID)
	}
	if err != nil {
		return "", &IOError{Op: "stat folder", Path: dir, Err: err}
	}
	return dir, nil
}

func (s *Store) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return &IOError{Op: "create store root", Path: s.root, Err: err}
	}
	return nil
}
