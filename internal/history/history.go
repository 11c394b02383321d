// Package history is the read/rename/delete view over stored recordings.
package history

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/store"
)

// Detail is a recording with its transcript and audio format.
type Detail struct {
	Recording  store.Recording
	Transcript string
	Audio      audio.Info
	// AudioErr is set when the audio header could not be read.
	AudioErr error
}

type Browser struct {
	store  *store.Store
	logger *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Browser{store: st, logger: logger}
}

func (b *Browser) Entries() []store.Recording {
	return b.store.List()
}

func (b *Browser) Detail(folderID string) (Detail, error) {
	rec, err := b.store.Get(folderID)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Recording: rec}
	if rec.HasTranscription {
		text, err := b.store.ReadTranscript(folderID)
		if err != nil {
			return Detail{}, err
		}
		detail.Transcript = text
	}

	info, err := audio.Inspect(rec.AudioPath)
	if err != nil {
		b.logger.Debug("inspect audio failed", zap.String("folder_id", folderID), zap.Error(err))
		detail.AudioErr = err
	}
	detail.Audio = info
	return detail, nil
}

func (b *Browser) Rename(folderID, title string) (store.Recording, error) {
	return b.store.Rename(folderID, title)
}

func (b *Browser) Delete(folderIDs ...string) error {
	var errs []error
	for _, id := range folderIDs {
		if err := b.store.DeleteOne(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Browser) DeleteAll() error {
	return b.store.DeleteAll()
}

// Transcript returns the text to copy for a recording.
func (b *Browser) Transcript(folderID string) (string, error) {
	if _, err := b.store.Get(folderID); err != nil {
		return "", err
	}
	text, err := b.store.ReadTranscript(folderID)
	if err != nil {
		return "", fmt.Errorf("copy transcript: %w", err)
	}
	return text, nil
}
