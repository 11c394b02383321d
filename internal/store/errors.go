package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("recording not found")
	ErrNoTranscript    = errors.New("recording has no transcript")
	ErrInvalidFolderID = errors.New("invalid recording id")
	ErrEmptyTitle      = errors.New("title must not be empty")
)

// IOError is a failed filesystem write or delete.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// MetadataParseError marks a metadata file that exists but cannot be used.
// Readers recover from it by falling back to folder-derived defaults.
type MetadataParseError struct {
	Path string
	Err  error
}

func (e *MetadataParseError) Error() string {
	return fmt.Sprintf("parse metadata %s: %v", e.Path, e.Err)
}

func (e *MetadataParseError) Unwrap() error { return e.Err }
