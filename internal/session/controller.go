// Package session drives one recording from capture through transcription.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/capture"
	"github.com/fmueller/voxnote/internal/store"
	"github.com/fmueller/voxnote/internal/transcribe"
)

var (
	ErrSessionActive  = errors.New("a recording session is already active")
	ErrNotRecording   = errors.New("no recording in progress")
	ErrAborted        = errors.New("recording aborted")
	ErrEmptyRecording = errors.New("recording produced no audio")
	ErrNoSpeech       = errors.New("no speech detected")
)

// Capture is a running recorder.
type Capture interface {
	Backend() string
	Done() <-chan struct{}
	Err() error
	Stop(ctx context.Context) capture.Completion
}

type Capturer interface {
	Start(ctx context.Context, outputPath string) (Capture, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Gate reports whether a finished recording is too quiet to transcribe.
type Gate func(audioPath string) (silent bool, err error)

type recorderCapturer struct {
	recorder *capture.Recorder
}

// FromRecorder adapts a capture.Recorder to Capturer.
func FromRecorder(recorder *capture.Recorder) Capturer {
	return recorderCapturer{recorder: recorder}
}

func (r recorderCapturer) Start(ctx context.Context, outputPath string) (Capture, error) {
	proc, err := r.recorder.Start(ctx, outputPath)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

type Options struct {
	Store       *store.Store
	Capturer    Capturer
	Transcriber Transcriber
	Gate        Gate
	Logger      *zap.Logger
}

// Snapshot is a copy of the current session's state.
type Snapshot struct {
	ID         string
	State      State
	Recording  store.Recording
	Backend    string
	StartedAt  time.Time
	Completion capture.Completion
	Transcript string
	Err        error
}

type session struct {
	id         string
	state      State
	rec        store.Recording
	capture    Capture
	startedAt  time.Time
	completion capture.Completion
	transcript string
	err        error
	crashed    bool
	logger     *zap.Logger
}

// Controller owns at most one active session at a time.
type Controller struct {
	store       *store.Store
	capturer    Capturer
	transcriber Transcriber
	gate        Gate
	logger      *zap.Logger

	mu       sync.Mutex
	starting bool
	current  *session
}

func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("session: transcriber is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		store:       opts.Store,
		capturer:    opts.Capturer,
		transcriber: opts.Transcriber,
		gate:        opts.Gate,
		logger:      logger,
	}, nil
}

// Start allocates a folder and launches capture into it. The folder is
// removed again when the recorder cannot be launched.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	if c.capturer == nil {
		return Snapshot{}, errors.New("session: no capturer configured")
	}

	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return c.Snapshot(), ErrSessionActive
	}
	c.starting = true
	c.mu.Unlock()

	sess := c.newSession()

	rec, err := c.store.CreateFolder()
	if err != nil {
		return c.install(sess, Failed, fmt.Errorf("allocate recording folder: %w", err))
	}
	sess.rec = rec
	sess.logger = sess.logger.With(zap.String("folder_id", rec.FolderID))

	proc, err := c.capturer.Start(ctx, rec.AudioPath)
	if err != nil {
		if cleanupErr := c.store.Remove(rec.FolderID); cleanupErr != nil {
			sess.logger.Warn("remove unused recording folder failed", zap.Error(cleanupErr))
		}
		return c.install(sess, Failed, err)
	}
	sess.capture = proc

	snap, _ := c.install(sess, Recording, nil)
	sess.logger.Info("recording started", zap.String("backend", proc.Backend()))
	go c.watchCapture(sess)
	return snap, nil
}

// Stop finishes the capture and transcribes the result. Transcription runs
// detached from ctx so an abandoned caller still gets its transcript saved.
func (c *Controller) Stop(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	sess := c.current
	switch {
	case sess == nil || c.starting:
		c.mu.Unlock()
		return c.Snapshot(), ErrNotRecording
	case sess.state == Failed && sess.crashed:
		// The recorder already crashed; report why.
		snap := sess.snapshot()
		c.mu.Unlock()
		return snap, sess.err
	case sess.state != Recording:
		c.mu.Unlock()
		return c.Snapshot(), ErrNotRecording
	}
	sess.state = Stopping
	c.mu.Unlock()

	completion := sess.capture.Stop(ctx)
	c.mu.Lock()
	sess.completion = completion
	c.mu.Unlock()
	sess.logger.Info("recording stopped", zap.Stringer("outcome", completion.Outcome), zap.Duration("elapsed", completion.Elapsed))

	// The recorder died before the stop request reached it.
	if err := sess.capture.Err(); err != nil {
		c.mu.Lock()
		sess.crashed = true
		c.mu.Unlock()
		return c.finish(sess, Failed, "", err)
	}

	if err := checkAudio(sess.rec.AudioPath); err != nil {
		return c.finish(sess, Failed, "", err)
	}

	if c.gate != nil {
		silent, err := c.gate(sess.rec.AudioPath)
		switch {
		case err != nil:
			sess.logger.Warn("silence check failed; transcribing anyway", zap.Error(err))
		case silent:
			return c.finish(sess, Failed, "", &transcribe.Error{Kind: transcribe.KindRejected, Err: ErrNoSpeech})
		}
	}

	return c.transcribe(context.WithoutCancel(ctx), sess)
}

// Abort stops capture without transcribing. The audio captured so far is
// kept in the store.
func (c *Controller) Abort(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	sess := c.current
	if sess == nil || c.starting || sess.state != Recording {
		c.mu.Unlock()
		return c.Snapshot(), ErrNotRecording
	}
	sess.state = Failed
	sess.err = ErrAborted
	c.mu.Unlock()

	completion := sess.capture.Stop(ctx)

	c.mu.Lock()
	sess.completion = completion
	snap := sess.snapshot()
	c.mu.Unlock()

	sess.logger.Info("recording aborted", zap.Stringer("outcome", completion.Outcome))
	return snap, ErrAborted
}

// Retranscribe runs transcription again on an existing recording as a new
// session that begins in Transcribing.
func (c *Controller) Retranscribe(ctx context.Context, folderID string) (Snapshot, error) {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return c.Snapshot(), ErrSessionActive
	}
	// Reserve the slot while the store lookup runs.
	c.starting = true
	c.mu.Unlock()

	rec, err := c.store.Get(folderID)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	sess := c.newSession()
	sess.rec = rec
	sess.state = Transcribing
	sess.logger = sess.logger.With(zap.String("folder_id", rec.FolderID))
	c.current = sess
	c.mu.Unlock()

	return c.transcribe(context.WithoutCancel(ctx), sess)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Snapshot{State: Idle}
	}
	return c.current.snapshot()
}

// CaptureDone is closed when the current recorder exits. It is nil, and so
// never ready, when nothing is recording.
func (c *Controller) CaptureDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.capture == nil || c.current.state != Recording {
		return nil
	}
	return c.current.capture.Done()
}

func (c *Controller) transcribe(ctx context.Context, sess *session) (Snapshot, error) {
	c.mu.Lock()
	sess.state = Transcribing
	c.mu.Unlock()

	started := time.Now()
	sess.logger.Debug("transcribing", zap.String("audio", sess.rec.AudioPath))

	text, err := c.transcriber.Transcribe(ctx, sess.rec.AudioPath)
	if err != nil {
		return c.finish(sess, Failed, "", err)
	}

	if err := c.store.WriteTranscript(sess.rec.FolderID, text); err != nil {
		return c.finish(sess, Failed, text, err)
	}

	sess.logger.Info("transcription saved", zap.Duration("elapsed", time.Since(started)), zap.Int("chars", len(text)))
	return c.finish(sess, Done, text, nil)
}

func (c *Controller) watchCapture(sess *session) {
	<-sess.capture.Done()
	err := sess.capture.Err()
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sess.state != Recording {
		return
	}
	sess.state = Failed
	sess.err = err
	sess.crashed = true

	var runtimeErr *capture.RuntimeError
	if errors.As(err, &runtimeErr) && runtimeErr.PartialPath != "" {
		sess.logger.Error("recorder crashed", zap.String("partial_audio", runtimeErr.PartialPath), zap.Error(err))
		return
	}
	sess.logger.Error("recorder crashed", zap.Error(err))
}

func (c *Controller) newSession() *session {
	id := uuid.NewString()
	return &session{
		id:        id,
		state:     Idle,
		startedAt: time.Now(),
		logger:    c.logger.With(zap.String("session_id", id)),
	}
}

// install publishes sess as the current session and releases the start slot.
func (c *Controller) install(sess *session, state State, err error) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess.state = state
	sess.err = err
	c.current = sess
	c.starting = false
	if err != nil {
		sess.logger.Warn("session failed", zap.Stringer("state", state), zap.Error(err))
	}
	return sess.snapshot(), err
}

func (c *Controller) finish(sess *session, state State, transcript string, err error) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess.state = state
	sess.transcript = transcript
	sess.err = err
	if err != nil {
		sess.logger.Warn("session failed", zap.Error(err))
	}
	return sess.snapshot(), err
}

func (c *Controller) busyLocked() bool {
	return c.starting || (c.current != nil && c.current.state.Active())
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Recording:  s.rec,
		StartedAt:  s.startedAt,
		Completion: s.completion,
		Transcript: s.transcript,
		Err:        s.err,
	}
	if s.capture != nil {
		snap.Backend = s.capture.Backend()
	}
	return snap
}

func checkAudio(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmptyRecording, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyRecording, path)
	}
	return nil
}
