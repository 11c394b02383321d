package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/fmueller/voxnote/internal/transcribe"
	"go.uber.org/zap"
)

var ErrRecorderExited = errors.New("recorder exited before stop was requested")

func (a *appState) runDefault(ctx context.Context) error {
	transcriber := a.transcriber()
	if checker, ok := transcriber.(interface{ CheckCredential() error }); ok {
		if err := checker.CheckCredential(); err != nil {
			return fmt.Errorf("%w; set VOXNOTE_API_KEY or OPENAI_API_KEY, or api_key in the config file", err)
		}
	}

	ctrl, err := a.controller(true)
	if err != nil {
		return err
	}

	interactive := a.duration <= 0
	if interactive && !a.immediate {
		if err := a.waitForEnter("Press Enter to start recording."); err != nil {
			return err
		}
	}

	snap, err := ctrl.Start(ctx)
	if err != nil {
		return err
	}
	logger := a.log().With(zap.String("session_id", snap.ID), zap.String("folder_id", snap.Recording.FolderID))
	logger.Info("recording started", zap.String("backend", snap.Backend))

	var stopProgress stopFunc
	if interactive {
		stopProgress = a.spinner("Recording")
	} else {
		stopProgress = a.countdown("Recording", a.duration)
	}

	waitErr := a.waitForStop(ctx, ctrl, interactive)
	stopProgress()
	if errors.Is(waitErr, ErrRecorderExited) && ctx.Err() != nil {
		// Ctrl-C also reaches the recorder, so its exit is the user's interrupt.
		waitErr = ctx.Err()
	}

	switch {
	case errors.Is(waitErr, ErrRecorderExited):
		snap, err := ctrl.Stop(ctx)
		if err == nil {
			err = waitErr
		}
		return a.failedSession(snap, err)
	case waitErr != nil:
		snap, _ := ctrl.Abort(context.WithoutCancel(ctx))
		logger.Warn("recording interrupted; audio kept", zap.String("audio", snap.Recording.AudioPath))
		return waitErr
	}

	stopSpinner := a.spinner("Transcribing")
	snap, err = ctrl.Stop(ctx)
	stopSpinner()
	if err != nil {
		if errors.Is(err, session.ErrNoSpeech) {
			logger.Warn(noSpeechHint())
			return nil
		}
		return a.failedSession(snap, err)
	}

	a.deliverTranscript(ctx, snap.Transcript)
	return nil
}

// waitForStop blocks until the user asks to stop, the duration elapses or
// the recorder dies on its own.
func (a *appState) waitForStop(ctx context.Context, ctrl *session.Controller, interactive bool) error {
	stop := make(chan error, 1)
	if interactive {
		go func() {
			stop <- a.waitForEnter("Recording... press Enter to stop.")
		}()
	} else {
		timer := time.NewTimer(a.duration)
		defer timer.Stop()
		go func() {
			select {
			case <-timer.C:
				stop <- nil
			case <-ctx.Done():
			}
		}()
	}

	select {
	case err := <-stop:
		if err != nil && !isEOF(err) {
			return err
		}
		return nil
	case <-ctrl.CaptureDone():
		return ErrRecorderExited
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *appState) deliverTranscript(ctx context.Context, transcript string) {
	fmt.Fprintln(a.outWriter(), transcript)
	if isBlankTranscript(transcript) {
		a.log().Warn(noSpeechHint())
		if !a.copyEmpty {
			return
		}
	}

	if err := a.copyText(ctx, transcript); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard tool unavailable; transcript left on stdout")
			return
		}
		a.log().Warn("failed to copy transcript to clipboard; transcript left on stdout", zap.Error(err))
		return
	}

	a.log().Info("transcript copied to clipboard")
}

// failedSession adds where the audio went and how to retry.
func (a *appState) failedSession(snap session.Snapshot, err error) error {
	if snap.Recording.FolderID == "" {
		return err
	}

	if transcribe.KindOf(err) != 0 {
		a.log().Warn("transcription failed; audio kept",
			zap.String("audio", snap.Recording.AudioPath),
			zap.String("retry", "voxnote retry "+snap.Recording.FolderID),
		)
		return err
	}

	a.log().Warn("recording failed", zap.String("folder_id", snap.Recording.FolderID))
	return err
}
