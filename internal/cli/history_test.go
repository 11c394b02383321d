package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/store"
	"github.com/stretchr/testify/require"
)

func seedRecording(t *testing.T, storeDir, id string, modTime time.Time, transcript string) {
	t.Helper()
	dir := filepath.Join(storeDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	audioPath := filepath.Join(dir, store.AudioFileName)
	require.NoError(t, os.WriteFile(audioPath, speechWAV(), 0o644))
	require.NoError(t, os.Chtimes(audioPath, modTime, modTime))
	if transcript != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, store.TranscriptFileName), []byte(transcript), 0o644))
	}
}

func TestListPrintsNewestFirst(t *testing.T) {
	storeDir, args := isolate(t)
	now := time.Now()
	seedRecording(t, storeDir, "01.01.2026-10.00.00", now.Add(-time.Hour), "")
	seedRecording(t, storeDir, "02.01.2026-10.00.00", now, "hello")

	stdout, _, err := runCommand(t, append(args, "list"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.True(t, strings.HasPrefix(lines[1], "02.01.2026-10.00.00"))
	require.Contains(t, lines[1], "yes")
	require.True(t, strings.HasPrefix(lines[2], "01.01.2026-10.00.00"))
}

func TestListEmptyStore(t *testing.T) {
	_, args := isolate(t)

	stdout, _, err := runCommand(t, append(args, "list"))
	require.NoError(t, err)
	require.Equal(t, "No recordings found\n", stdout)
}

func TestShowPrintsDetail(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "07.03.2026-09.05.01", time.Now(), "hello world")

	stdout, _, err := runCommand(t, append(args, "show", "07.03.2026-09.05.01"))
	require.NoError(t, err)
	require.Contains(t, stdout, "07.03.2026-09.05.01")
	require.Contains(t, stdout, "16000 Hz, 1 ch, 16-bit")
	require.Contains(t, stdout, "1s")
	require.Contains(t, stdout, "hello world")
}

func TestShowWithoutTranscriptSuggestsRetry(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "07.03.2026-09.05.01", time.Now(), "")

	stdout, _, err := runCommand(t, append(args, "show", "07.03.2026-09.05.01"))
	require.NoError(t, err)
	require.Contains(t, stdout, "voxnote retry 07.03.2026-09.05.01")
}

func TestRenameUpdatesTitle(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "07.03.2026-09.05.01", time.Now(), "")

	stdout, _, err := runCommand(t, append(args, "rename", "07.03.2026-09.05.01", "Team", "sync"))
	require.NoError(t, err)
	require.Contains(t, stdout, `"Team sync"`)

	stdout, _, err = runCommand(t, append(args, "list"))
	require.NoError(t, err)
	require.Contains(t, stdout, "Team sync")
}

func TestDeleteWithYes(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "01.01.2026-10.00.00", time.Now(), "")
	seedRecording(t, storeDir, "02.01.2026-10.00.00", time.Now(), "")

	_, _, err := runCommand(t, append(args, "delete", "--yes", "01.01.2026-10.00.00"))
	require.NoError(t, err)
	require.NoDirExists(t, filepath.Join(storeDir, "01.01.2026-10.00.00"))
	require.DirExists(t, filepath.Join(storeDir, "02.01.2026-10.00.00"))
}

func TestDeleteWithoutTerminalRequiresYes(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "01.01.2026-10.00.00", time.Now(), "")

	app := newAppState()
	app.isTerminalFn = func() bool { return false }
	_, _, err := runAppCommand(t, app, append(args, "delete", "01.01.2026-10.00.00"))
	require.ErrorIs(t, err, ErrInteractiveRequiresTTY)
	require.DirExists(t, filepath.Join(storeDir, "01.01.2026-10.00.00"))
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "01.01.2026-10.00.00", time.Now(), "")
	seedRecording(t, storeDir, "02.01.2026-10.00.00", time.Now(), "")

	declined := newAppState()
	declined.isTerminalFn = func() bool { return true }
	declined.in = strings.NewReader("n\n")
	stdout, stderr, err := runAppCommand(t, declined, append(args, "delete", "--all"))
	require.NoError(t, err)
	require.Contains(t, stderr, "Delete all 2 recording(s)? [y/N]")
	require.Contains(t, stdout, "Nothing deleted")
	require.DirExists(t, filepath.Join(storeDir, "01.01.2026-10.00.00"))

	accepted := newAppState()
	accepted.isTerminalFn = func() bool { return true }
	accepted.in = strings.NewReader("yes\n")
	_, _, err = runAppCommand(t, accepted, append(args, "delete", "--all"))
	require.NoError(t, err)

	entries, err := os.ReadDir(storeDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCopyTranscript(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "07.03.2026-09.05.01", time.Now(), "copy me")
	seedRecording(t, storeDir, "08.03.2026-09.05.01", time.Now(), "")

	var copied []string
	app := newAppState()
	app.copyFn = func(_ context.Context, value string) error {
		copied = append(copied, value)
		return nil
	}

	_, _, err := runAppCommand(t, app, append(args, "copy", "07.03.2026-09.05.01"))
	require.NoError(t, err)
	require.Equal(t, []string{"copy me"}, copied)

	_, _, err = runAppCommand(t, app, append(args, "copy", "08.03.2026-09.05.01"))
	require.ErrorIs(t, err, store.ErrNoTranscript)

	app.copyFn = func(context.Context, string) error { return clipboard.ErrUnavailable }
	_, _, err = runAppCommand(t, app, append(args, "copy", "07.03.2026-09.05.01"))
	require.ErrorIs(t, err, clipboard.ErrUnavailable)
}

func TestListWatchStopsWithContext(t *testing.T) {
	storeDir, args := isolate(t)
	seedRecording(t, storeDir, "01.01.2026-10.00.00", time.Now(), "")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := newRootCmd(newAppState())
	out := new(strings.Builder)
	cmd.SetOut(out)
	cmd.SetArgs(append(args, "list", "--watch"))

	require.NoError(t, cmd.ExecuteContext(ctx))
	require.Contains(t, out.String(), "01.01.2026-10.00.00")
}
