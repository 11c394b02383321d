package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fmueller/voxnote/internal/capture"
	"github.com/fmueller/voxnote/internal/config"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runAppCommand(t, newAppState(), args)
}

func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

// isolate keeps the user's config and environment out of a test and returns
// flags pointing at a private store.
func isolate(t *testing.T) (storeDir string, baseArgs []string) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "VOXNOTE_API_KEY", "VOXNOTE_ENDPOINT", "VOXNOTE_STORE_DIR"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	storeDir = filepath.Join(dir, "recordings")
	return storeDir, []string{"--store-dir", storeDir, "--config", filepath.Join(dir, "config.toml"), "--no-progress"}
}

type transcriberFunc func(ctx context.Context, audioPath string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}

// stubCapture finalizes its WAV file when stopped.
type stubCapture struct {
	path    string
	content []byte
	done    chan struct{}
	once    sync.Once
}

func (s *stubCapture) Backend() string       { return "stub" }
func (s *stubCapture) Done() <-chan struct{} { return s.done }
func (s *stubCapture) Err() error            { return nil }

func (s *stubCapture) Stop(context.Context) capture.Completion {
	s.once.Do(func() {
		_ = os.WriteFile(s.path, s.content, 0o644)
		close(s.done)
	})
	return capture.Completion{Outcome: capture.OutcomeGraceful}
}

type capturerFunc func(ctx context.Context, outputPath string) (session.Capture, error)

func (f capturerFunc) Start(ctx context.Context, outputPath string) (session.Capture, error) {
	return f(ctx, outputPath)
}

// testApp wires fakes for every external collaborator.
func testApp(t *testing.T, audio []byte, transcribe transcriberFunc) (*appState, *[]string) {
	t.Helper()

	var mu sync.Mutex
	var copied []string

	app := newAppState()
	app.in = strings.NewReader("\n\n")
	app.isTerminalFn = func() bool { return true }
	app.newCapturerFn = func(config.Config) (session.Capturer, error) {
		return capturerFunc(func(_ context.Context, path string) (session.Capture, error) {
			return &stubCapture{path: path, content: audio, done: make(chan struct{})}, nil
		}), nil
	}
	app.newTranscriberFn = func(config.Config) session.Transcriber { return transcribe }
	app.copyFn = func(_ context.Context, value string) error {
		mu.Lock()
		defer mu.Unlock()
		copied = append(copied, value)
		return nil
	}
	return app, &copied
}

func speechWAV() []byte {
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return makePCM16WAVForTest(samples, 16000, 1)
}

func writeStub(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o755))
}

func stubScript(_, output string) string {
	return "#!/bin/sh\necho '" + output + "'\n"
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
