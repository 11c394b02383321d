package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Stub recorders write their args to $ARGS_FILE and treat the last argument
// as the output path.
const (
	stubPreamble = "#!/bin/sh\nset -u\n[ -n \"${ARGS_FILE:-}\" ] && printf '%s\\n' \"$@\" > \"$ARGS_FILE\"\nfor a in \"$@\"; do out=\"$a\"; done\n"

	gracefulStub = stubPreamble + "printf 'RIFF' > \"$out\"\ntrap 'printf data >> \"$out\"; exit 0' INT\nwhile :; do sleep 0.02; done\n"
	stubbornStub = stubPreamble + "printf 'RIFF' > \"$out\"\ntrap '' INT\nwhile :; do sleep 0.02; done\n"
	failingStub  = stubPreamble + "echo 'device busy' >&2\nexit 1\n"
	crashingStub = stubPreamble + "printf 'RIFF' > \"$out\"\ntouch \"$READY_FILE\"\nwhile [ ! -f \"$CRASH_FILE\" ]; do sleep 0.02; done\necho 'input overrun' >&2\nexit 3\n"
)

func installStub(t *testing.T, name, script string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
	t.Setenv("ARGS_FILE", filepath.Join(dir, name+".args"))
	return dir
}

func readArgs(t *testing.T, stubDir, name string) string {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join(stubDir, name+".args"))
	require.NoError(t, err)
	return string(raw)
}

func waitForPath(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, timeout, 10*time.Millisecond)
}

func testRecorder(backends ...Backend) *Recorder {
	return &Recorder{
		Backends:    backends,
		WarmUp:      100 * time.Millisecond,
		StopTimeout: 500 * time.Millisecond,
	}
}
