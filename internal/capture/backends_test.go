package capture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func startAndStop(t *testing.T, backend Backend, cfg Config) {
	t.Helper()

	rec := testRecorder(backend)
	rec.Config = cfg
	proc, err := rec.Start(context.Background(), filepath.Join(t.TempDir(), "recording.wav"))
	require.NoError(t, err)
	require.True(t, proc.Stop(context.Background()).Graceful())
}

func TestSoxUsesDefaultDeviceAndTranscriptionProfile(t *testing.T) {
	dir := installStub(t, "sox", gracefulStub)

	startAndStop(t, newSoxBackend("darwin"), Config{})

	args := readArgs(t, dir, "sox")
	require.Contains(t, args, "-d\n")
	require.Contains(t, args, "-r\n16000\n")
	require.Contains(t, args, "-c\n1\n")
	require.Contains(t, args, "-b\n16\n")
}

func TestSoxInputSelectsDriver(t *testing.T) {
	dir := installStub(t, "sox", gracefulStub)

	startAndStop(t, newSoxBackend("linux"), Config{Input: "hw:1,0"})

	args := readArgs(t, dir, "sox")
	require.Contains(t, args, "-t\nalsa\nhw:1,0\n")
	require.NotContains(t, args, "-d\n")
}

func TestPipeWireInputPassesTarget(t *testing.T) {
	dir := installStub(t, "pw-record", gracefulStub)

	startAndStop(t, newPipeWireBackend(), Config{Input: "42"})

	args := readArgs(t, dir, "pw-record")
	require.Contains(t, args, "--target\n42\n")
	require.Contains(t, args, "--rate\n16000\n")
}

func TestPipeWireNoInputOmitsTarget(t *testing.T) {
	dir := installStub(t, "pw-record", gracefulStub)

	startAndStop(t, newPipeWireBackend(), Config{})

	require.NotContains(t, readArgs(t, dir, "pw-record"), "--target")
}

func TestArecordInputPassesDevice(t *testing.T) {
	dir := installStub(t, "arecord", gracefulStub)

	startAndStop(t, newALSARecorderBackend(), Config{Input: "hw:1,0"})

	args := readArgs(t, dir, "arecord")
	require.Contains(t, args, "-D\nhw:1,0\n")
	require.Contains(t, args, "-f\nS16_LE\n")
}

func TestArecordNoInputOmitsDevice(t *testing.T) {
	dir := installStub(t, "arecord", gracefulStub)

	startAndStop(t, newALSARecorderBackend(), Config{})

	require.NotContains(t, readArgs(t, dir, "arecord"), "-D")
}

func TestFFMPEGLinuxDefaultsToPulse(t *testing.T) {
	dir := installStub(t, "ffmpeg", gracefulStub)

	startAndStop(t, newFFMPEGLinuxBackend(), Config{})

	args := readArgs(t, dir, "ffmpeg")
	require.Contains(t, args, "-f\npulse\n-i\ndefault\n")
	require.Contains(t, args, "-c:a\npcm_s16le\n")
}

func TestFFMPEGMacUsesAVFoundation(t *testing.T) {
	dir := installStub(t, "ffmpeg", gracefulStub)

	startAndStop(t, newFFMPEGMacOSBackend(), Config{Input: ":1"})

	require.Contains(t, readArgs(t, dir, "ffmpeg"), "-f\navfoundation\n-i\n:1\n")
}
