package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ffmpegBackend drives ffmpeg with a platform input device: pulse or alsa on
// Linux, avfoundation on macOS. ffmpeg finalizes the WAV header on SIGINT.
type ffmpegBackend struct {
	format       string
	defaultInput string
	listDevices  func(ctx context.Context) (string, error)
}

func newFFMPEGLinuxBackend() Backend {
	return &ffmpegBackend{format: "pulse", defaultInput: "default", listDevices: listLinuxSources}
}

func newFFMPEGMacOSBackend() Backend {
	return &ffmpegBackend{format: "avfoundation", defaultInput: ":0", listDevices: listAVFoundationDevices}
}

func (b *ffmpegBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b *ffmpegBackend) Command(outputPath string, cfg Config) *exec.Cmd {
	format := cfg.Format
	if format == "" {
		format = b.format
	}
	input := cfg.Input
	if input == "" {
		input = b.defaultInput
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-f", format, "-i", input,
		"-ac", strconv.Itoa(defaultChannels(cfg.Channels)),
		"-ar", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
		"-c:a", "pcm_s16le",
		outputPath,
	}
	return exec.Command("ffmpeg", args...)
}

func (b *ffmpegBackend) ListDevices(ctx context.Context) (string, error) {
	return b.listDevices(ctx)
}

func listLinuxSources(ctx context.Context) (string, error) {
	var sections []string

	if commandAvailable("pactl") {
		if out, err := commandOutput(ctx, "pactl", "list", "short", "sources"); err == nil {
			sections = append(sections, "PulseAudio/PipeWire sources:\n"+out)
		} else {
			sections = append(sections, "PulseAudio/PipeWire sources: "+err.Error())
		}
	}

	if commandAvailable("arecord") {
		if out, err := commandOutput(ctx, "arecord", "-L"); err == nil {
			sections = append(sections, "ALSA devices:\n"+out)
		} else {
			sections = append(sections, "ALSA devices: "+err.Error())
		}
	}

	if len(sections) == 0 {
		return "", errors.New("no device listing command available")
	}

	return strings.Join(sections, "\n\n"), nil
}

func listAVFoundationDevices(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
	// ffmpeg exits non-zero after listing; the output is what matters.
	out, _ := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return "", fmt.Errorf("ffmpeg returned no device output")
	}
	return trimmed, nil
}
