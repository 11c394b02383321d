package capture

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
)

// soxBackend records from the default input with sox's -d device, the way
// the launcher plugin did.
type soxBackend struct {
	goos string
}

func newSoxBackend(goos string) Backend {
	return &soxBackend{goos: goos}
}

func (b *soxBackend) Name() string {
	return "sox"
}

func (b *soxBackend) Available() bool {
	return commandAvailable("sox")
}

func (b *soxBackend) Command(outputPath string, cfg Config) *exec.Cmd {
	args := []string{"-q"}
	if cfg.Input != "" {
		driver := cfg.Format
		if driver == "" {
			driver = b.driver()
		}
		args = append(args, "-t", driver, cfg.Input)
	} else {
		args = append(args, "-d")
	}
	args = append(args,
		"-r", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
		"-c", strconv.Itoa(defaultChannels(cfg.Channels)),
		"-b", "16",
		"-e", "signed-integer",
		outputPath,
	)
	return exec.Command("sox", args...)
}

func (b *soxBackend) ListDevices(ctx context.Context) (string, error) {
	if b.goos == "linux" && commandAvailable("arecord") {
		return commandOutput(ctx, "arecord", "-L")
	}
	return "", errors.New("sox cannot list devices; pass --input with a device name from the system sound settings")
}

func (b *soxBackend) driver() string {
	if b.goos == "darwin" {
		return "coreaudio"
	}
	return "alsa"
}
