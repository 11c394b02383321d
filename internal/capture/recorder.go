package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrNoBackendAvailable = errors.New("no recording backend available")

const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultWarmUp      = 300 * time.Millisecond
	DefaultStopTimeout = 5 * time.Second
)

// Config is the capture profile handed to every backend.
type Config struct {
	SampleRate int
	Channels   int
	Input      string
	Format     string
}

type Backend interface {
	Name() string
	Available() bool
	// Command builds the recorder invocation writing a 16-bit PCM WAV to outputPath.
	Command(outputPath string, cfg Config) *exec.Cmd
	ListDevices(ctx context.Context) (string, error)
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{newPipeWireBackend(), newALSARecorderBackend(), newSoxBackend(goos), newFFMPEGLinuxBackend()}
	case "darwin":
		return []Backend{newSoxBackend(goos), newFFMPEGMacOSBackend()}
	default:
		return nil
	}
}

// Recorder launches capture processes, falling back through its backends
// when one cannot be started.
type Recorder struct {
	Backends    []Backend
	Preferred   string
	Config      Config
	WarmUp      time.Duration
	StopTimeout time.Duration
	Logger      *zap.Logger
}

func NewRecorder(preferred string, cfg Config, logger *zap.Logger) (*Recorder, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	return &Recorder{
		Backends:    backends,
		Preferred:   preferred,
		Config:      cfg,
		WarmUp:      DefaultWarmUp,
		StopTimeout: DefaultStopTimeout,
		Logger:      logger,
	}, nil
}

// Start launches a recorder writing to outputPath and returns once the
// warm-up window has passed with the process still running.
func (r *Recorder) Start(ctx context.Context, outputPath string) (*Process, error) {
	if strings.TrimSpace(outputPath) == "" {
		return nil, &LaunchError{Err: errors.New("output path is required")}
	}

	ordered, err := orderBackends(r.Backends, r.Preferred)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}

	logger := r.logger()
	cfg := r.Config
	cfg.SampleRate = defaultSampleRate(cfg.SampleRate)
	cfg.Channels = defaultChannels(cfg.Channels)

	var errs []error
	tried := 0
	for _, backend := range ordered {
		if !backend.Available() {
			errs = append(errs, fmt.Errorf("%s: backend is not available", backend.Name()))
			continue
		}
		tried++

		proc, err := startProcess(ctx, backend.Name(), backend.Command(outputPath, cfg), outputPath, processOptions{
			warmUp:      r.WarmUp,
			stopTimeout: r.StopTimeout,
			logger:      logger,
		})
		if err == nil {
			logger.Debug("recorder running", zap.String("backend", backend.Name()), zap.Int("pid", proc.PID()), zap.String("output", outputPath))
			return proc, nil
		}

		if cleanupErr := removePartialRecording(outputPath); cleanupErr != nil {
			errs = append(errs, fmt.Errorf("%s: cleanup partial recording %q: %w", backend.Name(), outputPath, cleanupErr))
		}
		errs = append(errs, err)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Debug("recorder failed to start; trying next backend", zap.String("backend", backend.Name()), zap.Error(err))
	}

	if tried == 0 {
		return nil, &LaunchError{Err: fmt.Errorf("%w: %w", ErrNoBackendAvailable, errors.Join(errs...))}
	}

	return nil, &LaunchError{Err: fmt.Errorf("no recorder could be started: %w", errors.Join(errs...))}
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func orderBackends(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	preferredIndex := -1
	for i, backend := range backends {
		if backend.Name() == preferred {
			preferredIndex = i
			break
		}
	}
	if preferredIndex == -1 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	ordered := make([]Backend, 0, len(backends))
	ordered = append(ordered, backends[preferredIndex])
	for i, backend := range backends {
		if i == preferredIndex {
			continue
		}
		ordered = append(ordered, backend)
	}

	return ordered, nil
}

func removePartialRecording(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}

func defaultSampleRate(value int) int {
	if value <= 0 {
		return DefaultSampleRate
	}
	return value
}

func defaultChannels(value int) int {
	if value <= 0 {
		return DefaultChannels
	}
	return value
}
