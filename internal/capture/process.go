package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LaunchError means the recorder never reached a running state: the binary
// is missing, could not be executed, or exited during warm-up.
type LaunchError struct {
	Backend string
	Err     error
}

func (e *LaunchError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("start recorder: %v", e.Err)
	}
	return fmt.Sprintf("start recorder %s: %v", e.Backend, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// RuntimeError means the recorder exited without being asked to.
type RuntimeError struct {
	Backend     string
	PartialPath string
	Err         error
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("recorder %s exited unexpectedly: %v", e.Backend, e.Err)
	if e.PartialPath != "" {
		msg += fmt.Sprintf(" (partial audio at %s)", e.PartialPath)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

type Outcome int

const (
	// OutcomeGraceful: the recorder exited on its own after the interrupt.
	OutcomeGraceful Outcome = iota
	// OutcomeForced: the recorder ignored the interrupt and was killed.
	OutcomeForced
	// OutcomeExited: the recorder was already gone when stop was requested.
	OutcomeExited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGraceful:
		return "graceful"
	case OutcomeForced:
		return "forced"
	case OutcomeExited:
		return "exited"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Completion struct {
	Outcome Outcome
	Elapsed time.Duration
}

func (c Completion) Graceful() bool { return c.Outcome == OutcomeGraceful }

type processOptions struct {
	warmUp      time.Duration
	stopTimeout time.Duration
	logger      *zap.Logger
}

// Process is a running recorder. Process exit is the only signal that the
// output file is complete.
type Process struct {
	backend     string
	path        string
	cmd         *exec.Cmd
	stopTimeout time.Duration
	logger      *zap.Logger
	startedAt   time.Time
	stderr      *tailBuffer

	done chan struct{}
	err  error

	mu            sync.Mutex
	stopRequested bool

	stopOnce   sync.Once
	completion Completion
}

func startProcess(ctx context.Context, backend string, cmd *exec.Cmd, path string, opts processOptions) (*Process, error) {
	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
	if opts.stopTimeout <= 0 {
		opts.stopTimeout = DefaultStopTimeout
	}

	stderr := newTailBuffer(2048)
	cmd.Stdout = stderr
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Backend: backend, Err: err}
	}

	p := &Process{
		backend:     backend,
		path:        path,
		cmd:         cmd,
		stopTimeout: opts.stopTimeout,
		logger:      opts.logger,
		startedAt:   time.Now(),
		stderr:      stderr,
		done:        make(chan struct{}),
	}
	go p.wait()

	if opts.warmUp <= 0 {
		return p, nil
	}

	timer := time.NewTimer(opts.warmUp)
	defer timer.Stop()

	select {
	case <-p.done:
		cause := p.err
		var runtimeErr *RuntimeError
		if errors.As(cause, &runtimeErr) {
			cause = runtimeErr.Err
		}
		return nil, &LaunchError{Backend: backend, Err: fmt.Errorf("exited during warm-up: %w", cause)}
	case <-ctx.Done():
		p.Stop(context.Background())
		return nil, ctx.Err()
	case <-timer.C:
		return p, nil
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	stopping := p.stopRequested
	p.mu.Unlock()

	if stopping {
		if err != nil {
			p.logger.Debug("recording process exited after stop signal", zap.String("backend", p.backend), zap.Error(err))
		}
	} else {
		if err == nil {
			err = errors.New("exit status 0")
		}
		if tail := p.stderr.String(); tail != "" {
			err = fmt.Errorf("%w (%s)", err, tail)
		}
		partial := ""
		if info, statErr := os.Stat(p.path); statErr == nil && info.Mode().IsRegular() {
			partial = p.path
		}
		p.err = &RuntimeError{Backend: p.backend, PartialPath: partial, Err: err}
	}

	close(p.done)
}

func (p *Process) Backend() string { return p.backend }

func (p *Process) Path() string { return p.path }

func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed once the recorder process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err reports an unrequested exit. It is nil while running and after a
// requested stop.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Stop interrupts the recorder, waits up to the stop timeout for it to
// finish the file, and kills it otherwise. Cancelling ctx skips the
// remaining wait. Later calls return the first result.
func (p *Process) Stop(ctx context.Context) Completion {
	p.stopOnce.Do(func() {
		p.completion = p.stop(ctx)
		p.completion.Elapsed = time.Since(p.startedAt)
	})
	return p.completion
}

func (p *Process) stop(ctx context.Context) Completion {
	select {
	case <-p.done:
		return Completion{Outcome: OutcomeExited}
	default:
	}

	p.mu.Lock()
	p.stopRequested = true
	p.mu.Unlock()

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		p.logger.Debug("interrupt recorder failed", zap.String("backend", p.backend), zap.Error(err))
	}

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return Completion{Outcome: OutcomeGraceful}
	case <-timer.C:
		p.logger.Warn("recorder ignored interrupt; killing", zap.String("backend", p.backend), zap.Duration("timeout", p.stopTimeout))
	case <-ctx.Done():
		p.logger.Debug("stop cancelled; killing recorder", zap.String("backend", p.backend))
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("kill recorder failed", zap.String("backend", p.backend), zap.Error(err))
	}
	<-p.done
	return Completion{Outcome: OutcomeForced}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
