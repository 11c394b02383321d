package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/capture"
	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/config"
	"github.com/fmueller/voxnote/internal/history"
	"github.com/fmueller/voxnote/internal/logging"
	"github.com/fmueller/voxnote/internal/platform"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/fmueller/voxnote/internal/store"
	"github.com/fmueller/voxnote/internal/transcribe"
	"github.com/fmueller/voxnote/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// flagValues holds raw flag input. Values only win over the config file
// and environment when the flag was set explicitly.
type flagValues struct {
	storeDir    string
	endpoint    string
	model       string
	language    string
	backend     string
	input       string
	inputFormat string
	silenceGate bool
	silenceDBFS float64
}

type appState struct {
	configPath string
	verbose    bool
	jsonLogs   bool
	noProgress bool
	copyEmpty  bool
	duration   time.Duration
	immediate  bool
	flags      flagValues

	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	stdin  *bufio.Reader

	isTerminalFn     func() bool
	newCapturerFn    func(cfg config.Config) (session.Capturer, error)
	newTranscriberFn func(cfg config.Config) session.Transcriber
	copyFn           func(ctx context.Context, value string) error

	store *store.Store
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	cfg := config.Default()
	return &appState{
		cfg: cfg,
		now: time.Now,
		in:  os.Stdin,
		flags: flagValues{
			backend:     cfg.Backend,
			silenceGate: cfg.SilenceGate,
			silenceDBFS: cfg.SilenceDBFS,
		},
	}
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voxnote",
		Short:         "Record voice notes, transcribe them and keep a browsable history",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runDefault(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	bindRecordingBackendFlags(cmd, app)
	bindCopyAndSilenceFlags(cmd, app)
	cmd.Flags().DurationVar(&app.duration, "duration", 0, "Record duration, e.g. 10s; 0 means interactive start/stop")
	cmd.Flags().BoolVar(&app.immediate, "immediate", false, "Start recording immediately without waiting for Enter")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newRetryCmd(app))
	cmd.AddCommand(newCopyCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/voxnote/config.toml)")
	flags.StringVar(&app.flags.storeDir, "store-dir", "", "Directory holding recordings")
	flags.BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", false, "Disable progress indicators")
}

func bindTranscriptionFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.flags.endpoint, "endpoint", "", "OpenAI-compatible API base URL (default "+config.DefaultEndpoint+")")
	flags.StringVar(&app.flags.model, "model", "", "Transcription model (default "+config.DefaultModel+")")
	flags.StringVar(&app.flags.language, "language", "", "Language code (auto|en|de|...) for transcription")
}

func bindRecordingBackendFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.flags.backend, "backend", app.flags.backend, "Recording backend: auto|sox|pw-record|arecord|ffmpeg")
	cmd.Flags().StringVar(&app.flags.input, "input", "", "Input device (run \"voxnote devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	cmd.Flags().StringVar(&app.flags.inputFormat, "input-format", "", "Input format for ffmpeg backend (pulse|alsa|avfoundation)")
}

func bindCopyAndSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.copyEmpty, "copy-empty", false, "Copy blank transcripts to clipboard")
	cmd.Flags().BoolVar(&app.flags.silenceGate, "silence-gate", app.flags.silenceGate, "Detect near-silent WAV audio and skip transcription")
	cmd.Flags().Float64Var(&app.flags.silenceDBFS, "silence-threshold-dbfs", app.flags.silenceDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) prepare(cmd *cobra.Command) error {
	if a.out == nil {
		a.out = cmd.OutOrStdout()
	}
	if a.errOut == nil {
		a.errOut = cmd.ErrOrStderr()
	}

	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	path, err := platform.ResolveConfigPath(a.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.applyFlagOverrides(cmd)

	a.log().Debug("configuration loaded", zap.String("config", path), zap.String("endpoint", a.cfg.Endpoint), zap.String("model", a.cfg.Model))
	return nil
}

func (a *appState) applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}

	set("store-dir", func() { a.cfg.StoreDir = a.flags.storeDir })
	set("endpoint", func() { a.cfg.Endpoint = a.flags.endpoint })
	set("model", func() { a.cfg.Model = a.flags.model })
	set("language", func() { a.cfg.Language = a.flags.language })
	set("backend", func() { a.cfg.Backend = a.flags.backend })
	set("input", func() { a.cfg.Input = a.flags.input })
	set("input-format", func() { a.cfg.InputFormat = a.flags.inputFormat })
	set("silence-gate", func() { a.cfg.SilenceGate = a.flags.silenceGate })
	set("silence-threshold-dbfs", func() { a.cfg.SilenceDBFS = a.flags.silenceDBFS })
}

func (a *appState) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	dir, err := platform.ResolveStoreDir(a.cfg.StoreDir)
	if err != nil {
		return nil, err
	}
	st, err := store.New(dir, a.log())
	if err != nil {
		return nil, fmt.Errorf("open recording store: %w", err)
	}
	a.store = st
	return st, nil
}

func (a *appState) browser() (*history.Browser, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return history.New(st, a.log()), nil
}

func (a *appState) transcriber() session.Transcriber {
	if a.newTranscriberFn != nil {
		return a.newTranscriberFn(a.cfg)
	}
	return transcribe.New(transcribe.Options{
		APIKey:   a.cfg.APIKey,
		Endpoint: a.cfg.Endpoint,
		Model:    a.cfg.Model,
		Language: a.cfg.Language,
		Timeout:  a.cfg.RequestTimeout,
		Logger:   a.log(),
	})
}

func (a *appState) capturer() (session.Capturer, error) {
	if a.newCapturerFn != nil {
		return a.newCapturerFn(a.cfg)
	}

	recorder, err := capture.NewRecorder(a.cfg.Backend, capture.Config{
		SampleRate: capture.DefaultSampleRate,
		Channels:   capture.DefaultChannels,
		Input:      a.cfg.Input,
		Format:     a.cfg.InputFormat,
	}, a.log())
	if err != nil {
		return nil, err
	}
	recorder.WarmUp = a.cfg.WarmUp
	recorder.StopTimeout = a.cfg.StopTimeout
	return session.FromRecorder(recorder), nil
}

// controller builds the single session controller this process uses.
func (a *appState) controller(withCapture bool) (*session.Controller, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		Store:       st,
		Transcriber: a.transcriber(),
		Logger:      a.log(),
	}
	if a.cfg.SilenceGate {
		opts.Gate = a.silenceGate
	}
	if withCapture {
		capturer, err := a.capturer()
		if err != nil {
			return nil, err
		}
		opts.Capturer = capturer
	}
	return session.New(opts)
}

func (a *appState) silenceGate(audioPath string) (bool, error) {
	silent, metrics, err := audio.IsSilentWAV(audioPath, a.cfg.SilenceDBFS)
	if err != nil {
		return false, err
	}
	if silent {
		a.log().Info(
			"audio considered silent; skipping transcription",
			zap.String("audio", audioPath),
			zap.Float64("rms_dbfs", metrics.RMSdBFS),
			zap.Float64("peak_dbfs", metrics.PeakdBFS),
			zap.Float64("threshold_dbfs", a.cfg.SilenceDBFS),
		)
	}
	return silent, nil
}

func (a *appState) copyText(ctx context.Context, value string) error {
	if a.copyFn != nil {
		return a.copyFn(ctx, value)
	}
	return clipboard.CopyText(ctx, value)
}

func (a *appState) log() *zap.Logger {
	return logging.OrNop(a.logger)
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) interactive() bool {
	if a.isTerminalFn != nil {
		return a.isTerminalFn()
	}
	f, ok := a.in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) errWriter() io.Writer {
	if a.errOut == nil {
		return os.Stderr
	}
	return a.errOut
}

func (a *appState) reader() *bufio.Reader {
	if a.stdin == nil {
		in := a.in
		if in == nil {
			in = os.Stdin
		}
		a.stdin = bufio.NewReader(in)
	}
	return a.stdin
}

func unsupportedOS() error {
	return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
}
