package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamagate/internal/admission"
	"llamagate/internal/config"
	"llamagate/internal/engine"
	"llamagate/internal/health"
	"llamagate/internal/httpapi"
	"llamagate/internal/registry"
	"llamagate/internal/tokenest"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	addr          string
	modelsDir     string
	model         string
	configPath    string
	contextWindow int
	genFloor      int
	queueDepth    int
	concurrency   int
	maxQueueWait  time.Duration
	failureGrace  time.Duration
	threads       int
	maxBodyBytes  int64
	logLevel      string
	logFormat     string
	corsEnabled   bool
	corsOrigins   string
}

func newRootCmd() *cobra.Command {
	var opt options
	cmd := &cobra.Command{
		Use:           "llamagate",
		Short:         "HTTP gateway for a single llama.cpp inference engine with admission control",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opt)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opt.addr, "addr", envStr("LLAMAGATE_ADDR", ":8080"), "HTTP listen address")
	f.StringVar(&opt.modelsDir, "models-dir", envStr("LLAMAGATE_MODELS_DIR", "models"), "Directory the artifact stager deposits *.gguf files into")
	f.StringVar(&opt.model, "model", envStr("LLAMAGATE_MODEL", ""), "Model artifact name (empty picks the most recently staged)")
	f.StringVar(&opt.configPath, "config", envStr("LLAMAGATE_CONFIG", ""), "Optional config file (.yaml/.json/.toml); flags win over file values")
	f.IntVar(&opt.contextWindow, "context-window", envInt("LLAMAGATE_CONTEXT_WINDOW", 1024), "Context window in tokens (prompt + generation)")
	f.IntVar(&opt.genFloor, "gen-floor", envInt("LLAMAGATE_GEN_FLOOR", 1), "Minimum generation budget for a viable request")
	f.IntVar(&opt.queueDepth, "queue-depth", envInt("LLAMAGATE_QUEUE_DEPTH", 5), "Bounded queue depth beyond executing requests")
	f.IntVar(&opt.concurrency, "concurrency", envInt("LLAMAGATE_CONCURRENCY", 1), "Generation slot pool size (one per GPU slot)")
	f.DurationVar(&opt.maxQueueWait, "max-queue-wait", envDur("LLAMAGATE_MAX_QUEUE_WAIT", 25*time.Second), "Longest a queued request may wait before timing out")
	f.DurationVar(&opt.failureGrace, "failure-grace", envDur("LLAMAGATE_FAILURE_GRACE", 30*time.Second), "How long a failed engine stays live before the orchestrator is told to restart")
	f.IntVar(&opt.threads, "threads", envInt("LLAMAGATE_THREADS", 0), "CPU threads for the engine (0 = runtime default)")
	f.Int64Var(&opt.maxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size (0 = 1MiB default)")
	f.StringVar(&opt.logLevel, "log-level", envStr("LLAMAGATE_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringVar(&opt.logFormat, "log-format", envStr("LLAMAGATE_LOG_FORMAT", "console"), "Log format: console|json")
	f.BoolVar(&opt.corsEnabled, "cors", false, "Enable CORS middleware")
	f.StringVar(&opt.corsOrigins, "cors-origins", "*", "Comma-separated allowed CORS origins")
	return cmd
}

func run(cmd *cobra.Command, opt options) error {
	if opt.configPath != "" {
		fileCfg, err := config.Load(opt.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFileConfig(cmd, &opt, fileCfg)
	}

	logger := newLogger(opt.logLevel, opt.logFormat)
	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(opt.maxBodyBytes)
	httpapi.SetCORSOptions(opt.corsEnabled, splitCSV(opt.corsOrigins),
		[]string{"GET", "POST", "OPTIONS"}, []string{"Accept", "Content-Type"})

	modelPath, err := registry.Resolve(opt.modelsDir, opt.model)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}

	eng := engine.NewLlama(opt.contextWindow, opt.threads)
	slot := engine.NewSlot(eng, modelPath)
	ctrl := admission.New(admission.Config{
		Window:       opt.contextWindow,
		GenFloor:     opt.genFloor,
		QueueDepth:   opt.queueDepth,
		Concurrency:  opt.concurrency,
		MaxQueueWait: opt.maxQueueWait,
	}, tokenest.NewHeuristic(), slot)
	probe := health.NewTracker(slot, ctrl, opt.failureGrace)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	// Load in the background so probes answer during the bootstrap phase.
	go func() {
		logger.Info().Str("model", modelPath).Msg("loading model")
		start := time.Now()
		if err := slot.Load(baseCtx); err != nil {
			logger.Error().Err(err).Msg("model load failed")
			return
		}
		logger.Info().Dur("took", time.Since(start)).Msg("model ready")
	}()

	mux := httpapi.NewMux(ctrl, probe, slot)
	srv := &http.Server{Addr: opt.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", opt.addr).Str("model", modelPath).Msg("llamagate listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
		return err
	}
	return nil
}

// applyFileConfig fills options from the config file for flags the user did
// not set explicitly. Flag and env values keep precedence.
func applyFileConfig(cmd *cobra.Command, opt *options, cfg config.Config) {
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if cfg.Addr != "" && !changed("addr") && os.Getenv("LLAMAGATE_ADDR") == "" {
		opt.addr = cfg.Addr
	}
	if cfg.ModelsDir != "" && !changed("models-dir") && os.Getenv("LLAMAGATE_MODELS_DIR") == "" {
		opt.modelsDir = cfg.ModelsDir
	}
	if cfg.Model != "" && !changed("model") && os.Getenv("LLAMAGATE_MODEL") == "" {
		opt.model = cfg.Model
	}
	if cfg.ContextWindow > 0 && !changed("context-window") && os.Getenv("LLAMAGATE_CONTEXT_WINDOW") == "" {
		opt.contextWindow = cfg.ContextWindow
	}
	if cfg.GenFloor > 0 && !changed("gen-floor") && os.Getenv("LLAMAGATE_GEN_FLOOR") == "" {
		opt.genFloor = cfg.GenFloor
	}
	if cfg.QueueDepth > 0 && !changed("queue-depth") && os.Getenv("LLAMAGATE_QUEUE_DEPTH") == "" {
		opt.queueDepth = cfg.QueueDepth
	}
	if cfg.Concurrency > 0 && !changed("concurrency") && os.Getenv("LLAMAGATE_CONCURRENCY") == "" {
		opt.concurrency = cfg.Concurrency
	}
	if cfg.MaxQueueWaitMS > 0 && !changed("max-queue-wait") && os.Getenv("LLAMAGATE_MAX_QUEUE_WAIT") == "" {
		opt.maxQueueWait = time.Duration(cfg.MaxQueueWaitMS) * time.Millisecond
	}
	if cfg.Threads > 0 && !changed("threads") && os.Getenv("LLAMAGATE_THREADS") == "" {
		opt.threads = cfg.Threads
	}
	if cfg.MaxBodyBytes > 0 && !changed("max-body-bytes") {
		opt.maxBodyBytes = cfg.MaxBodyBytes
	}
	if cfg.LogLevel != "" && !changed("log-level") && os.Getenv("LLAMAGATE_LOG_LEVEL") == "" {
		opt.logLevel = cfg.LogLevel
	}
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
