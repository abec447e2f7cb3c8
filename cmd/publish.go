package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/smazurov/streamcast/internal/config"
	"github.com/smazurov/streamcast/internal/events"
	"github.com/smazurov/streamcast/internal/ffmpeg"
	"github.com/smazurov/streamcast/internal/logging"
	"github.com/smazurov/streamcast/internal/runner"
	"github.com/smazurov/streamcast/internal/stream"
	"github.com/spf13/cobra"
)

// Options is the flat configuration surface. Precedence is CLI flags > env
// vars > TOML file, applied by config.LoadConfig.
type Options struct {
	Config string

	Host     string `toml:"stream.host" env:"HOST"`
	PubPort  int    `toml:"stream.pub_port" env:"PUB_PORT"`
	SubPort  int    `toml:"stream.sub_port" env:"SUB_PORT"`
	Topic    string `toml:"stream.topic" env:"TOPIC"`
	File     string `toml:"stream.file" env:"FILE"`
	Reencode bool   `toml:"stream.reencode" env:"REENCODE"`
	NoLoop   bool   `toml:"stream.no_loop" env:"NO_LOOP"`
	Play     bool   `toml:"stream.play" env:"PLAY"`
	Watch    bool

	LogLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LogFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
}

// CreatePublishCmd creates the root command: publish a local media file to
// an RTSP server and optionally play it back.
func CreatePublishCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "streamcast",
		Short: "Publish a local media file to an RTSP server",
		Long: `Publishes a local media file as a continuous RTSP stream using the ` +
			`system ffmpeg, and optionally spawns ffplay to subscribe and view it. ` +
			`Intended for exercising an RTSP server under test.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			os.Exit(runPublish(c, opts))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Config, "config", "config.toml", "Path to configuration file")
	flags.StringVar(&opts.Host, "host", "127.0.0.1", "RTSP server host to publish to")
	flags.IntVar(&opts.PubPort, "pub-port", 9191, "RTSP publisher port")
	flags.IntVar(&opts.SubPort, "sub-port", 9192, "RTSP subscriber port used by the player")
	flags.StringVar(&opts.Topic, "topic", "topic1", "Topic name (path) to publish to")
	flags.StringVar(&opts.File, "file", "testdata/sample.mp4", "Media file to stream")
	flags.BoolVar(&opts.Reencode, "reencode", false, "Force re-encoding (libx264/aac) instead of stream copy")
	flags.BoolVar(&opts.NoLoop, "no-loop", false, "Do not loop the input file")
	flags.BoolVar(&opts.Play, "play", false, "Also start ffplay to subscribe and view the stream")
	flags.BoolVar(&opts.Watch, "watch", false, "Watch the config file and restart the publisher on changes")
	flags.StringVar(&opts.LogLevel, "log-level", "info", "Global logging level (debug, info, warn, error)")
	flags.StringVar(&opts.LogFormat, "log-format", "text", "Logging format (text, json)")

	return cmd
}

func runPublish(c *cobra.Command, opts *Options) int {
	if err := config.LoadConfig(opts, c); err != nil {
		// Flag defaults still apply; report and keep going.
		logging.GetLogger("main").Warn("Failed to load config", "error", err)
	}

	loggingConfig := config.LoadLoggingConfig(opts.Config)
	loggingConfig.Level = opts.LogLevel
	loggingConfig.Format = opts.LogFormat
	logging.Initialize(loggingConfig)

	logger := logging.GetLogger("main")

	// Both executables must resolve before anything is spawned.
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		logger.Error("ffmpeg not found in PATH; please install ffmpeg")
		return runner.ExitLaunchFailure
	}
	var ffplayPath string
	if opts.Play {
		ffplayPath, err = exec.LookPath("ffplay")
		if err != nil {
			logger.Error("ffplay not found in PATH; please install ffmpeg")
			return runner.ExitLaunchFailure
		}
	}

	cfg := runner.Config{
		FFmpeg: ffmpegPath,
		FFplay: ffplayPath,
		Source: stream.Source{
			File:     opts.File,
			Reencode: opts.Reencode,
			Loop:     !opts.NoLoop,
			Play:     opts.Play,
		},
		PublishTarget:   stream.Target{Host: opts.Host, Port: opts.PubPort, Topic: opts.Topic},
		SubscribeTarget: stream.Target{Host: opts.Host, Port: opts.SubPort, Topic: opts.Topic},
		Timing:          runner.DefaultTiming(),
	}

	bus := events.New()
	summary := newRunSummary(bus)
	defer summary.unsubscribe()

	r := runner.New(cfg, logging.GetLogger("runner"), bus)
	r.SetOutputLogger(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)

	if opts.Watch {
		watcher, err := watchConfig(opts, ffmpegPath, r, logger)
		if err != nil {
			logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := r.Run(ctx)
	summary.log(logger, code)
	return code
}

// watchConfig restarts the publisher when a config file change yields a
// different publish command. Reloads start from the values resolved at
// startup, so file edits take effect even for settings that flags set
// initially.
func watchConfig(
	opts *Options,
	ffmpegPath string,
	r *runner.Runner,
	logger *slog.Logger,
) (*config.Watcher[*Options], error) {
	loader := func(path string) (*Options, error) {
		fresh := *opts
		fresh.Config = path
		if err := config.LoadConfig(&fresh, nil); err != nil {
			return nil, err
		}
		return &fresh, nil
	}

	watcher := config.NewConfigWatcher(opts.Config, loader, logger)
	watcher.OnReload(func(fresh *Options) {
		args := ffmpeg.BuildPublishArgs(ffmpegPath, ffmpeg.PublishParams{
			Input:     fresh.File,
			OutputURL: stream.Target{Host: fresh.Host, Port: fresh.PubPort, Topic: fresh.Topic}.URL(),
			Reencode:  fresh.Reencode,
			Loop:      !fresh.NoLoop,
		})
		if slices.Equal(args, r.PublishArgs()) {
			logger.Debug("Config reloaded, publish command unchanged")
			return
		}
		logger.Info("Publish command changed, requesting restart")
		r.RequestRestart(args)
	})

	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher, nil
}

// runSummary collects lifecycle events for the end-of-run report.
type runSummary struct {
	start       time.Time
	processes   chan events.ProcessStartedEvent
	unsubscribe func()
}

func newRunSummary(bus *events.Bus) *runSummary {
	s := &runSummary{
		start:     time.Now(),
		processes: make(chan events.ProcessStartedEvent, 8),
	}
	s.unsubscribe = bus.Subscribe(func(e events.ProcessStartedEvent) {
		select {
		case s.processes <- e:
		default:
		}
	})
	return s
}

func (s *runSummary) log(logger *slog.Logger, code int) {
	spawned := 0
	for {
		select {
		case <-s.processes:
			spawned++
		default:
			logger.Info("Run complete",
				"exit_code", code,
				"processes_spawned", spawned,
				"duration", time.Since(s.start).Round(time.Millisecond).String(),
			)
			return
		}
	}
}
