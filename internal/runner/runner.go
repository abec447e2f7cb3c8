// Package runner drives the lifecycle of one publish run: spawn the
// publisher, optionally spawn the player, poll until the publisher exits or
// the run is interrupted, then shut both down in order.
package runner

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/smazurov/streamcast/internal/events"
	"github.com/smazurov/streamcast/internal/ffmpeg"
	"github.com/smazurov/streamcast/internal/process"
	"github.com/smazurov/streamcast/internal/stream"
)

// Exit codes reported by Run.
const (
	// ExitOK is returned when the publisher exited cleanly or the run was
	// interrupted and shut down in order.
	ExitOK = 0
	// ExitLaunchFailure is returned when the publisher could not be
	// started.
	ExitLaunchFailure = 1
	// ExitInputNotFound is returned when the input file does not exist; no
	// process is spawned in that case.
	ExitInputNotFound = 2
)

// State of the run lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StatePublisherStarting State = "publisher_starting"
	StatePublisherRunning  State = "publisher_running"
	StatePlayerStarting    State = "player_starting"
	StatePlayerRunning     State = "player_running"
	StateShuttingDown      State = "shutting_down"
	StateTerminated        State = "terminated"
)

// Timing holds the pacing constants of the control loop. Threaded into the
// runner explicitly so tests can shrink them.
type Timing struct {
	// PlayerStartDelay gives the publisher time to announce its stream
	// before the player subscribes.
	PlayerStartDelay time.Duration
	// PollInterval paces the publisher liveness checks.
	PollInterval time.Duration
	// ShutdownGrace is how long children get between SIGTERM and SIGKILL.
	ShutdownGrace time.Duration
}

// DefaultTiming returns the production pacing constants.
func DefaultTiming() Timing {
	return Timing{
		PlayerStartDelay: time.Second,
		PollInterval:     500 * time.Millisecond,
		ShutdownGrace:    500 * time.Millisecond,
	}
}

// Config is everything a run needs, fixed before Run is called.
type Config struct {
	// FFmpeg and FFplay are resolved executable paths. FFplay may be
	// empty when Source.Play is false.
	FFmpeg string
	FFplay string

	Source          stream.Source
	PublishTarget   stream.Target
	SubscribeTarget stream.Target

	Timing Timing
}

// Runner owns the two process handles for the duration of a run. All handle
// access happens on the goroutine that calls Run; RequestRestart only hands
// work to that goroutine through a channel.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	bus    *events.Bus

	outLogger *slog.Logger
	outParser process.LogParser

	argsMu      sync.RWMutex
	publishArgs []string

	restart chan []string

	state     State
	publisher *process.Handle
	player    *process.Handle
}

// New creates a runner. bus may be nil when no subscriber cares about
// lifecycle events.
func New(cfg Config, logger *slog.Logger, bus *events.Bus) *Runner {
	return &Runner{
		cfg:         cfg,
		logger:      logger,
		bus:         bus,
		publishArgs: ffmpeg.BuildPublishArgs(cfg.FFmpeg, publishParams(cfg)),
		restart:     make(chan []string, 1),
		state:       StateIdle,
	}
}

func publishParams(cfg Config) ffmpeg.PublishParams {
	return ffmpeg.PublishParams{
		Input:     cfg.Source.File,
		OutputURL: cfg.PublishTarget.URL(),
		Reencode:  cfg.Source.Reencode,
		Loop:      cfg.Source.Loop,
	}
}

// SetOutputLogger routes child process output through logger, re-leveled by
// parser. Must be called before Run.
func (r *Runner) SetOutputLogger(logger *slog.Logger, parser process.LogParser) {
	r.outLogger = logger
	r.outParser = parser
}

// PublishArgs returns the publish command currently in effect. Safe to call
// from other goroutines (the config watcher compares against it).
func (r *Runner) PublishArgs() []string {
	r.argsMu.RLock()
	defer r.argsMu.RUnlock()
	return r.publishArgs
}

// RequestRestart asks the control loop to replace the publisher with one
// running argv. Non-blocking: a second request while one is pending is
// dropped.
func (r *Runner) RequestRestart(argv []string) {
	select {
	case r.restart <- argv:
		r.logger.Info("Publisher restart requested")
	default:
		r.logger.Warn("Restart already pending, ignoring")
	}
}

// Run executes the full lifecycle and returns the process exit code for the
// run. Cancelling ctx interrupts the polling loop within one poll interval;
// the shutdown sequence runs exactly once on every path that spawned a
// process.
func (r *Runner) Run(ctx context.Context) int {
	r.setState(StatePublisherStarting)

	if _, err := os.Stat(r.cfg.Source.File); err != nil {
		r.logger.Error("Input file not found", "file", r.cfg.Source.File)
		r.setState(StateTerminated)
		return ExitInputNotFound
	}

	if !r.startPublisher(r.PublishArgs()) {
		r.setState(StateTerminated)
		return ExitLaunchFailure
	}
	r.setState(StatePublisherRunning)

	interrupted := false
	exitCode := ExitOK

	if r.cfg.Source.Play {
		// Give the publisher time to announce itself before the player
		// subscribes.
		if sleepCtx(ctx, r.cfg.Timing.PlayerStartDelay) {
			r.startPlayer()
		} else {
			interrupted = true
		}
	}

	if !interrupted {
		exitCode, interrupted = r.pollPublisher(ctx)
	}

	r.shutdown()
	r.setState(StateTerminated)

	if interrupted {
		return ExitOK
	}
	return exitCode
}

// startPublisher spawns the publisher. A launch failure here aborts the run.
func (r *Runner) startPublisher(argv []string) bool {
	r.logger.Info("Starting publisher", "command", ffmpeg.CommandString(argv))

	h, err := process.Spawn("publisher", argv, r.logger, r.spawnOpts()...)
	if err != nil {
		r.logger.Error("Failed to start publisher", "error", err)
		return false
	}

	r.publisher = h
	r.publish(events.ProcessStartedEvent{
		Role:    "publisher",
		PID:     h.PID(),
		Command: ffmpeg.CommandString(argv),
	})
	return true
}

// startPlayer spawns the player. The player is best-effort: a launch failure
// is logged and the publisher keeps running.
func (r *Runner) startPlayer() {
	r.setState(StatePlayerStarting)

	argv := ffmpeg.BuildPlayArgs(r.cfg.FFplay, r.cfg.SubscribeTarget.URL())
	r.logger.Info("Starting player", "command", ffmpeg.CommandString(argv))

	h, err := process.Spawn("player", argv, r.logger, r.spawnOpts()...)
	if err != nil {
		r.logger.Warn("Failed to start player, continuing without playback", "error", err)
		r.setState(StatePublisherRunning)
		return
	}

	r.player = h
	r.publish(events.ProcessStartedEvent{
		Role:    "player",
		PID:     h.PID(),
		Command: ffmpeg.CommandString(argv),
	})
	r.setState(StatePlayerRunning)
}

// pollPublisher checks publisher liveness at a fixed interval until it exits
// or ctx is cancelled. Returns the publisher's exit code and whether the
// loop ended because of an interrupt.
func (r *Runner) pollPublisher(ctx context.Context) (int, bool) {
	ticker := time.NewTicker(r.cfg.Timing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Interrupted, terminating child processes")
			return ExitOK, true

		case argv := <-r.restart:
			r.restartPublisher(argv)

		case <-ticker.C:
			if st := r.publisher.Poll(); st.Status == process.StatusExited {
				r.logger.Info("Publisher exited", "exit_code", st.ExitCode)
				r.publish(events.ProcessExitedEvent{Role: "publisher", ExitCode: st.ExitCode})
				return st.ExitCode, false
			}
		}
	}
}

// restartPublisher replaces the running publisher with one running argv,
// escalating on the old handle the same way shutdown does. The player is
// left alone. If the new publisher fails to launch the old handle is already
// gone and the next poll ends the run.
func (r *Runner) restartPublisher(argv []string) {
	r.logger.Info("Restarting publisher", "command", ffmpeg.CommandString(argv))

	old := r.publisher
	old.Terminate()
	time.Sleep(r.cfg.Timing.ShutdownGrace)
	if old.Poll().Status == process.StatusRunning {
		old.Kill()
	}

	r.argsMu.Lock()
	r.publishArgs = argv
	r.argsMu.Unlock()

	if !r.startPublisher(argv) {
		r.logger.Error("Publisher restart failed")
	}
}

// shutdown terminates both children, player first so no playback outlives
// its source, then force-kills whatever is still running after the grace
// period. It always walks both handles even when the publisher exited on
// its own: Terminate and Kill are no-ops on exited handles, and a dead
// publisher can still leave an orphaned player behind.
func (r *Runner) shutdown() {
	r.setState(StateShuttingDown)

	handles := []*process.Handle{r.player, r.publisher}

	for _, h := range handles {
		if h != nil {
			h.Terminate()
		}
	}

	time.Sleep(r.cfg.Timing.ShutdownGrace)

	for _, h := range handles {
		if h != nil && h.Poll().Status == process.StatusRunning {
			h.Kill()
		}
	}
}

func (r *Runner) spawnOpts() []process.Option {
	if r.outLogger == nil {
		return nil
	}
	return []process.Option{process.WithOutputLogger(r.outLogger, r.outParser)}
}

func (r *Runner) setState(next State) {
	prev := r.state
	r.state = next
	r.logger.Debug("Run state changed", "from", string(prev), "to", string(next))
	r.publish(events.RunStateChangedEvent{From: string(prev), To: string(next)})
}

func (r *Runner) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first. Reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
