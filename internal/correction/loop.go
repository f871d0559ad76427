package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"loom/internal/logging"
	"loom/internal/subtitles"
)

// ErrStopped reports that the operator aborted the correction loop.
var ErrStopped = errors.New("processing stopped by operator")

// Command is an operator decision while a run awaits correction.
type Command int

const (
	// RetryCombine re-runs synthesis against the edited artifacts.
	RetryCombine Command = iota + 1
	// StopProcessing aborts the run.
	StopProcessing
)

func (c Command) String() string {
	switch c {
	case RetryCombine:
		return "retry"
	case StopProcessing:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Pass is one synthesis attempt.
type Pass func(ctx context.Context) (subtitles.Output, error)

// Loop repeats a synthesis pass until it succeeds or the operator stops it.
type Loop struct {
	// Commands delivers operator decisions. A closed channel counts as stop
	// unless Watch is set.
	Commands <-chan Command
	// Notify is called with the problems each time the loop starts waiting.
	Notify func(records []subtitles.ParseErrorRecord)
	// Watch retries automatically when an offending artifact is rewritten.
	Watch  bool
	Logger *slog.Logger

	state string
}

// State returns the machine state after the last Run.
func (l *Loop) State() string {
	return l.state
}

// Run executes pass, pausing on parse errors. Failures other than a
// *subtitles.ParseError end the loop immediately. Without any command
// source a parse error is returned as-is.
func (l *Loop) Run(ctx context.Context, pass Pass) (subtitles.Output, error) {
	logger := logging.NewComponentLogger(logging.WithContext(ctx, l.Logger), "correction")
	machine := newMachine(logger)
	defer func() { l.state = machine.Current() }()

	for attempt := 1; ; attempt++ {
		out, err := pass(ctx)
		if err == nil {
			if err := machine.Event(ctx, EventComplete); err != nil {
				return out, err
			}
			return out, nil
		}
		var perr *subtitles.ParseError
		if !errors.As(err, &perr) {
			return out, err
		}
		if l.Commands == nil && !l.Watch {
			return out, err
		}
		if err := machine.Event(ctx, EventParseFailed); err != nil {
			return out, err
		}
		logger.Warn("synthesis paused for correction",
			logging.Int("attempt", attempt),
			logging.Int("problems", len(perr.Records)),
		)
		if l.Notify != nil {
			l.Notify(perr.Records)
		}

		cmd := l.await(ctx, logger, perr.Paths())
		if cmd != RetryCombine {
			if err := machine.Event(context.WithoutCancel(ctx), EventStop); err != nil {
				return subtitles.Output{}, err
			}
			return subtitles.Output{}, ErrStopped
		}
		if err := machine.Event(ctx, EventRetry); err != nil {
			return subtitles.Output{}, err
		}
		logger.Info("retrying synthesis", logging.Int("attempt", attempt+1))
	}
}

// await blocks until a command arrives. Cancellation and a closed command
// channel both resolve to StopProcessing.
func (l *Loop) await(ctx context.Context, logger *slog.Logger, paths []string) Command {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var watched chan Command
	if l.Watch && len(paths) > 0 {
		watched = make(chan Command, 1)
		go func() {
			if err := WatchArtifacts(waitCtx, paths, watched, logger); err != nil && waitCtx.Err() == nil {
				logging.WarnWithContext(logger, "artifact watch unavailable", "watch_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "corrections must be confirmed manually"),
				)
			}
		}()
	}

	commands := l.Commands
	for {
		if commands == nil && watched == nil {
			return StopProcessing
		}
		select {
		case <-ctx.Done():
			return StopProcessing
		case cmd, ok := <-commands:
			if !ok {
				// no operator input left; keep waiting on the watcher if there is one
				commands = nil
				if watched == nil {
					return StopProcessing
				}
				continue
			}
			return cmd
		case cmd := <-watched:
			logger.Info("artifact change detected")
			return cmd
		}
	}
}
