package correction

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"

	"loom/internal/logging"
)

const (
	StateRunning            = "running"
	StateAwaitingCorrection = "awaiting_correction"
	StateAborted            = "aborted"
	StateCompleted          = "completed"

	EventParseFailed = "parse_failed"
	EventRetry       = "retry"
	EventStop        = "stop"
	EventComplete    = "complete"
)

func newMachine(logger *slog.Logger) *fsm.FSM {
	if logger == nil {
		logger = logging.NewNop()
	}
	return fsm.NewFSM(
		StateRunning,
		fsm.Events{
			{Name: EventParseFailed, Src: []string{StateRunning}, Dst: StateAwaitingCorrection},
			{Name: EventRetry, Src: []string{StateAwaitingCorrection}, Dst: StateRunning},
			{Name: EventStop, Src: []string{StateRunning, StateAwaitingCorrection}, Dst: StateAborted},
			{Name: EventComplete, Src: []string{StateRunning}, Dst: StateCompleted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("correction state changed",
					logging.String("event", e.Event),
					logging.String("from", e.Src),
					logging.String("to", e.Dst),
				)
			},
		},
	)
}
