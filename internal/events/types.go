// Package events is the in-process event bus for run lifecycle events.
package events

// Event type constants for kelindar/event.
const (
	TypeRunStateChanged uint32 = iota + 1
	TypeProcessStarted
	TypeProcessExited
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStateChangedEvent marks a transition of the run state machine.
type RunStateChangedEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Type returns the event type identifier for RunStateChangedEvent.
func (e RunStateChangedEvent) Type() uint32 { return TypeRunStateChanged }

// ProcessStartedEvent is published after a child process has been spawned.
type ProcessStartedEvent struct {
	Role    string `json:"role"`
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessExitedEvent is published when a child process is observed to have
// exited.
type ProcessExitedEvent struct {
	Role     string `json:"role"`
	ExitCode int    `json:"exit_code"`
}

// Type returns the event type identifier for ProcessExitedEvent.
func (e ProcessExitedEvent) Type() uint32 { return TypeProcessExited }
