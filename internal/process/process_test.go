package process

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitExit blocks until the handle reports Exited or the deadline passes.
func waitExit(t *testing.T, h *Handle, timeout time.Duration) State {
	t.Helper()
	select {
	case <-h.Done():
		return h.Poll()
	case <-time.After(timeout):
		t.Fatalf("process %s did not exit within %s", h.Name(), timeout)
		return State{}
	}
}

func TestSpawnAndExitCode(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCode int
	}{
		{"clean exit", []string{"sh", "-c", "exit 0"}, 0},
		{"nonzero exit", []string{"sh", "-c", "exit 7"}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Spawn("test", tt.argv, testLogger())
			if err != nil {
				t.Fatalf("Spawn() error: %v", err)
			}

			st := waitExit(t, h, 5*time.Second)
			if st.Status != StatusExited {
				t.Fatalf("status = %v, want exited", st.Status)
			}
			if st.ExitCode != tt.wantCode {
				t.Errorf("exit code = %d, want %d", st.ExitCode, tt.wantCode)
			}
		})
	}
}

func TestSpawnFailures(t *testing.T) {
	if _, err := Spawn("test", nil, testLogger()); err == nil {
		t.Error("Spawn() with empty argv should fail")
	}

	if _, err := Spawn("test", []string{"/nonexistent/binary"}, testLogger()); err == nil {
		t.Error("Spawn() with missing executable should fail")
	}
}

func TestPollWhileRunning(t *testing.T) {
	h, err := Spawn("test", []string{"sleep", "10"}, testLogger())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	defer h.Kill()

	if st := h.Poll(); st.Status != StatusRunning {
		t.Errorf("Poll() = %v, want running", st.Status)
	}
}

func TestTerminateStopsProcess(t *testing.T) {
	h, err := Spawn("test", []string{"sleep", "10"}, testLogger())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	h.Terminate()
	st := waitExit(t, h, 5*time.Second)
	if st.ExitCode == 0 {
		t.Error("terminated process reported clean exit")
	}
}

func TestTerminateAndKillIdempotentOnExited(t *testing.T) {
	h, err := Spawn("test", []string{"sh", "-c", "exit 0"}, testLogger())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	waitExit(t, h, 5*time.Second)

	// Must not error, panic, or block on an already-exited handle.
	done := make(chan struct{})
	go func() {
		h.Terminate()
		h.Terminate()
		h.Kill()
		h.Kill()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Terminate/Kill blocked on exited handle")
	}

	if st := h.Poll(); st.Status != StatusExited || st.ExitCode != 0 {
		t.Errorf("state changed after redundant cleanup: %+v", st)
	}
}

func TestKillStopsProcess(t *testing.T) {
	h, err := Spawn("test", []string{"sleep", "10"}, testLogger())
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}

	h.Kill()
	waitExit(t, h, 5*time.Second)
}

func TestOutputRelayedThroughParser(t *testing.T) {
	lines := make(chan string, 8)
	parser := func(line string) (string, string) {
		lines <- line
		return "info", line
	}

	h, err := Spawn("test", []string{"sh", "-c", "echo hello"}, testLogger(),
		WithOutputLogger(testLogger(), parser))
	if err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	waitExit(t, h, 5*time.Second)

	select {
	case line := <-lines:
		if line != "hello" {
			t.Errorf("parser saw %q, want %q", line, "hello")
		}
	default:
		t.Error("parser never saw process output")
	}
}
