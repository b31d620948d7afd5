package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a command's context on SIGINT or SIGTERM and
// tells the user what happens to unsynced work.
type InterruptHandler struct {
	writer      io.Writer
	signals     chan os.Signal
	hint        string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a handler that writes to writer (stderr when
// nil). hint is printed after the interrupt notice when not empty.
func NewInterruptHandler(writer io.Writer, hint string) *InterruptHandler {
	if writer == nil {
		writer = os.Stderr
	}
	return &InterruptHandler{
		writer:  writer,
		signals: make(chan os.Signal, 1),
		hint:    hint,
	}
}

// HandleInterrupts returns a context that is canceled on the first interrupt.
// The returned stop function releases the signal handler.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-h.signals:
			slog.Debug("Received signal", "signal", sig)
			h.mu.Lock()
			if !h.interrupted {
				h.interrupted = true
				h.showInterruptMessage()
			}
			h.mu.Unlock()
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(h.signals)
			close(done)
			cancel()
		})
	}
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n" + FormatWarning("Interrupted, shutting down")
	if h.hint != "" {
		msg += "\n" + FormatInfo(h.hint)
	}
	if _, err := fmt.Fprintln(h.writer, msg); err != nil {
		slog.Warn("Failed to write interrupt message", "error", err)
	}
}

// WasInterrupted reports whether an interrupt was received.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
