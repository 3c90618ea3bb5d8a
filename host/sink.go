package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink receives the guest's print messages, in the order the guest sent
// them.
type Sink interface {
	Print(ctx context.Context, message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, message string)

// Print calls f.
func (f SinkFunc) Print(ctx context.Context, message string) {
	f(ctx, message)
}

type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// WriterSink writes each message as a line to w.
func WriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Print(_ context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, message)
}

// LogSink logs each message at Info through logger.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, message string) {
		logger.InfoContext(ctx, "guest print", "msg", message)
	})
}
