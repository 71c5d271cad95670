package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one step of a request: onboarding resolution, a video upload.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx. The first span on a request also opens
// a trace, seeded from the request id when there is one.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	parent := traceFrom(ctx)

	current := trace{traceID: parent.traceID, spanID: uuid.NewString()}
	if current.traceID == "" {
		current.traceID = RequestIDFromContext(ctx)
		if current.traceID == "" {
			current.traceID = uuid.NewString()
		}
		logger = logger.With(slog.String("trace_id", current.traceID))
	}

	logger = logger.With(
		slog.String("span_id", current.spanID),
		slog.String("span_name", name),
	)
	if parent.spanID != "" {
		logger = logger.With(slog.String("parent_span_id", parent.spanID))
	}

	ctx = context.WithValue(ctx, traceKey, current)
	ctx = WithLogger(ctx, logger)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// RecordError marks the span as failed; End reports the last error recorded.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits a completion entry with the span's duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", s.err.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
