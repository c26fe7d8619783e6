package core

import (
	"context"
	"errors"
	"time"

	"growbook/pkg/domain"
)

// Clock provides the current time for durations and audit timestamps.
// Record creation times never come from it; the store assigns those.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Logger is the structured logging surface used by the repositories.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Outcome classifies the result of a repository operation for metrics.
type Outcome string

// Known outcomes.
const (
	OutcomeSuccess         Outcome = "success"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeConflict        Outcome = "conflict"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeError           Outcome = "error"
)

// OutcomeOf maps an operation error to its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return OutcomeConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, outcome Outcome, duration time.Duration)
}

// Tracer starts a span per repository operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error (nil on success).
type TraceSpan interface {
	End(err error)
}

// Action is the kind of mutation an audit entry records.
type Action string

// Audited actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// AuditStatus is the result recorded in an audit entry.
type AuditStatus string

// Audit statuses.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one attempted mutation.
type AuditEntry struct {
	Operation   string
	Entity      domain.EntityType
	Action      Action
	EntityID    string
	PrincipalID string
	Status      AuditStatus
	Error       string
	Duration    time.Duration
	Timestamp   time.Time
}

// AuditRecorder receives audit entries for mutations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, Outcome, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

// Option configures a repository.
type Option func(*repositoryOptions)

type repositoryOptions struct {
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

func defaultRepositoryOptions() repositoryOptions {
	return repositoryOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
}

func applyOptions(opts []Option) repositoryOptions {
	o := defaultRepositoryOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock overrides the clock used for durations and audit timestamps.
func WithClock(clock Clock) Option {
	return func(o *repositoryOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *repositoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *repositoryOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *repositoryOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *repositoryOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}
