package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/abilityms/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/abilityms/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID identifies a whole request flow
type TraceID string

// SpanID identifies one operation within a trace
type SpanID string

// Span is a single timed operation
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Err        error
	StatusCode int
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error on the span
func (s *Span) SetError(err error) {
	s.Err = err
}

// Tracer creates spans and logs them once finished
type Tracer struct {
	service string
	logger  *logging.Logger

	spans     chan *Span
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a tracer and starts its collector
func New(service string, logger *logging.Logger) *Tracer {
	if logger == nil {
		logger = logging.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// Start opens a span as a child of whatever span ctx carries
func (t *Tracer) Start(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  SpanIDFrom(ctx),
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	return span, WithSpan(ctx, span.TraceID, span.SpanID)
}

// Finish closes the span and queues it for logging. Spans are dropped
// when the buffer is full or the tracer is closed.
func (t *Tracer) Finish(span *Span) {
	span.Duration = time.Since(span.StartTime)

	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span", zap.String("trace_id", string(span.TraceID)))
	}
}

// Close stops the collector
func (t *Tracer) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *Tracer) collect() {
	for {
		select {
		case <-t.done:
			return
		case span := <-t.spans:
			t.log(span)
		}
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("service", t.service),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Err != nil {
		t.logger.Error("Span completed with error", append(fields, zap.Error(span.Err))...)
		return
	}
	t.logger.Debug("Span completed", fields...)
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// WithSpan stores trace identifiers in ctx
func WithSpan(ctx context.Context, traceID TraceID, spanID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanIDKey, spanID)
	}
	return ctx
}

// TraceIDFrom returns the trace ID carried by ctx
func TraceIDFrom(ctx context.Context) TraceID {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	return traceID
}

// SpanIDFrom returns the span ID carried by ctx
func SpanIDFrom(ctx context.Context) SpanID {
	spanID, _ := ctx.Value(spanIDKey).(SpanID)
	return spanID
}

// Extract reads propagation headers
func Extract(h http.Header) (TraceID, SpanID) {
	return TraceID(h.Get(HeaderTraceID)), SpanID(h.Get(HeaderSpanID))
}

// Inject writes ctx's trace identifiers as propagation headers
func Inject(ctx context.Context, set func(key, value string)) {
	if traceID := TraceIDFrom(ctx); traceID != "" {
		set(HeaderTraceID, string(traceID))
	}
	if spanID := SpanIDFrom(ctx); spanID != "" {
		set(HeaderSpanID, string(spanID))
	}
}
