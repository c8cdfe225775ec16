// Package scanning drives a remote static analysis scan from login to the
// downloaded report. A Session is the only entry point; it owns the session
// token and gates every remote operation on a successful login.
package scanning

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
	"github.com/ahrav/cxscan/pkg/common/otel"
)

// DefaultLCID is the locale sent with every login (en-US).
const DefaultLCID = 1033

const (
	defaultScanPollInterval   = 10 * time.Second
	defaultReportPollInterval = 5 * time.Second
)

// Session is one logical scan session against a remote web service. It is not
// safe for concurrent use.
type Session struct {
	svc scanning.WebService

	id    uuid.UUID
	token string

	scanPollInterval   time.Duration
	reportPollInterval time.Duration
	pollDeadline       time.Duration

	reporter scanning.ProgressReporter
	clock    scanning.TimeProvider

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics SessionMetrics
}

// Option allows for functional configuration of a Session.
type Option func(*Session)

// WithLogger sets the logger used by the session.
func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.logger = log }
}

// WithTracer sets the tracer used by the session.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) { s.tracer = tracer }
}

// WithMetrics sets the metrics recorder used by the session.
func WithMetrics(m SessionMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithProgressReporter sets the sink for scan progress observations.
func WithProgressReporter(r scanning.ProgressReporter) Option {
	return func(s *Session) { s.reporter = r }
}

// WithScanPollInterval sets the fixed wait between scan status queries.
func WithScanPollInterval(d time.Duration) Option {
	return func(s *Session) { s.scanPollInterval = d }
}

// WithReportPollInterval sets the fixed wait between report status queries.
func WithReportPollInterval(d time.Duration) Option {
	return func(s *Session) { s.reportPollInterval = d }
}

// WithPollDeadline bounds each poll loop. Zero means no deadline beyond the
// caller's context.
func WithPollDeadline(d time.Duration) Option {
	return func(s *Session) { s.pollDeadline = d }
}

// WithTimeProvider overrides the clock used to stamp observations.
func WithTimeProvider(tp scanning.TimeProvider) Option {
	return func(s *Session) { s.clock = tp }
}

// NewSession creates a Session bound to svc. The session holds no token until
// Login succeeds.
func NewSession(svc scanning.WebService, opts ...Option) *Session {
	// noop instruments never fail to register.
	metrics, _ := NewSessionMetrics(metricnoop.NewMeterProvider())

	s := &Session{
		svc:                svc,
		id:                 uuid.New(),
		scanPollInterval:   defaultScanPollInterval,
		reportPollInterval: defaultReportPollInterval,
		clock:              scanning.SystemClock(),
		logger:             logger.New(io.Discard, logger.LevelInfo, "cxscan", nil),
		tracer:             tracenoop.NewTracerProvider().Tracer("cxscan"),
		metrics:            metrics,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "scan_session", "session_id", s.id.String())
	if s.reporter == nil {
		s.reporter = NewLogProgressReporter(s.logger)
	}

	return s
}

// ID returns the client-side correlation id of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// IsAuthenticated reports whether a login has succeeded.
func (s *Session) IsAuthenticated() bool { return s.token != "" }

// Login authenticates with the server and stores the session token. Any
// previously held token is discarded first, so a failed login leaves the
// session unauthenticated.
func (s *Session) Login(ctx context.Context, username, password string) error {
	ctx, span := s.startSpan(ctx, "scan_session.login", attribute.String("user", username))
	defer span.End()

	s.token = ""

	var token string
	err := s.call(ctx, "login", func(ctx context.Context) error {
		var err error
		token, err = s.svc.Login(ctx, scanning.Credentials{User: username, Pass: password}, DefaultLCID)
		if err == nil && token == "" {
			err = &scanning.RemoteError{
				Op:      "login",
				Message: "no session id in login response",
				Kind:    scanning.ErrAuthenticationFailed,
			}
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		s.logger.Warn(ctx, "Login failed", "user", username, "error", err)
		return err
	}

	s.token = token
	span.SetStatus(codes.Ok, "logged in")
	s.logger.Info(ctx, "Logged in", "user", username)
	return nil
}

// requireSession returns ErrSessionNotEstablished, tagged with op, when no
// login has succeeded.
func (s *Session) requireSession(op string) error {
	if !s.IsAuthenticated() {
		return fmt.Errorf("%s: %w", op, scanning.ErrSessionNotEstablished)
	}
	return nil
}

// call runs a single remote operation and records it.
func (s *Session) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	s.metrics.IncRemoteCalls(ctx, op)
	if err := fn(ctx); err != nil {
		s.metrics.IncRemoteErrors(ctx, op)
		return err
	}
	return nil
}

func (s *Session) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("session_id", s.id.String()))
	return otel.AddSpan(ctx, s.tracer, name, attrs...)
}
