package scanning

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

const testToken = "session-token"

// mockWebService implements scanning.WebService for testing.
type mockWebService struct{ mock.Mock }

func (m *mockWebService) Login(ctx context.Context, creds scanning.Credentials, lcid int) (string, error) {
	args := m.Called(ctx, creds, lcid)
	return args.String(0), args.Error(1)
}

func (m *mockWebService) Scan(ctx context.Context, sessionID string, req scanning.ScanRequest) (scanning.JobHandle, error) {
	args := m.Called(ctx, sessionID, req)
	return args.Get(0).(scanning.JobHandle), args.Error(1)
}

func (m *mockWebService) ScanStreaming(
	ctx context.Context,
	sessionID string,
	req scanning.ScanRequest,
	payload io.Reader,
	size int64,
) (scanning.JobHandle, error) {
	args := m.Called(ctx, sessionID, req, payload, size)
	return args.Get(0).(scanning.JobHandle), args.Error(1)
}

func (m *mockWebService) ScanStatus(ctx context.Context, sessionID, runID string) (scanning.StatusSnapshot, error) {
	args := m.Called(ctx, sessionID, runID)
	return args.Get(0).(scanning.StatusSnapshot), args.Error(1)
}

func (m *mockWebService) CreateScanReport(
	ctx context.Context,
	sessionID string,
	scanID int64,
	reportType scanning.ReportType,
) (scanning.ReportJob, error) {
	args := m.Called(ctx, sessionID, scanID, reportType)
	return args.Get(0).(scanning.ReportJob), args.Error(1)
}

func (m *mockWebService) ScanReportStatus(ctx context.Context, sessionID string, reportID int64) (scanning.ReportStatus, error) {
	args := m.Called(ctx, sessionID, reportID)
	return args.Get(0).(scanning.ReportStatus), args.Error(1)
}

func (m *mockWebService) ScanReport(ctx context.Context, sessionID string, reportID int64) ([]byte, error) {
	args := m.Called(ctx, sessionID, reportID)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebService) ProjectsDisplayData(ctx context.Context, sessionID string) ([]scanning.ProjectDisplayData, error) {
	args := m.Called(ctx, sessionID)
	if projects := args.Get(0); projects != nil {
		return projects.([]scanning.ProjectDisplayData), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebService) PresetList(ctx context.Context, sessionID string) ([]scanning.Preset, error) {
	args := m.Called(ctx, sessionID)
	if presets := args.Get(0); presets != nil {
		return presets.([]scanning.Preset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebService) ConfigurationSetList(ctx context.Context, sessionID string) ([]scanning.ConfigurationSet, error) {
	args := m.Called(ctx, sessionID)
	if sets := args.Get(0); sets != nil {
		return sets.([]scanning.ConfigurationSet), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWebService) IsValidProjectName(ctx context.Context, sessionID, name, groupID string) error {
	args := m.Called(ctx, sessionID, name, groupID)
	return args.Error(0)
}

// recordingReporter collects observations.
type recordingReporter struct {
	mu       sync.Mutex
	progress []scanning.Progress
	err      error
}

func (r *recordingReporter) ReportProgress(_ context.Context, p scanning.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	return r.err
}

func (r *recordingReporter) kinds() []scanning.ProgressKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scanning.ProgressKind, len(r.progress))
	for i, p := range r.progress {
		out[i] = p.Kind
	}
	return out
}

// memoryBlob is an in-memory scanning.Blob that counts open and close calls.
type memoryBlob struct {
	data    []byte
	openErr error
	opened  int
	closed  int
}

func (b *memoryBlob) Name() string { return "memory.zip.b64" }
func (b *memoryBlob) Size() int64  { return int64(len(b.data)) }

func (b *memoryBlob) Open(context.Context) (io.ReadCloser, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened++
	return &countingCloser{Reader: bytes.NewReader(b.data), blob: b}, nil
}

type countingCloser struct {
	io.Reader
	blob *memoryBlob
}

func (c *countingCloser) Close() error {
	c.blob.closed++
	return nil
}

// memorySink is an in-memory scanning.ReportSink.
type memorySink struct {
	data   []byte
	writes int
	err    error
}

func (s *memorySink) Location() string { return "memory://report" }

func (s *memorySink) WriteReport(_ context.Context, data []byte) error {
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.data = append([]byte(nil), data...)
	return nil
}

var errConnectionReset = errors.New("connection reset by peer")

func newTestSession(svc scanning.WebService, opts ...Option) *Session {
	base := []Option{
		WithLogger(logger.New(io.Discard, logger.LevelDebug, "test", nil)),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
		WithScanPollInterval(time.Millisecond),
		WithReportPollInterval(time.Millisecond),
	}
	return NewSession(svc, append(base, opts...)...)
}

// newLoggedInSession returns a session that already holds testToken.
func newLoggedInSession(t *testing.T, svc *mockWebService, opts ...Option) *Session {
	t.Helper()
	svc.On("Login", mock.Anything, scanning.Credentials{User: "admin", Pass: "secret"}, DefaultLCID).
		Return(testToken, nil).Once()

	s := newTestSession(svc, opts...)
	if err := s.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return s
}
