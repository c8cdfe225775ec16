package scanning

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SessionMetrics defines the metrics recorded while driving a scan session.
type SessionMetrics interface {
	// Remote call metrics
	IncRemoteCalls(ctx context.Context, op string)
	IncRemoteErrors(ctx context.Context, op string)

	// Poll metrics
	IncStatusPolls(ctx context.Context)
	IncReportPolls(ctx context.Context)

	// Payload metrics
	ObserveUploadBytes(ctx context.Context, mode string, size int64)
	ObserveReportBytes(ctx context.Context, reportType string, size int64)

	// Scan metrics
	ObserveScanDuration(ctx context.Context, status string, duration time.Duration)
}

// sessionMetrics implements SessionMetrics.
type sessionMetrics struct {
	remoteCalls  metric.Int64Counter
	remoteErrors metric.Int64Counter

	statusPolls metric.Int64Counter
	reportPolls metric.Int64Counter

	uploadBytes metric.Int64Histogram
	reportBytes metric.Int64Histogram

	scanDuration metric.Float64Histogram
}

const namespace = "cxscan"

// NewSessionMetrics creates a new SessionMetrics instance.
func NewSessionMetrics(mp metric.MeterProvider) (*sessionMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(sessionMetrics)
	var err error

	if m.remoteCalls, err = meter.Int64Counter(
		"remote_calls_total",
		metric.WithDescription("Total number of calls made to the remote web service"),
	); err != nil {
		return nil, err
	}

	if m.remoteErrors, err = meter.Int64Counter(
		"remote_errors_total",
		metric.WithDescription("Total number of remote calls that failed"),
	); err != nil {
		return nil, err
	}

	if m.statusPolls, err = meter.Int64Counter(
		"scan_status_polls_total",
		metric.WithDescription("Total number of scan status queries"),
	); err != nil {
		return nil, err
	}

	if m.reportPolls, err = meter.Int64Counter(
		"report_status_polls_total",
		metric.WithDescription("Total number of report readiness queries"),
	); err != nil {
		return nil, err
	}

	if m.uploadBytes, err = meter.Int64Histogram(
		"upload_bytes",
		metric.WithDescription("Size of submitted source archives"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.reportBytes, err = meter.Int64Histogram(
		"report_bytes",
		metric.WithDescription("Size of downloaded reports"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.scanDuration, err = meter.Float64Histogram(
		"scan_duration_seconds",
		metric.WithDescription("Time from submission until a terminal scan status"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *sessionMetrics) IncRemoteCalls(ctx context.Context, op string) {
	m.remoteCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *sessionMetrics) IncRemoteErrors(ctx context.Context, op string) {
	m.remoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *sessionMetrics) IncStatusPolls(ctx context.Context) { m.statusPolls.Add(ctx, 1) }

func (m *sessionMetrics) IncReportPolls(ctx context.Context) { m.reportPolls.Add(ctx, 1) }

func (m *sessionMetrics) ObserveUploadBytes(ctx context.Context, mode string, size int64) {
	m.uploadBytes.Record(ctx, size, metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *sessionMetrics) ObserveReportBytes(ctx context.Context, reportType string, size int64) {
	m.reportBytes.Record(ctx, size, metric.WithAttributes(attribute.String("report_type", reportType)))
}

func (m *sessionMetrics) ObserveScanDuration(ctx context.Context, status string, duration time.Duration) {
	m.scanDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
