package scanning

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

// RetrieveReport asks the server to render a report of reportType for the
// finished scan scanID, waits until it is ready, then writes it to sink in
// full. The report is fetched exactly once and only after a ready answer.
func (s *Session) RetrieveReport(
	ctx context.Context,
	scanID int64,
	reportType scanning.ReportType,
	sink scanning.ReportSink,
) error {
	const op = "request report generation"
	if err := s.requireSession(op); err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("%s: %w", op, scanning.ErrNoReportSink)
	}

	logger := logger.NewLoggerContext(s.logger.With(
		"operation", "retrieve_report",
		"scan_id", scanID,
		"report_type", reportType.String(),
	))
	ctx, span := s.startSpan(ctx, "scan_session.retrieve_report",
		attribute.Int64("scan_id", scanID),
		attribute.String("report_type", reportType.String()),
		attribute.String("destination", sink.Location()),
	)
	defer span.End()

	fail := func(err error, msg string) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		logger.Error(ctx, msg, "error", err)
		return err
	}

	var job scanning.ReportJob
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		job, err = s.svc.CreateScanReport(ctx, s.token, scanID, reportType)
		return err
	})
	if err != nil {
		return fail(err, "Failed to request report generation")
	}
	span.SetAttributes(attribute.Int64("report_id", job.ID))
	logger.Add("report_id", job.ID)
	logger.Debug(ctx, "Report generation requested")

	err = poll(ctx, s.reportPollInterval, s.pollDeadline, func(ctx context.Context) (bool, error) {
		s.metrics.IncReportPolls(ctx)

		var status scanning.ReportStatus
		err := s.call(ctx, "get report status", func(ctx context.Context) error {
			var err error
			status, err = s.svc.ScanReportStatus(ctx, s.token, job.ID)
			return err
		})
		switch {
		case err != nil:
			return false, err
		case status.Failed:
			return false, scanning.ErrReportGenerationFailed
		default:
			return status.Ready, nil
		}
	})
	if err != nil {
		return fail(fmt.Errorf("report %d: %w", job.ID, err), "Report generation did not complete")
	}

	var data []byte
	err = s.call(ctx, "retrieve report", func(ctx context.Context) error {
		var err error
		data, err = s.svc.ScanReport(ctx, s.token, job.ID)
		return err
	})
	if err != nil {
		return fail(err, "Failed to retrieve report")
	}

	if err := sink.WriteReport(ctx, data); err != nil {
		return fail(&scanning.ReportWriteError{Path: sink.Location(), Err: err}, "Failed to write report")
	}

	s.metrics.ObserveReportBytes(ctx, reportType.String(), int64(len(data)))
	span.SetStatus(codes.Ok, "report written")
	logger.Info(ctx, "Report written", "destination", sink.Location(), "size", len(data))
	return nil
}
