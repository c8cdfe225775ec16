package scanning

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

// TrackScan polls the status of the scan identified by handle until it
// reaches a terminal status and returns the id the finished scan is known by.
// In-progress observations go to the progress reporter. A failed query stops
// tracking with the query error; a terminal failure status yields a
// *scanning.JobFailedError.
func (s *Session) TrackScan(ctx context.Context, handle scanning.JobHandle) (int64, error) {
	const op = "get scan status"
	if err := s.requireSession(op); err != nil {
		return 0, err
	}

	ctx, span := s.startSpan(ctx, "scan_session.track_scan", attribute.String("run_id", handle.RunID))
	defer span.End()

	timeline := scanning.NewScanTimeline(s.clock)
	locReported := false
	var (
		scanID   int64
		failure  error
		terminal scanning.StatusSnapshot
	)

	err := poll(ctx, s.scanPollInterval, s.pollDeadline, func(ctx context.Context) (bool, error) {
		s.metrics.IncStatusPolls(ctx)

		var snap scanning.StatusSnapshot
		err := s.call(ctx, op, func(ctx context.Context) error {
			var err error
			snap, err = s.svc.ScanStatus(ctx, s.token, handle.RunID)
			return err
		})
		if err != nil {
			return false, err
		}
		if snap.RunID == "" {
			snap.RunID = handle.RunID
		}
		at := timeline.Observe()

		if !locReported && snap.LOC > 0 {
			locReported = true
			s.report(ctx, snap.LinesOfCode(at))
		}

		if !snap.Status.IsTerminal() {
			s.report(ctx, snap.Observation(at))
			return false, nil
		}

		timeline.MarkCompleted()
		terminal = snap
		s.report(ctx, snap.Observation(at))
		if snap.Status.Class() == scanning.StatusClassSucceeded {
			scanID = snap.ScanID
			return true, nil
		}
		failure = scanning.NewJobFailedError(snap)
		return true, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan tracking stopped")
		s.logger.Error(ctx, "Scan tracking stopped", "run_id", handle.RunID, "error", err)
		return 0, fmt.Errorf("failed to track scan %s: %w", handle.RunID, err)
	}

	s.metrics.ObserveScanDuration(ctx, terminal.Status.String(), timeline.Elapsed())
	span.SetAttributes(attribute.String("status", terminal.Status.String()))

	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, "scan failed")
		s.logger.Error(ctx, "Scan reached a failure status",
			"run_id", handle.RunID,
			"status", terminal.Status.String(),
			"stage", terminal.StageName,
			"stage_message", terminal.StageMessage,
		)
		return 0, failure
	}

	span.SetAttributes(attribute.Int64("scan_id", scanID))
	span.SetStatus(codes.Ok, "scan finished")
	s.logger.Info(ctx, "Scan finished",
		"run_id", handle.RunID,
		"scan_id", scanID,
		"duration", timeline.Elapsed().String(),
	)
	return scanID, nil
}

// report hands p to the progress reporter. Reporter failures never stop
// tracking.
func (s *Session) report(ctx context.Context, p scanning.Progress) {
	if err := s.reporter.ReportProgress(ctx, p); err != nil {
		s.logger.Warn(ctx, "Failed to report scan progress", "kind", string(p.Kind), "error", err)
	}
}
