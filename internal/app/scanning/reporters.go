package scanning

import (
	"context"
	"errors"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

var (
	_ scanning.ProgressReporter = (*LogProgressReporter)(nil)
	_ scanning.ProgressReporter = MultiReporter(nil)
)

// LogProgressReporter writes every observation to the log. It never fails.
type LogProgressReporter struct {
	logger *logger.Logger
}

// NewLogProgressReporter creates a LogProgressReporter.
func NewLogProgressReporter(log *logger.Logger) *LogProgressReporter {
	return &LogProgressReporter{logger: log.With("component", "progress_reporter")}
}

// ReportProgress logs p with the fields relevant to its kind.
func (r *LogProgressReporter) ReportProgress(ctx context.Context, p scanning.Progress) error {
	switch p.Kind {
	case scanning.ProgressWaiting:
		r.logger.Info(ctx, "Scan waiting to be processed", "run_id", p.RunID)
	case scanning.ProgressQueued:
		r.logger.Info(ctx, "Scan queued", "run_id", p.RunID, "queue_position", p.QueuePosition)
	case scanning.ProgressLinesOfCode:
		r.logger.Info(ctx, "Lines of code", "run_id", p.RunID, "loc", p.LOC)
	case scanning.ProgressUnzipping, scanning.ProgressScanning:
		r.logger.Info(ctx, "Scan in progress",
			"run_id", p.RunID,
			"status", p.Status.String(),
			"stage_percent", p.StagePercent,
			"total_percent", p.TotalPercent,
			"stage_message", p.StageMessage,
			"step_message", p.StepMessage,
			"step_details", p.StepDetails,
		)
	case scanning.ProgressFinished:
		r.logger.Info(ctx, "Scan finished", "run_id", p.RunID, "scan_id", p.ScanID)
	case scanning.ProgressFailed:
		r.logger.Warn(ctx, "Scan failed",
			"run_id", p.RunID,
			"status", p.Status.String(),
			"stage", p.StageName,
			"stage_message", p.StageMessage,
		)
	default:
		r.logger.Debug(ctx, "Scan progress", "run_id", p.RunID, "kind", string(p.Kind))
	}
	return nil
}

// MultiReporter fans an observation out to every reporter. All reporters are
// called even if some fail; their errors are joined.
type MultiReporter []scanning.ProgressReporter

// ReportProgress implements scanning.ProgressReporter.
func (m MultiReporter) ReportProgress(ctx context.Context, p scanning.Progress) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportProgress(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
