// Package scanning holds the domain model of a remote static analysis scan:
// the request a scan is submitted with, the statuses it moves through, the
// report generated from it, and the ports the application layer drives.
package scanning

import (
	"context"
	"io"
)

// WebService is the remote analysis service as the application sees it. Every
// method is a single blocking remote call. Implementations translate answers
// whose success flag is unset into *RemoteError.
type WebService interface {
	// Login exchanges credentials for a session token.
	Login(ctx context.Context, creds Credentials, lcid int) (string, error)

	// Scan submits req in a single structured call.
	Scan(ctx context.Context, sessionID string, req ScanRequest) (JobHandle, error)

	// ScanStreaming submits req while copying payload, which holds exactly
	// size bytes, into the request body without buffering it. Failures are
	// returned as *SubmissionError.
	ScanStreaming(ctx context.Context, sessionID string, req ScanRequest, payload io.Reader, size int64) (JobHandle, error)

	// ScanStatus queries the status of the scan identified by runID.
	ScanStatus(ctx context.Context, sessionID, runID string) (StatusSnapshot, error)

	// CreateScanReport asks the server to render a report for scanID.
	CreateScanReport(ctx context.Context, sessionID string, scanID int64, reportType ReportType) (ReportJob, error)

	// ScanReportStatus queries the readiness of a report job.
	ScanReportStatus(ctx context.Context, sessionID string, reportID int64) (ReportStatus, error)

	// ScanReport fetches the bytes of a ready report.
	ScanReport(ctx context.Context, sessionID string, reportID int64) ([]byte, error)

	// ProjectsDisplayData lists the projects visible to the session.
	ProjectsDisplayData(ctx context.Context, sessionID string) ([]ProjectDisplayData, error)

	// PresetList lists the presets available to the session.
	PresetList(ctx context.Context, sessionID string) ([]Preset, error)

	// ConfigurationSetList lists the source encoding configurations.
	ConfigurationSetList(ctx context.Context, sessionID string) ([]ConfigurationSet, error)

	// IsValidProjectName checks whether name can be used for a new project
	// in groupID. A nil error means the name is valid.
	IsValidProjectName(ctx context.Context, sessionID, name, groupID string) error
}

// ProgressReporter receives observations while a scan is tracked. Errors are
// logged by the caller and never abort tracking.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, p Progress) error
}

// ReportSink persists report bytes, replacing any previous content.
type ReportSink interface {
	WriteReport(ctx context.Context, data []byte) error
	// Location names the destination in logs and errors.
	Location() string
}
