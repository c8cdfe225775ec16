package scanning

import "time"

// StatusSnapshot is one point-in-time answer to a scan status query. Each poll
// replaces the previous snapshot; nothing about it is persisted.
type StatusSnapshot struct {
	Status        ScanStatus
	RunID         string
	ScanID        int64 // valid once Status is ScanStatusFinished
	QueuePosition int64
	LOC           int64
	StagePercent  int
	TotalPercent  int
	StageName     string
	StageMessage  string
	StepMessage   string
	StepDetails   string
}

// ProgressKind identifies what a Progress observation describes.
type ProgressKind string

const (
	ProgressWaiting     ProgressKind = "waiting"
	ProgressQueued      ProgressKind = "queued"
	ProgressLinesOfCode ProgressKind = "lines_of_code"
	ProgressUnzipping   ProgressKind = "unzipping"
	ProgressScanning    ProgressKind = "scanning"
	ProgressFinished    ProgressKind = "finished"
	ProgressFailed      ProgressKind = "failed"
)

// Progress is a single observation surfaced to a ProgressReporter while a scan
// is tracked. Only the fields relevant to Kind are populated.
type Progress struct {
	Kind          ProgressKind
	RunID         string
	ScanID        int64
	Status        ScanStatus
	QueuePosition int64
	LOC           int64
	StagePercent  int
	TotalPercent  int
	StageName     string
	StageMessage  string
	StepMessage   string
	StepDetails   string
	ObservedAt    time.Time
}

// Observation converts an in-progress or terminal snapshot into the Progress
// it should be reported as.
func (s StatusSnapshot) Observation(at time.Time) Progress {
	p := Progress{RunID: s.RunID, Status: s.Status, ObservedAt: at}

	switch s.Status {
	case ScanStatusWaitingToProcess:
		p.Kind = ProgressWaiting
	case ScanStatusQueued:
		p.Kind = ProgressQueued
		p.QueuePosition = s.QueuePosition
	case ScanStatusUnzipping, ScanStatusWorking:
		p.Kind = ProgressScanning
		if s.Status == ScanStatusUnzipping {
			p.Kind = ProgressUnzipping
		}
		p.StagePercent = s.StagePercent
		p.TotalPercent = s.TotalPercent
		p.StageMessage = s.StageMessage
		p.StepMessage = s.StepMessage
		p.StepDetails = s.StepDetails
	case ScanStatusFinished:
		p.Kind = ProgressFinished
		p.ScanID = s.ScanID
	default:
		p.Kind = ProgressFailed
		p.ScanID = s.ScanID
		p.StageName = s.StageName
		p.StageMessage = s.StageMessage
	}
	return p
}

// LinesOfCode builds the one-off observation announcing the size of the
// scanned sources.
func (s StatusSnapshot) LinesOfCode(at time.Time) Progress {
	return Progress{
		Kind:       ProgressLinesOfCode,
		RunID:      s.RunID,
		Status:     s.Status,
		LOC:        s.LOC,
		ObservedAt: at,
	}
}
