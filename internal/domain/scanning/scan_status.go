package scanning

// ScanStatus is the server-reported state of a scan run.
type ScanStatus string

const (
	ScanStatusWaitingToProcess ScanStatus = "WaitingToProcess"
	ScanStatusQueued           ScanStatus = "Queued"
	ScanStatusUnzipping        ScanStatus = "Unzipping"
	ScanStatusWorking          ScanStatus = "Working"
	ScanStatusFinished         ScanStatus = "Finished"
	ScanStatusFailed           ScanStatus = "Failed"
	ScanStatusDeleted          ScanStatus = "Deleted"
	ScanStatusUnknown          ScanStatus = "Unknown"
	ScanStatusCanceled         ScanStatus = "Canceled"
)

func (s ScanStatus) String() string { return string(s) }

// ParseScanStatus converts a wire value into a ScanStatus. Values the client
// does not recognize become ScanStatusUnknown, which is terminal, so a server
// upgrade that adds states can never leave a poll loop spinning forever.
func ParseScanStatus(s string) ScanStatus {
	switch ScanStatus(s) {
	case ScanStatusWaitingToProcess,
		ScanStatusQueued,
		ScanStatusUnzipping,
		ScanStatusWorking,
		ScanStatusFinished,
		ScanStatusFailed,
		ScanStatusDeleted,
		ScanStatusUnknown,
		ScanStatusCanceled:
		return ScanStatus(s)
	default:
		return ScanStatusUnknown
	}
}

// StatusClass groups scan statuses by what a poller must do next.
type StatusClass int

const (
	// StatusClassInProgress means poll again.
	StatusClassInProgress StatusClass = iota
	// StatusClassSucceeded means the scan finished and has a scan id.
	StatusClassSucceeded
	// StatusClassFailed means the scan ended without results.
	StatusClassFailed
)

func (c StatusClass) String() string {
	switch c {
	case StatusClassInProgress:
		return "in_progress"
	case StatusClassSucceeded:
		return "succeeded"
	case StatusClassFailed:
		return "failed"
	default:
		return "unspecified"
	}
}

// Class maps a status onto its StatusClass.
func (s ScanStatus) Class() StatusClass {
	switch s {
	case ScanStatusWaitingToProcess, ScanStatusQueued, ScanStatusUnzipping, ScanStatusWorking:
		return StatusClassInProgress
	case ScanStatusFinished:
		return StatusClassSucceeded
	default:
		return StatusClassFailed
	}
}

// IsTerminal reports whether no further polling should happen after s.
func (s ScanStatus) IsTerminal() bool { return s.Class() != StatusClassInProgress }
