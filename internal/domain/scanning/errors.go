package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidServerURL indicates a malformed base address. It is a caller
	// configuration error and is never retried.
	ErrInvalidServerURL = errors.New("invalid server url")

	// ErrServiceNotFound indicates the resolver could not be reached at all.
	ErrServiceNotFound = errors.New("service not found")

	// ErrAuthenticationFailed indicates the server rejected the login.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRemoteOperation is matched by every RemoteError.
	ErrRemoteOperation = errors.New("remote operation failed")

	// ErrSessionNotEstablished is returned when a session-scoped operation is
	// invoked before a successful login. It signals a caller bug.
	ErrSessionNotEstablished = errors.New("session not established: login required")

	// ErrReportGenerationFailed is returned when the server flags a report job
	// as failed.
	ErrReportGenerationFailed = errors.New("failed to create scan report")

	// ErrNoReportSink is returned when a report is requested without a
	// destination to write it to.
	ErrNoReportSink = errors.New("no report destination")

	// ErrPollCanceled is returned when a poll loop stops because its context
	// was canceled.
	ErrPollCanceled = errors.New("polling canceled")

	// ErrPollDeadlineExceeded is returned when a poll loop runs past its deadline.
	ErrPollDeadlineExceeded = errors.New("polling deadline exceeded")
)

// ResolveError reports a failure to discover the versioned service endpoint.
type ResolveError struct {
	Address string
	// Unreachable is set when the resolver could not be contacted, as opposed
	// to answering with an explicit failure.
	Unreachable bool
	Message     string
	Err         error
}

func (e *ResolveError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("service not found at %s", e.Address)
	}
	return fmt.Sprintf("failed to resolve service url: %s", e.Message)
}

func (e *ResolveError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Unreachable {
		errs = append(errs, ErrServiceNotFound)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// RemoteError is a structured call the server answered with its success flag
// unset. Message is the server-supplied error text.
type RemoteError struct {
	Op      string
	Message string
	// Kind optionally narrows the failure, e.g. ErrAuthenticationFailed.
	Kind error
}

// NewRemoteError creates a RemoteError for op carrying the server message.
func NewRemoteError(op, message string) *RemoteError {
	return &RemoteError{Op: op, Message: message}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	if e.Kind != nil {
		return []error{ErrRemoteOperation, e.Kind}
	}
	return []error{ErrRemoteOperation}
}

// JobFailedError is returned when a scan reaches a terminal failure status.
type JobFailedError struct {
	Status       ScanStatus
	RunID        string
	ScanID       int64
	StageName    string
	StageMessage string
}

// NewJobFailedError creates a JobFailedError from the terminal snapshot.
func NewJobFailedError(s StatusSnapshot) *JobFailedError {
	return &JobFailedError{
		Status:       s.Status,
		RunID:        s.RunID,
		ScanID:       s.ScanID,
		StageName:    s.StageName,
		StageMessage: s.StageMessage,
	}
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf(
		"scan %s (status: %s, run id: %s, scan id: %d): %s",
		e.StageName, e.Status, e.RunID, e.ScanID, e.StageMessage,
	)
}

// SubmissionErrorKind classifies a streamed submission failure.
type SubmissionErrorKind string

const (
	// SubmissionTransport is a network or HTTP level failure.
	SubmissionTransport SubmissionErrorKind = "transport"
	// SubmissionFraming means the response never contained the result element.
	SubmissionFraming SubmissionErrorKind = "framing"
	// SubmissionDecode means the result element could not be decoded.
	SubmissionDecode SubmissionErrorKind = "decode"
	// SubmissionRemote means the server answered with its success flag unset.
	SubmissionRemote SubmissionErrorKind = "remote"
	// SubmissionPayload means the blob could not be opened or read in full.
	SubmissionPayload SubmissionErrorKind = "payload"
)

// SubmissionError is a typed failure of the streamed scan submission path.
type SubmissionError struct {
	Kind SubmissionErrorKind
	Err  error
}

// NewSubmissionError creates a SubmissionError of the given kind.
func NewSubmissionError(kind SubmissionErrorKind, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, Err: err}
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("streamed scan submission failed (%s): %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ReportWriteError reports a failure to persist report bytes.
type ReportWriteError struct {
	Path string
	Err  error
}

func (e *ReportWriteError) Error() string {
	return fmt.Sprintf("cannot create report file: %s", e.Path)
}

func (e *ReportWriteError) Unwrap() error { return e.Err }
