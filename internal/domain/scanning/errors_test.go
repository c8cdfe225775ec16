package scanning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveError(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := error(&ResolveError{Address: "http://cx.local", Unreachable: true, Err: cause})

		assert.Equal(t, "service not found at http://cx.local", err.Error())
		assert.ErrorIs(t, err, ErrServiceNotFound)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("explicit failure", func(t *testing.T) {
		err := error(&ResolveError{Address: "http://cx.local", Message: "unsupported client"})

		assert.Equal(t, "failed to resolve service url: unsupported client", err.Error())
		assert.NotErrorIs(t, err, ErrServiceNotFound)
	})
}

func TestRemoteError(t *testing.T) {
	err := fmt.Errorf("failed to log in: %w",
		&RemoteError{Op: "login", Message: "bad credentials", Kind: ErrAuthenticationFailed})

	assert.ErrorIs(t, err, ErrRemoteOperation)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	var remote *RemoteError
	assert.True(t, errors.As(err, &remote))
	assert.Equal(t, "bad credentials", remote.Message)
	assert.Equal(t, "login failed: bad credentials", remote.Error())
}

func TestJobFailedError_MessageCarriesStage(t *testing.T) {
	err := NewJobFailedError(StatusSnapshot{
		Status:       ScanStatusFailed,
		RunID:        "run-1",
		ScanID:       5,
		StageName:    "Failed",
		StageMessage: "engine crashed",
	})

	assert.Contains(t, err.Error(), "Failed")
	assert.Contains(t, err.Error(), "engine crashed")
	assert.Contains(t, err.Error(), "run-1")
}

func TestSubmissionError(t *testing.T) {
	err := NewSubmissionError(SubmissionTransport, context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "transport")
}

func TestReportWriteError(t *testing.T) {
	cause := errors.New("read-only file system")
	err := &ReportWriteError{Path: "/out/report.pdf", Err: cause}

	assert.Equal(t, "cannot create report file: /out/report.pdf", err.Error())
	assert.ErrorIs(t, err, cause)
}
