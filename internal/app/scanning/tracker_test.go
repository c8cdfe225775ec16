package scanning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

func expectStatuses(svc *mockWebService, runID string, snaps ...scanning.StatusSnapshot) {
	for _, snap := range snaps {
		svc.On("ScanStatus", mock.Anything, testToken, runID).Return(snap, nil).Once()
	}
}

func TestSession_TrackScan_Finished(t *testing.T) {
	svc := new(mockWebService)
	reporter := new(recordingReporter)
	s := newLoggedInSession(t, svc, WithProgressReporter(reporter))

	expectStatuses(svc, "run-1",
		scanning.StatusSnapshot{Status: scanning.ScanStatusWaitingToProcess},
		scanning.StatusSnapshot{Status: scanning.ScanStatusQueued, QueuePosition: 3},
		scanning.StatusSnapshot{Status: scanning.ScanStatusUnzipping, LOC: 1200, StagePercent: 50, TotalPercent: 10},
		scanning.StatusSnapshot{Status: scanning.ScanStatusWorking, LOC: 1200, StagePercent: 80, TotalPercent: 60, StepMessage: "Querying"},
		scanning.StatusSnapshot{Status: scanning.ScanStatusFinished, LOC: 1200, ScanID: 1001, TotalPercent: 100},
	)

	scanID, err := s.TrackScan(context.Background(), scanning.JobHandle{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), scanID)

	assert.Equal(t, []scanning.ProgressKind{
		scanning.ProgressWaiting,
		scanning.ProgressQueued,
		scanning.ProgressLinesOfCode,
		scanning.ProgressUnzipping,
		scanning.ProgressScanning,
		scanning.ProgressFinished,
	}, reporter.kinds(), "lines of code must be reported exactly once")

	assert.Equal(t, int64(3), reporter.progress[1].QueuePosition)
	assert.Equal(t, int64(1200), reporter.progress[2].LOC)
	assert.Equal(t, 60, reporter.progress[4].TotalPercent)
	assert.Equal(t, "Querying", reporter.progress[4].StepMessage)
	for _, p := range reporter.progress {
		assert.Equal(t, "run-1", p.RunID)
	}

	svc.AssertExpectations(t)
	svc.AssertNumberOfCalls(t, "ScanStatus", 5)
}

func TestSession_TrackScan_TerminalFailures(t *testing.T) {
	for _, status := range []scanning.ScanStatus{
		scanning.ScanStatusFailed,
		scanning.ScanStatusDeleted,
		scanning.ScanStatusCanceled,
		scanning.ScanStatusUnknown,
	} {
		t.Run(status.String(), func(t *testing.T) {
			svc := new(mockWebService)
			reporter := new(recordingReporter)
			s := newLoggedInSession(t, svc, WithProgressReporter(reporter))

			expectStatuses(svc, "run-1",
				scanning.StatusSnapshot{Status: scanning.ScanStatusWorking, TotalPercent: 20},
				scanning.StatusSnapshot{
					Status:       status,
					ScanID:       77,
					StageName:    "Failed",
					StageMessage: "Source folder is empty",
				},
			)

			_, err := s.TrackScan(context.Background(), scanning.JobHandle{RunID: "run-1"})
			require.Error(t, err)

			var jobErr *scanning.JobFailedError
			require.ErrorAs(t, err, &jobErr)
			assert.Equal(t, status, jobErr.Status)
			assert.Equal(t, "run-1", jobErr.RunID)
			assert.Contains(t, err.Error(), "Failed")
			assert.Contains(t, err.Error(), "Source folder is empty")
			assert.NotErrorIs(t, err, scanning.ErrPollCanceled)

			assert.Equal(t, []scanning.ProgressKind{scanning.ProgressScanning, scanning.ProgressFailed}, reporter.kinds())
			svc.AssertNumberOfCalls(t, "ScanStatus", 2)
		})
	}
}

func TestSession_TrackScan_QueryFailureStops(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	expectStatuses(svc, "run-1", scanning.StatusSnapshot{Status: scanning.ScanStatusQueued})
	svc.On("ScanStatus", mock.Anything, testToken, "run-1").
		Return(scanning.StatusSnapshot{}, scanning.NewRemoteError("get scan status", "unknown run")).Once()

	_, err := s.TrackScan(context.Background(), scanning.JobHandle{RunID: "run-1"})
	require.Error(t, err)

	var remoteErr *scanning.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "get scan status", remoteErr.Op)

	var jobErr *scanning.JobFailedError
	assert.False(t, errors.As(err, &jobErr), "a failed query is not a failed job")
	svc.AssertNumberOfCalls(t, "ScanStatus", 2)
}

func TestSession_TrackScan_ReporterErrorsAreIgnored(t *testing.T) {
	svc := new(mockWebService)
	reporter := &recordingReporter{err: errors.New("sink unavailable")}
	s := newLoggedInSession(t, svc, WithProgressReporter(reporter))

	expectStatuses(svc, "run-1",
		scanning.StatusSnapshot{Status: scanning.ScanStatusQueued},
		scanning.StatusSnapshot{Status: scanning.ScanStatusFinished, ScanID: 5},
	)

	scanID, err := s.TrackScan(context.Background(), scanning.JobHandle{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), scanID)
	assert.Len(t, reporter.progress, 2)
}

func TestSession_TrackScan_Canceled(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc, WithScanPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	svc.On("ScanStatus", mock.Anything, testToken, "run-1").
		Run(func(mock.Arguments) { cancel() }).
		Return(scanning.StatusSnapshot{Status: scanning.ScanStatusQueued}, nil).Once()

	_, err := s.TrackScan(ctx, scanning.JobHandle{RunID: "run-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrPollCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, scanning.ErrPollDeadlineExceeded)
	svc.AssertNumberOfCalls(t, "ScanStatus", 1)
}

func TestSession_TrackScan_AlreadyCanceled(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.TrackScan(ctx, scanning.JobHandle{RunID: "run-1"})
	assert.ErrorIs(t, err, scanning.ErrPollCanceled)
	svc.AssertNotCalled(t, "ScanStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_TrackScan_Deadline(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc,
		WithScanPollInterval(5*time.Millisecond),
		WithPollDeadline(30*time.Millisecond),
	)

	svc.On("ScanStatus", mock.Anything, testToken, "run-1").
		Return(scanning.StatusSnapshot{Status: scanning.ScanStatusWorking}, nil)

	_, err := s.TrackScan(context.Background(), scanning.JobHandle{RunID: "run-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrPollDeadlineExceeded)
	assert.NotErrorIs(t, err, scanning.ErrPollCanceled)

	var jobErr *scanning.JobFailedError
	assert.False(t, errors.As(err, &jobErr))
}

func TestPoll_FirstQueryIsImmediate(t *testing.T) {
	calls := 0
	start := time.Now()
	err := poll(context.Background(), time.Hour, 0, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}
