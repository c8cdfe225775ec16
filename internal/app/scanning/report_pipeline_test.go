package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

func expectReportJob(svc *mockWebService) {
	svc.On("CreateScanReport", mock.Anything, testToken, int64(1001), scanning.ReportTypeXML).
		Return(scanning.ReportJob{ID: 55, ScanID: 1001, Type: scanning.ReportTypeXML}, nil).Once()
}

func TestSession_RetrieveReport(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)
	sink := new(memorySink)

	expectReportJob(svc)
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{}, nil).Twice()
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{Ready: true}, nil).Once()
	svc.On("ScanReport", mock.Anything, testToken, int64(55)).Return([]byte("<CxXMLResults/>"), nil).Once()

	err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, sink)
	require.NoError(t, err)

	assert.Equal(t, []byte("<CxXMLResults/>"), sink.data)
	assert.Equal(t, 1, sink.writes)
	svc.AssertExpectations(t)
	svc.AssertNumberOfCalls(t, "ScanReportStatus", 3)
	svc.AssertNumberOfCalls(t, "ScanReport", 1)
}

func TestSession_RetrieveReport_GenerationFailed(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)
	sink := new(memorySink)

	expectReportJob(svc)
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{Failed: true}, nil).Once()

	err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrReportGenerationFailed)

	svc.AssertNotCalled(t, "ScanReport", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, sink.writes)
}

func TestSession_RetrieveReport_RemoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(svc *mockWebService)
		wantOp string
	}{
		{
			name: "request rejected",
			setup: func(svc *mockWebService) {
				svc.On("CreateScanReport", mock.Anything, testToken, int64(1001), scanning.ReportTypeXML).
					Return(scanning.ReportJob{}, scanning.NewRemoteError("request report generation", "scan not found")).Once()
			},
			wantOp: "request report generation",
		},
		{
			name: "status query rejected",
			setup: func(svc *mockWebService) {
				expectReportJob(svc)
				svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).
					Return(scanning.ReportStatus{}, scanning.NewRemoteError("get report status", "no such report")).Once()
			},
			wantOp: "get report status",
		},
		{
			name: "fetch rejected",
			setup: func(svc *mockWebService) {
				expectReportJob(svc)
				svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{Ready: true}, nil).Once()
				svc.On("ScanReport", mock.Anything, testToken, int64(55)).
					Return(nil, scanning.NewRemoteError("retrieve report", "report expired")).Once()
			},
			wantOp: "retrieve report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockWebService)
			s := newLoggedInSession(t, svc)
			sink := new(memorySink)
			tt.setup(svc)

			err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, sink)

			var remoteErr *scanning.RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.wantOp, remoteErr.Op)
			assert.Zero(t, sink.writes)
			svc.AssertExpectations(t)
		})
	}
}

func TestSession_RetrieveReport_WriteFailure(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)
	diskFull := errors.New("no space left on device")
	sink := &memorySink{err: diskFull}

	expectReportJob(svc)
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{Ready: true}, nil).Once()
	svc.On("ScanReport", mock.Anything, testToken, int64(55)).Return([]byte("report"), nil).Once()

	err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, sink)

	var writeErr *scanning.ReportWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "memory://report", writeErr.Path)
	assert.ErrorIs(t, err, diskFull)
	assert.EqualError(t, err, "cannot create report file: memory://report")
}

func TestSession_RetrieveReport_Deadline(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc,
		WithReportPollInterval(5*time.Millisecond),
		WithPollDeadline(25*time.Millisecond),
	)
	sink := new(memorySink)

	expectReportJob(svc)
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{}, nil)

	err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrPollDeadlineExceeded)
	svc.AssertNotCalled(t, "ScanReport", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_RetrieveReport_NilSink(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	err := s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, nil)
	require.ErrorIs(t, err, scanning.ErrNoReportSink)
	svc.AssertNotCalled(t, "CreateScanReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	svc.AssertExpectations(t)
}

func TestSession_RetrieveReport_LogsCarryReportContext(t *testing.T) {
	var buf bytes.Buffer
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc, WithLogger(logger.New(&buf, logger.LevelDebug, "test", nil)))

	expectReportJob(svc)
	svc.On("ScanReportStatus", mock.Anything, testToken, int64(55)).Return(scanning.ReportStatus{Ready: true}, nil).Once()
	svc.On("ScanReport", mock.Anything, testToken, int64(55)).Return([]byte("report"), nil).Once()

	require.NoError(t, s.RetrieveReport(context.Background(), 1001, scanning.ReportTypeXML, new(memorySink)))

	var written map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		if rec["msg"] == "Report written" {
			written = rec
		}
	}
	require.NotNil(t, written)
	assert.EqualValues(t, 1001, written["scan_id"])
	assert.EqualValues(t, 55, written["report_id"])
	assert.Equal(t, "retrieve_report", written["operation"])
	assert.Equal(t, "memory://report", written["destination"])
}
