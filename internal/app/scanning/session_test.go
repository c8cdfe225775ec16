package scanning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

func TestSession_Login(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, testToken, s.token)
	svc.AssertExpectations(t)
}

func TestSession_Login_Rejected(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	rejected := &scanning.RemoteError{Op: "login", Message: "bad credentials", Kind: scanning.ErrAuthenticationFailed}
	svc.On("Login", mock.Anything, scanning.Credentials{User: "admin", Pass: "wrong"}, DefaultLCID).
		Return("", rejected).Once()

	err := s.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrAuthenticationFailed)

	var remoteErr *scanning.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "bad credentials", remoteErr.Message)

	assert.False(t, s.IsAuthenticated(), "a failed login must discard the previous token")
	svc.AssertExpectations(t)
}

func TestSession_Login_EmptyToken(t *testing.T) {
	svc := new(mockWebService)
	s := newTestSession(svc)

	svc.On("Login", mock.Anything, scanning.Credentials{User: "admin", Pass: "secret"}, DefaultLCID).
		Return("", nil).Once()

	err := s.Login(context.Background(), "admin", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, scanning.ErrAuthenticationFailed)
	assert.False(t, s.IsAuthenticated())
	svc.AssertExpectations(t)
}

func TestSession_Login_ThenSessionCallsProceed(t *testing.T) {
	svc := new(mockWebService)
	s := newLoggedInSession(t, svc)

	svc.On("ProjectsDisplayData", mock.Anything, testToken).
		Return([]scanning.ProjectDisplayData{{ProjectID: 7, ProjectName: "web"}}, nil).Once()

	projects, err := s.Projects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	svc.AssertExpectations(t)
}

func TestSession_RequiresLogin(t *testing.T) {
	svc := new(mockWebService)
	s := newTestSession(svc)
	ctx := context.Background()
	blob := &memoryBlob{data: []byte("UEsDBA==")}

	tests := []struct {
		name string
		call func() error
	}{
		{"submit", func() error {
			_, err := s.Submit(ctx, scanning.ScanRequest{})
			return err
		}},
		{"submit streaming", func() error {
			_, err := s.SubmitStreaming(ctx, scanning.StreamedScanRequest{Payload: blob})
			return err
		}},
		{"submit auto", func() error {
			_, err := s.SubmitAuto(ctx, scanning.ScanRequest{}, blob, 0)
			return err
		}},
		{"track scan", func() error {
			_, err := s.TrackScan(ctx, scanning.JobHandle{RunID: "run-1"})
			return err
		}},
		{"retrieve report", func() error {
			return s.RetrieveReport(ctx, 1, scanning.ReportTypeXML, &memorySink{})
		}},
		{"projects", func() error {
			_, err := s.Projects(ctx)
			return err
		}},
		{"presets", func() error {
			_, err := s.Presets(ctx)
			return err
		}},
		{"configuration sets", func() error {
			_, err := s.ConfigurationSets(ctx)
			return err
		}},
		{"validate project name", func() error {
			return s.ValidateProjectName(ctx, "p", "g")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, scanning.ErrSessionNotEstablished)
		})
	}

	assert.Zero(t, blob.opened, "no payload may be opened without a session")
	svc.AssertExpectations(t)
	assert.Empty(t, svc.Calls, "no remote call may be made without a session")
}

func TestSession_HasCorrelationID(t *testing.T) {
	a := newTestSession(new(mockWebService))
	b := newTestSession(new(mockWebService))
	assert.NotEqual(t, a.ID(), b.ID())
}
