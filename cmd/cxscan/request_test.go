package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/cxscan/internal/config"
	"github.com/ahrav/cxscan/internal/domain/scanning"
)

func TestScanRequest(t *testing.T) {
	cfg := config.Default().Scan
	cfg.ProjectID = 12
	cfg.ProjectName = "payments"
	cfg.PresetID = 7
	cfg.GroupID = "team-a"
	cfg.ConfigurationID = 1
	cfg.Description = "nightly"
	cfg.Private = true

	req := scanRequest(cfg)
	assert.Equal(t, scanning.ProjectSettings{
		ProjectID:           12,
		ProjectName:         "payments",
		PresetID:            7,
		AssociatedGroupID:   "team-a",
		ScanConfigurationID: 1,
		Description:         "nightly",
	}, req.Project)
	assert.Equal(t, scanning.SourceOriginLocal, req.Source.Origin)
	assert.Equal(t, "src.zip", req.Source.Packaged.FileName)
	assert.True(t, req.IsPrivateScan)
	assert.False(t, req.IsIncremental)
}

func TestTransportConfig(t *testing.T) {
	httpCfg := config.Default().HTTP
	httpCfg.MaxRetries = 2
	httpCfg.RequestsPerSecond = 5

	tc := transportConfig(httpCfg)
	assert.Equal(t, 30*time.Second, tc.DialTimeout)
	assert.Equal(t, 2, tc.MaxRetries)
	assert.Equal(t, 5.0, tc.RequestsPerSecond)
	assert.Equal(t, time.Second, tc.RetryWaitMin)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"bad url", fmt.Errorf("x: %w", scanning.ErrInvalidServerURL), 2},
		{"login rejected", &scanning.RemoteError{Op: "login", Kind: scanning.ErrAuthenticationFailed}, 3},
		{"deadline", fmt.Errorf("x: %w", scanning.ErrPollDeadlineExceeded), 4},
		{"job failed", &scanning.JobFailedError{Status: scanning.ScanStatusFailed}, 5},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
