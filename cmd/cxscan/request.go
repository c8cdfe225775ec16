package main

import (
	"fmt"

	"github.com/ahrav/cxscan/internal/config"
	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/internal/infra/soap"
)

// scanRequest builds the submission for a locally packaged archive.
func scanRequest(cfg config.ScanConfig) scanning.ScanRequest {
	return scanning.ScanRequest{
		Project: scanning.ProjectSettings{
			ProjectID:           cfg.ProjectID,
			ProjectName:         cfg.ProjectName,
			PresetID:            cfg.PresetID,
			AssociatedGroupID:   cfg.GroupID,
			ScanConfigurationID: cfg.ConfigurationID,
			Description:         cfg.Description,
		},
		Source: scanning.SourceCodeSettings{
			Origin:   scanning.SourceOriginLocal,
			Packaged: scanning.PackagedCode{FileName: cfg.FileName},
		},
		IsPrivateScan: cfg.Private,
		IsIncremental: cfg.Incremental,
	}
}

// transportConfig maps the HTTP settings onto the SOAP transport.
func transportConfig(cfg config.HTTPConfig) soap.Config {
	tc := soap.DefaultConfig()
	tc.DialTimeout = cfg.DialTimeout
	tc.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
	tc.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	tc.InsecureSkipVerify = cfg.InsecureSkipVerify
	tc.MaxRetries = cfg.MaxRetries
	tc.RequestsPerSecond = cfg.RequestsPerSecond
	tc.Burst = cfg.Burst
	return tc
}

// exitCode maps a workflow error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errorsIsAny(err, scanning.ErrInvalidServerURL):
		return 2
	case errorsIsAny(err, scanning.ErrAuthenticationFailed):
		return 3
	case errorsIsAny(err, scanning.ErrPollCanceled, scanning.ErrPollDeadlineExceeded):
		return 4
	default:
		if _, ok := asJobFailed(err); ok {
			return 5
		}
		return 1
	}
}

func describe(err error) string {
	if jobErr, ok := asJobFailed(err); ok {
		return fmt.Sprintf("scan %s did not finish: %v", jobErr.RunID, err)
	}
	return err.Error()
}
