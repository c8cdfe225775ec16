// Package cxws adapts the analysis server's SOAP web service to the
// scanning.WebService port: service discovery, typed wire messages for each
// method, and the literal envelope used for streamed scan submission.
package cxws

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/internal/infra/soap"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

var _ scanning.WebService = (*WebService)(nil)

// WebService talks to one resolved service endpoint. It keeps no per-call
// state; the streaming connection lives only inside ScanStreaming.
type WebService struct {
	transport Transport
	endpoint  Endpoint

	logger *logger.Logger
	tracer trace.Tracer
}

// NewWebService creates a WebService bound to an already resolved endpoint.
func NewWebService(transport Transport, endpoint Endpoint, log *logger.Logger, tracer trace.Tracer) *WebService {
	return &WebService{
		transport: transport,
		endpoint:  endpoint,
		logger:    log.With("component", "cx_web_service", "service_url", endpoint.Service.String()),
		tracer:    tracer,
	}
}

// Connect resolves baseURL once and returns a WebService bound to the result.
// The endpoint is never re-resolved.
func Connect(
	ctx context.Context,
	transport Transport,
	baseURL string,
	log *logger.Logger,
	tracer trace.Tracer,
) (*WebService, error) {
	endpoint, err := NewLocator(transport, log, tracer).Locate(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	return NewWebService(transport, endpoint, log, tracer), nil
}

// Endpoint returns the endpoint this service is bound to.
func (ws *WebService) Endpoint() Endpoint { return ws.endpoint }

// invoke performs a structured call and converts an unsuccessful result into
// a *scanning.RemoteError for op.
func invoke[R outcomer](ctx context.Context, ws *WebService, method, op string, in any) (R, error) {
	ctx, span := ws.tracer.Start(ctx, "cx_web_service."+method,
		trace.WithAttributes(attribute.String("operation", op)))
	defer span.End()

	var resp response[R]
	if err := ws.transport.Call(ctx, ws.endpoint.Service.String(), serviceOperation(method), in, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		var zero R
		return zero, fmt.Errorf("failed to call %s: %w", method, err)
	}

	if ok, msg := resp.Result.outcome(); !ok {
		err := scanning.NewRemoteError(op, msg)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsuccessful response")
		return resp.Result, err
	}

	span.SetStatus(codes.Ok, "call succeeded")
	return resp.Result, nil
}

// Login exchanges credentials for a session token.
func (ws *WebService) Login(ctx context.Context, creds scanning.Credentials, lcid int) (string, error) {
	req := loginRequest{
		Credentials: credentials{User: creds.User, Pass: creds.Pass},
		LCID:        lcid,
	}
	res, err := invoke[loginResult](ctx, ws, "Login", "login", req)
	if err != nil {
		var remote *scanning.RemoteError
		if errors.As(err, &remote) {
			remote.Kind = scanning.ErrAuthenticationFailed
		}
		return "", err
	}
	if res.SessionID == "" {
		return "", &scanning.RemoteError{
			Op:      "login",
			Message: errEmptySessionID,
			Kind:    scanning.ErrAuthenticationFailed,
		}
	}
	return res.SessionID, nil
}

const errEmptySessionID = "server returned an empty session id"

func toWireScanArgs(req scanning.ScanRequest) cliScanArgs {
	paths := make([]scanPath, 0, len(req.Source.PathList))
	for _, p := range req.Source.PathList {
		paths = append(paths, scanPath{Path: p.Path, IncludeSubTree: p.IncludeSubTree})
	}

	fileName := req.Source.Packaged.FileName
	if fileName == "" && len(req.Source.Packaged.ZippedFile) > 0 {
		fileName = scanning.DefaultArchiveFileName
	}

	return cliScanArgs{
		PrjSettings: projectSettings{
			ProjectID:           req.Project.ProjectID,
			ProjectName:         req.Project.ProjectName,
			PresetID:            req.Project.PresetID,
			AssociatedGroupID:   req.Project.AssociatedGroupID,
			ScanConfigurationID: req.Project.ScanConfigurationID,
			Description:         req.Project.Description,
		},
		SrcCodeSettings: sourceCodeSettings{
			SourceOrigin: req.Source.Origin.String(),
			UserCredentials: credentials{
				User: req.Source.Credentials.User,
				Pass: req.Source.Credentials.Pass,
			},
			PathList: paths,
			PackagedCode: packagedCode{
				ZippedFile: base64Binary(req.Source.Packaged.ZippedFile),
				FileName:   fileName,
			},
			SourcePullingAction: req.Source.PullingAction,
		},
		IsPrivateScan: req.IsPrivateScan,
		IsIncremental: req.IsIncremental,
	}
}

// Scan submits req in one structured call, with the archive inline.
func (ws *WebService) Scan(ctx context.Context, sessionID string, req scanning.ScanRequest) (scanning.JobHandle, error) {
	res, err := invoke[runIDResult](ctx, ws, "Scan", "submit scan", scanRequest{
		SessionID: sessionID,
		Args:      toWireScanArgs(req),
	})
	if err != nil {
		return scanning.JobHandle{}, err
	}
	return scanning.JobHandle{RunID: res.RunID, ProjectID: res.ProjectID}, nil
}

// ScanStreaming submits req with size bytes of payload copied verbatim into
// the ZippedFile element. Every failure is a *scanning.SubmissionError except
// an envelope that cannot be built, which is a caller error.
func (ws *WebService) ScanStreaming(
	ctx context.Context,
	sessionID string,
	req scanning.ScanRequest,
	payload io.Reader,
	size int64,
) (scanning.JobHandle, error) {
	ctx, span := ws.tracer.Start(ctx, "cx_web_service.ScanStreaming",
		trace.WithAttributes(attribute.Int64("payload_size", size)))
	defer span.End()

	env, err := BuildScanEnvelope(sessionID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build envelope")
		return scanning.JobHandle{}, fmt.Errorf("failed to build scan envelope: %w", err)
	}

	body := soap.StreamBody{
		Head:        env.Head,
		Payload:     payload,
		PayloadSize: size,
		Tail:        env.Tail,
	}
	span.SetAttributes(attribute.Int64("content_length", env.ContentLength(size)))

	var resp response[runIDResult]
	if err := ws.transport.Stream(ctx, ws.endpoint.Service.String(), serviceOperation("Scan"), body, &resp); err != nil {
		serr := scanning.NewSubmissionError(classifyStreamError(err), err)
		span.RecordError(serr)
		span.SetStatus(codes.Error, "streamed submission failed")
		return scanning.JobHandle{}, serr
	}

	if ok, msg := resp.Result.outcome(); !ok {
		serr := scanning.NewSubmissionError(scanning.SubmissionRemote, scanning.NewRemoteError("submit scan", msg))
		span.RecordError(serr)
		span.SetStatus(codes.Error, "unsuccessful response")
		return scanning.JobHandle{}, serr
	}

	span.SetStatus(codes.Ok, "scan submitted")
	return scanning.JobHandle{RunID: resp.Result.RunID, ProjectID: resp.Result.ProjectID}, nil
}

func classifyStreamError(err error) scanning.SubmissionErrorKind {
	var (
		payloadErr *soap.PayloadError
		decodeErr  *soap.DecodeError
	)
	switch {
	case errors.As(err, &payloadErr):
		return scanning.SubmissionPayload
	case errors.Is(err, soap.ErrElementNotFound):
		return scanning.SubmissionFraming
	case errors.As(err, &decodeErr):
		return scanning.SubmissionDecode
	default:
		return scanning.SubmissionTransport
	}
}

// ScanStatus queries the status of the scan identified by runID.
func (ws *WebService) ScanStatus(ctx context.Context, sessionID, runID string) (scanning.StatusSnapshot, error) {
	res, err := invoke[scanStatusResult](ctx, ws, "GetStatusOfSingleScan", "get scan status", scanStatusRequest{
		SessionID: sessionID,
		RunID:     runID,
	})
	if err != nil {
		return scanning.StatusSnapshot{}, err
	}

	return scanning.StatusSnapshot{
		Status:        scanning.ParseScanStatus(res.CurrentStatus),
		RunID:         res.RunID,
		ScanID:        res.ScanID,
		QueuePosition: res.QueuePosition,
		LOC:           res.LOC,
		StagePercent:  res.CurrentStagePercent,
		TotalPercent:  res.TotalPercent,
		StageName:     res.StageName,
		StageMessage:  res.StageMessage,
		StepMessage:   res.StepMessage,
		StepDetails:   res.StepDetails,
	}, nil
}

// CreateScanReport asks the server to render a report of reportType.
func (ws *WebService) CreateScanReport(
	ctx context.Context,
	sessionID string,
	scanID int64,
	reportType scanning.ReportType,
) (scanning.ReportJob, error) {
	res, err := invoke[createReportResult](ctx, ws, "CreateScanReport", "request report generation", createScanReportRequest{
		SessionID: sessionID,
		Report:    reportRequest{ScanID: scanID, Type: reportType.String()},
	})
	if err != nil {
		return scanning.ReportJob{}, err
	}
	return scanning.ReportJob{ID: res.ID, ScanID: scanID, Type: reportType}, nil
}

// ScanReportStatus queries the readiness of a report job.
func (ws *WebService) ScanReportStatus(ctx context.Context, sessionID string, reportID int64) (scanning.ReportStatus, error) {
	res, err := invoke[reportStatusResult](ctx, ws, "GetScanReportStatus", "get report status", scanReportStatusRequest{
		SessionID: sessionID,
		ReportID:  reportID,
	})
	if err != nil {
		return scanning.ReportStatus{}, err
	}
	return scanning.ReportStatus{Ready: res.IsReady, Failed: res.IsFailed}, nil
}

// ScanReport fetches the bytes of a ready report.
func (ws *WebService) ScanReport(ctx context.Context, sessionID string, reportID int64) ([]byte, error) {
	res, err := invoke[scanResultsResult](ctx, ws, "GetScanReport", "retrieve report", scanReportRequest{
		SessionID: sessionID,
		ReportID:  reportID,
	})
	if err != nil {
		return nil, err
	}
	return []byte(res.ScanResults), nil
}

// ProjectsDisplayData lists the projects visible to the session.
func (ws *WebService) ProjectsDisplayData(ctx context.Context, sessionID string) ([]scanning.ProjectDisplayData, error) {
	res, err := invoke[projectsDisplayDataResult](ctx, ws, "GetProjectsDisplayData", "get projects display data",
		projectsDisplayDataRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	projects := make([]scanning.ProjectDisplayData, 0, len(res.Projects))
	for _, p := range res.Projects {
		projects = append(projects, scanning.ProjectDisplayData{
			ProjectID:    p.ProjectID,
			ProjectName:  p.ProjectName,
			Group:        p.Group,
			Preset:       p.Preset,
			Owner:        p.Owner,
			LastScanDate: p.LastScanDate.Time,
			TotalScans:   p.TotalScans,
		})
	}
	return projects, nil
}

// PresetList lists the presets available to the session.
func (ws *WebService) PresetList(ctx context.Context, sessionID string) ([]scanning.Preset, error) {
	res, err := invoke[presetListResult](ctx, ws, "GetPresetList", "get presets",
		presetListRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	presets := make([]scanning.Preset, 0, len(res.Presets))
	for _, p := range res.Presets {
		presets = append(presets, scanning.Preset{ID: p.ID, Name: p.PresetName})
	}
	return presets, nil
}

// ConfigurationSetList lists the source encoding configurations.
func (ws *WebService) ConfigurationSetList(ctx context.Context, sessionID string) ([]scanning.ConfigurationSet, error) {
	res, err := invoke[configurationSetListResult](ctx, ws, "GetConfigurationSetList", "get configuration sets",
		configurationSetListRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	sets := make([]scanning.ConfigurationSet, 0, len(res.ConfigurationSets))
	for _, c := range res.ConfigurationSets {
		sets = append(sets, scanning.ConfigurationSet{ID: c.ID, Name: c.ConfigSetName})
	}
	return sets, nil
}

// IsValidProjectName returns nil when name may be used for a new project in
// groupID, and a *scanning.RemoteError carrying the reason otherwise.
func (ws *WebService) IsValidProjectName(ctx context.Context, sessionID, name, groupID string) error {
	_, err := invoke[basicResult](ctx, ws, "IsValidProjectName", "validate project name", isValidProjectNameRequest{
		SessionID:   sessionID,
		ProjectName: name,
		GroupID:     groupID,
	})
	return err
}
