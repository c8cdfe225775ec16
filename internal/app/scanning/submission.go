package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

const (
	uploadModeInline   = "inline"
	uploadModeStreamed = "streamed"
)

// Submit sends req, including its inline archive, in one structured call.
func (s *Session) Submit(ctx context.Context, req scanning.ScanRequest) (scanning.JobHandle, error) {
	const op = "submit scan"
	if err := s.requireSession(op); err != nil {
		return scanning.JobHandle{}, err
	}

	ctx, span := s.startSpan(ctx, "scan_session.submit",
		attribute.String("project_name", req.Project.ProjectName),
		attribute.String("origin", req.Source.Origin.String()),
		attribute.Int("archive_size", len(req.Source.Packaged.ZippedFile)),
	)
	defer span.End()

	var handle scanning.JobHandle
	err := s.call(ctx, op, func(ctx context.Context) error {
		var err error
		handle, err = s.svc.Scan(ctx, s.token, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan submission failed")
		return scanning.JobHandle{}, fmt.Errorf("submission of sources for scan failed: %w", err)
	}

	s.metrics.ObserveUploadBytes(ctx, uploadModeInline, int64(len(req.Source.Packaged.ZippedFile)))
	span.SetAttributes(attribute.String("run_id", handle.RunID))
	span.SetStatus(codes.Ok, "scan submitted")
	s.logger.Info(ctx, "Scan submitted",
		"run_id", handle.RunID,
		"project_id", handle.ProjectID,
		"project_name", req.Project.ProjectName,
	)
	return handle, nil
}

// SubmitStreaming sends req while streaming its payload into the request
// body. The payload is opened exactly once and closed on every path.
// Transport, response and payload failures are *scanning.SubmissionError; a
// request field that cannot be placed in the envelope is reported as is.
func (s *Session) SubmitStreaming(ctx context.Context, req scanning.StreamedScanRequest) (scanning.JobHandle, error) {
	const op = "submit scan"
	if err := s.requireSession(op); err != nil {
		return scanning.JobHandle{}, err
	}
	if req.Payload == nil {
		return scanning.JobHandle{}, scanning.NewSubmissionError(
			scanning.SubmissionPayload, fmt.Errorf("no payload to stream"),
		)
	}

	size := req.Payload.Size()
	logger := logger.NewLoggerContext(s.logger.With(
		"operation", "submit_streaming",
		"payload", req.Payload.Name(),
		"payload_size", size,
	))
	ctx, span := s.startSpan(ctx, "scan_session.submit_streaming",
		attribute.String("project_name", req.Project.ProjectName),
		attribute.String("payload", req.Payload.Name()),
		attribute.Int64("payload_size", size),
	)
	defer span.End()

	payload, err := req.Payload.Open(ctx)
	if err != nil {
		err = scanning.NewSubmissionError(scanning.SubmissionPayload, fmt.Errorf("failed to open %s: %w", req.Payload.Name(), err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open payload")
		logger.Error(ctx, "Failed to open payload", "error", err)
		return scanning.JobHandle{}, err
	}
	defer payload.Close()

	var handle scanning.JobHandle
	err = s.call(ctx, op, func(ctx context.Context) error {
		var err error
		handle, err = s.svc.ScanStreaming(ctx, s.token, req.ScanRequest, payload, size)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "streamed scan submission failed")
		logger.Error(ctx, "Streamed scan submission failed", "error", err)
		return scanning.JobHandle{}, err
	}

	s.metrics.ObserveUploadBytes(ctx, uploadModeStreamed, size)
	span.SetAttributes(attribute.String("run_id", handle.RunID))
	span.SetStatus(codes.Ok, "scan submitted")
	logger.Add("run_id", handle.RunID, "project_id", handle.ProjectID)
	logger.Info(ctx, "Scan submitted with streamed payload")
	return handle, nil
}

// SubmitAuto streams blob when it is larger than threshold bytes and
// otherwise inlines it into a structured submission. The blob holds base64
// text either way; the inline path decodes it so it is not encoded twice.
func (s *Session) SubmitAuto(
	ctx context.Context,
	req scanning.ScanRequest,
	blob scanning.Blob,
	threshold int64,
) (scanning.JobHandle, error) {
	if err := s.requireSession("submit scan"); err != nil {
		return scanning.JobHandle{}, err
	}

	if blob.Size() > threshold {
		s.logger.Debug(ctx, "Payload exceeds inline threshold, streaming",
			"payload_size", blob.Size(),
			"threshold", threshold,
		)
		return s.SubmitStreaming(ctx, scanning.StreamedScanRequest{ScanRequest: req, Payload: blob})
	}

	archive, err := readDecoded(ctx, blob)
	if err != nil {
		return scanning.JobHandle{}, scanning.NewSubmissionError(scanning.SubmissionPayload, err)
	}
	req.Source.Packaged.ZippedFile = archive
	if req.Source.Packaged.FileName == "" {
		req.Source.Packaged.FileName = scanning.DefaultArchiveFileName
	}
	return s.Submit(ctx, req)
}

func readDecoded(ctx context.Context, blob scanning.Blob) ([]byte, error) {
	rc, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", blob.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, rc))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", blob.Name(), err)
	}
	return data, nil
}
