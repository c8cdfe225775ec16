// Package soap implements the SOAP 1.1 transport used to talk to the analysis
// server: structured request/response calls and a raw streamed call whose
// body is written through a pipe so large payloads are never buffered.
package soap

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/cxscan/pkg/common"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

// maxErrorBody caps how much of a non-200 response is kept for errors.
const maxErrorBody = 64 * 1024

// Config controls connection behavior of a Transport.
type Config struct {
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	InsecureSkipVerify    bool

	// MaxRetries applies to structured calls only, and only to failures where
	// no response was received. Zero disables retries.
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RequestsPerSecond throttles all outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the connection settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 5 * time.Minute,
		RetryWaitMin:          time.Second,
		RetryWaitMax:          10 * time.Second,
		Burst:                 1,
	}
}

// Transport issues SOAP calls against a resolved endpoint.
type Transport struct {
	structured *retryablehttp.Client
	streaming  *http.Client
	limiter    *common.RateLimiter

	logger *logger.Logger
	tracer trace.Tracer
}

// NewTransport creates a Transport. Structured calls go through a
// retryablehttp client; streamed calls use a plain client with no overall
// timeout so uploads are bounded only by the caller's context.
func NewTransport(cfg Config, log *logger.Logger, tracer trace.Tracer) *Transport {
	log = log.With("component", "soap_transport")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(newHTTPTransport(cfg))}
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryOnConnectionError
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{log: log}

	return &Transport{
		structured: retryClient,
		streaming:  &http.Client{Transport: otelhttp.NewTransport(newHTTPTransport(cfg))},
		limiter:    common.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:     log,
		tracer:     tracer,
	}
}

func newHTTPTransport(cfg Config) *http.Transport {
	tr := cleanhttp.DefaultPooledTransport()
	tr.DialContext = (&net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	tr.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
	tr.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed on-prem servers
	}
	return tr
}

// retryOnConnectionError retries only when no response was received. SOAP
// calls are not idempotent, so an answered request is never resent.
func retryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func setHeaders(h http.Header, action string) {
	h.Set("Content-Type", ContentType)
	h.Set("SOAPAction", `"`+action+`"`)
}

// Call performs a structured call: in is wrapped in an envelope and the
// op.Response element of the answer is decoded into out.
func (t *Transport) Call(ctx context.Context, endpoint string, op Operation, in, out any) error {
	ctx, span := t.tracer.Start(ctx, "soap_transport.call",
		trace.WithAttributes(
			attribute.String("soap.operation", op.Name),
			attribute.String("endpoint", endpoint),
		))
	defer span.End()

	if err := t.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	payload, err := MarshalEnvelope(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal request")
		return fmt.Errorf("failed to marshal %s request: %w", op.Name, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return fmt.Errorf("failed to create %s request: %w", op.Name, err)
	}
	setHeaders(req.Header, op.Action)
	span.SetAttributes(attribute.Int("request_size", len(payload)))

	resp, err := t.structured.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s request failed: %w", op.Name, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	if err := readResponse(resp, op.Response, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read response")
		return fmt.Errorf("%s response: %w", op.Name, err)
	}

	span.SetStatus(codes.Ok, "call completed")
	return nil
}

// StreamBody is a request body sent as head, then exactly PayloadSize bytes
// copied from Payload, then tail.
type StreamBody struct {
	Head        []byte
	Payload     io.Reader
	PayloadSize int64
	Tail        []byte
}

// ContentLength is the exact number of bytes the body will produce.
func (b StreamBody) ContentLength() int64 {
	return int64(len(b.Head)) + b.PayloadSize + int64(len(b.Tail))
}

func (b StreamBody) writeTo(w io.Writer) error {
	if _, err := w.Write(b.Head); err != nil {
		return fmt.Errorf("failed to write envelope head: %w", err)
	}

	src := payloadReader{r: b.Payload}
	n, err := io.Copy(w, io.LimitReader(src, b.PayloadSize))
	if err != nil {
		return err
	}
	if n != b.PayloadSize {
		return &PayloadError{Err: fmt.Errorf("payload ended after %d of %d bytes", n, b.PayloadSize)}
	}
	var probe [1]byte
	if extra, _ := b.Payload.Read(probe[:]); extra > 0 {
		return &PayloadError{Err: fmt.Errorf("payload exceeds declared size of %d bytes", b.PayloadSize)}
	}

	if _, err := w.Write(b.Tail); err != nil {
		return fmt.Errorf("failed to write envelope tail: %w", err)
	}
	return nil
}

// payloadReader tags read failures so they can be told apart from failures
// writing to the connection.
type payloadReader struct {
	r io.Reader
}

func (p payloadReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		err = &PayloadError{Err: err}
	}
	return n, err
}

// Stream performs a raw call with a fixed Content-Length. The body is produced
// by a writer goroutine through an io.Pipe, so only one copy buffer of the
// payload is in memory at a time. The connection and the pipe live only for
// the duration of the call. The response is decoded like Call.
func (t *Transport) Stream(ctx context.Context, endpoint string, op Operation, body StreamBody, out any) error {
	ctx, span := t.tracer.Start(ctx, "soap_transport.stream",
		trace.WithAttributes(
			attribute.String("soap.operation", op.Name),
			attribute.String("endpoint", endpoint),
			attribute.Int64("content_length", body.ContentLength()),
			attribute.Int64("payload_size", body.PayloadSize),
		))
	defer span.End()

	if err := t.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return fmt.Errorf("failed to create %s request: %w", op.Name, err)
	}
	req.ContentLength = body.ContentLength()
	setHeaders(req.Header, op.Action)

	var g errgroup.Group
	g.Go(func() error {
		err := body.writeTo(pw)
		pw.CloseWithError(err)
		return err
	})

	resp, doErr := t.streaming.Do(req)
	// Unblocks the writer if the request ended before the body was consumed.
	pr.Close()
	writeErr := g.Wait()

	var payloadErr *PayloadError
	if errors.As(writeErr, &payloadErr) {
		if resp != nil {
			resp.Body.Close()
		}
		span.RecordError(writeErr)
		span.SetStatus(codes.Error, "payload read failed")
		return writeErr
	}
	if doErr != nil {
		span.RecordError(doErr)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s request failed: %w", op.Name, doErr)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	if writeErr != nil {
		t.logger.Warn(ctx, "server answered before the request body was fully written",
			"operation", op.Name,
			"error", writeErr,
		)
	}

	if err := readResponse(resp, op.Response, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read response")
		return fmt.Errorf("%s response: %w", op.Name, err)
	}

	span.SetStatus(codes.Ok, "stream completed")
	return nil
}

func readResponse(resp *http.Response, element string, out any) error {
	if resp.StatusCode != http.StatusOK {
		// SOAP 1.1 servers report faults with a 500.
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if fault := extractFault(data); fault != nil {
			return fault
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return DecodeResponse(resp.Body, element, out)
}
