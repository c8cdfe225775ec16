package cxws

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/internal/infra/soap"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

// Transport is the subset of soap.Transport the web service needs.
type Transport interface {
	Call(ctx context.Context, endpoint string, op soap.Operation, in, out any) error
	Stream(ctx context.Context, endpoint string, op soap.Operation, body soap.StreamBody, out any) error
}

var _ Transport = (*soap.Transport)(nil)

// Endpoint is a validated base address and the versioned service location the
// resolver returned for it. It is immutable once built.
type Endpoint struct {
	Base    *url.URL
	Service *url.URL
}

// Locator resolves a base address into the versioned service endpoint.
type Locator struct {
	transport Transport
	logger    *logger.Logger
	tracer    trace.Tracer
}

// NewLocator creates a Locator that calls the resolver through transport.
func NewLocator(transport Transport, log *logger.Logger, tracer trace.Tracer) *Locator {
	return &Locator{
		transport: transport,
		logger:    log.With("component", "service_locator"),
		tracer:    tracer,
	}
}

// ValidateBaseURL parses raw and checks it is an absolute http(s) address
// with no path, query or fragment.
func ValidateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", scanning.ErrInvalidServerURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s: scheme must be http or https", scanning.ErrInvalidServerURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %s: missing host", scanning.ErrInvalidServerURL, raw)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %s must not contain a path", scanning.ErrInvalidServerURL, raw)
	}
	return u, nil
}

// Locate validates baseURL and asks the resolver for the service location.
func (l *Locator) Locate(ctx context.Context, baseURL string) (Endpoint, error) {
	ctx, span := l.tracer.Start(ctx, "service_locator.locate",
		trace.WithAttributes(attribute.String("base_url", baseURL)))
	defer span.End()

	base, err := ValidateBaseURL(baseURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid base url")
		return Endpoint{}, err
	}

	resolverURL := base.JoinPath(ResolverPath).String()
	l.logger.Info(ctx, "Establishing connection with analysis server", "server_url", base.String())
	l.logger.Debug(ctx, "Calling resolver", "resolver_url", resolverURL)

	var resp response[webServiceURLResult]
	req := getWebServiceURLRequest{ClientType: ClientType, APIVersion: APIVersion}
	if err := l.transport.Call(ctx, resolverURL, resolverOperation("GetWebServiceUrl"), req, &resp); err != nil {
		l.logger.Error(ctx, "Failed to resolve web service url", "resolver_url", resolverURL, "error", err)
		rerr := &scanning.ResolveError{Address: base.String(), Unreachable: true, Err: err}
		span.RecordError(rerr)
		span.SetStatus(codes.Error, "resolver unreachable")
		return Endpoint{}, rerr
	}

	if ok, msg := resp.Result.outcome(); !ok {
		rerr := &scanning.ResolveError{Address: base.String(), Message: msg}
		l.logger.Error(ctx, "Resolver reported failure", "error", rerr)
		span.RecordError(rerr)
		span.SetStatus(codes.Error, "resolution failed")
		return Endpoint{}, rerr
	}

	service, err := url.Parse(resp.Result.ServiceURL)
	if err != nil || !service.IsAbs() || service.Host == "" {
		rerr := &scanning.ResolveError{
			Address: base.String(),
			Message: fmt.Sprintf("invalid service url %q", resp.Result.ServiceURL),
			Err:     err,
		}
		span.RecordError(rerr)
		span.SetStatus(codes.Error, "invalid service url")
		return Endpoint{}, rerr
	}

	l.logger.Debug(ctx, "Resolved web service url", "service_url", service.String())
	span.SetAttributes(attribute.String("service_url", service.String()))
	span.SetStatus(codes.Ok, "service resolved")
	return Endpoint{Base: base, Service: service}, nil
}
