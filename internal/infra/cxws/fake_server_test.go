package cxws

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/cxscan/internal/infra/soap"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

const servicePath = "/cxwebinterface/Jenkins/CxJenkinsWebService.asmx"

// fakeServer is an in-process stand-in for the analysis server. Results are
// registered per SOAP method as the inner XML of the <MethodResult> element.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	results  map[string]string
	raw      map[string]rawResponse
	requests map[string][]recordedRequest
}

type rawResponse struct {
	status int
	body   string
}

type recordedRequest struct {
	path          string
	body          string
	contentLength int64
	chunked       bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:        t,
		results:  make(map[string]string),
		raw:      make(map[string]rawResponse),
		requests: make(map[string][]recordedRequest),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	f.resolveTo(servicePath)
	return f
}

func (f *fakeServer) URL() string { return f.srv.URL }

// resolveTo makes the resolver answer with a service url on this server.
func (f *fakeServer) resolveTo(path string) {
	f.setResult("GetWebServiceUrl", "<IsSuccesfull>true</IsSuccesfull><ServiceURL>{{base}}"+path+"</ServiceURL>")
}

func (f *fakeServer) setResult(method, inner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = inner
	delete(f.raw, method)
}

func (f *fakeServer) setRaw(method string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[method] = rawResponse{status: status, body: body}
}

func (f *fakeServer) calls(method string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests[method]...)
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(r.Header.Get("SOAPAction"), `"`)
	method := action[strings.LastIndex(action, "/")+1:]
	ns := strings.TrimSuffix(action, "/"+method)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests[method] = append(f.requests[method], recordedRequest{
		path:          r.URL.Path,
		body:          string(body),
		contentLength: r.ContentLength,
		chunked:       len(r.TransferEncoding) > 0,
	})
	raw, hasRaw := f.raw[method]
	inner, hasResult := f.results[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", soap.ContentType)
	switch {
	case hasRaw:
		w.WriteHeader(raw.status)
		_, _ = io.WriteString(w, raw.body)
	case hasResult:
		inner = strings.ReplaceAll(inner, "{{base}}", "http://"+r.Host)
		_, _ = io.WriteString(w, soapResponse(ns, method, inner))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, soapFault("no result registered for "+method))
	}
}

func soapResponse(ns, method, inner string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <soap:Body>
    <%[2]sResponse xmlns="%[1]s">
      <%[2]sResult>%[3]s</%[2]sResult>
    </%[2]sResponse>
  </soap:Body>
</soap:Envelope>`, ns, method, inner)
}

func soapFault(msg string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body><soap:Fault><faultcode>soap:Server</faultcode><faultstring>` + msg + `</faultstring></soap:Fault></soap:Body>
</soap:Envelope>`
}

func testDeps() (*logger.Logger, *soap.Transport) {
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	tracer := noop.NewTracerProvider().Tracer("test")
	return log, soap.NewTransport(soap.DefaultConfig(), log, tracer)
}

func connectFake(t *testing.T, f *fakeServer) *WebService {
	t.Helper()
	log, tr := testDeps()
	ws, err := Connect(context.Background(), tr, f.URL(), log, noop.NewTracerProvider().Tracer("test"))
	require.NoError(t, err)
	return ws
}
