package cxws

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ahrav/cxscan/internal/infra/soap"
)

const (
	resolverNamespace = "http://Checkmarx.com"
	serviceNamespace  = "http://Checkmarx.com/v7"

	// ResolverPath is appended to the base address to reach the resolver.
	ResolverPath = "/cxwebinterface/cxwsresolver.asmx"

	// ClientType and APIVersion identify this client to the resolver.
	ClientType = "Jenkins"
	APIVersion = 1
)

func resolverOperation(method string) soap.Operation {
	return soap.Operation{
		Name:     method,
		Action:   resolverNamespace + "/" + method,
		Response: method + "Response",
	}
}

func serviceOperation(method string) soap.Operation {
	return soap.Operation{
		Name:     method,
		Action:   serviceNamespace + "/" + method,
		Response: method + "Response",
	}
}

// outcomer is implemented by every result the server returns. The server
// spells the flag IsSuccesfull.
type outcomer interface {
	outcome() (ok bool, message string)
}

type basicResult struct {
	IsSuccesfull bool   `xml:"IsSuccesfull"`
	ErrorMessage string `xml:"ErrorMessage"`
}

func (r basicResult) outcome() (bool, string) { return r.IsSuccesfull, r.ErrorMessage }

// response is the <MethodResponse> element; its single child is the result.
type response[R outcomer] struct {
	Result R `xml:",any"`
}

// base64Binary is an xsd:base64Binary value.
type base64Binary []byte

func (b base64Binary) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

func (b *base64Binary) UnmarshalText(text []byte) error {
	trimmed := strings.Join(strings.Fields(string(text)), "")
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return fmt.Errorf("invalid base64 content: %w", err)
	}
	*b = decoded
	return nil
}

// dotNetTime parses xsd:dateTime values with or without a zone designator.
type dotNetTime struct {
	time.Time
}

func (t *dotNetTime) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid dateTime %q", s)
}

// Resolver.

type getWebServiceURLRequest struct {
	XMLName    xml.Name `xml:"http://Checkmarx.com GetWebServiceUrl"`
	ClientType string   `xml:"ClientType"`
	APIVersion int      `xml:"APIVersion"`
}

type webServiceURLResult struct {
	basicResult
	ServiceURL string `xml:"ServiceURL"`
}

// Session.

type credentials struct {
	User string `xml:"User"`
	Pass string `xml:"Pass"`
}

type loginRequest struct {
	XMLName     xml.Name    `xml:"http://Checkmarx.com/v7 Login"`
	Credentials credentials `xml:"applicationCredentials"`
	LCID        int         `xml:"lcid"`
}

type loginResult struct {
	basicResult
	SessionID string `xml:"SessionId"`
}

// Scan submission.

type projectSettings struct {
	ProjectID           int64  `xml:"projectID"`
	ProjectName         string `xml:"ProjectName"`
	PresetID            int64  `xml:"PresetID"`
	AssociatedGroupID   string `xml:"AssociatedGroupID"`
	ScanConfigurationID int64  `xml:"ScanConfigurationID"`
	Description         string `xml:"Description"`
}

type scanPath struct {
	Path           string `xml:"Path"`
	IncludeSubTree bool   `xml:"IncludeSubTree"`
}

type packagedCode struct {
	ZippedFile base64Binary `xml:"ZippedFile"`
	FileName   string       `xml:"FileName"`
}

type sourceCodeSettings struct {
	SourceOrigin        string       `xml:"SourceOrigin"`
	UserCredentials     credentials  `xml:"UserCredentials"`
	PathList            []scanPath   `xml:"PathList>ScanPath"`
	PackagedCode        packagedCode `xml:"PackagedCode"`
	SourcePullingAction string       `xml:"SourcePullingAction"`
}

type cliScanArgs struct {
	PrjSettings     projectSettings    `xml:"PrjSettings"`
	SrcCodeSettings sourceCodeSettings `xml:"SrcCodeSettings"`
	IsPrivateScan   bool               `xml:"IsPrivateScan"`
	IsIncremental   bool               `xml:"IsIncremental"`
}

type scanRequest struct {
	XMLName   xml.Name    `xml:"http://Checkmarx.com/v7 Scan"`
	SessionID string      `xml:"sessionId"`
	Args      cliScanArgs `xml:"args"`
}

type runIDResult struct {
	basicResult
	ProjectID int64  `xml:"ProjectID"`
	RunID     string `xml:"RunId"`
}

// Status.

type scanStatusRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetStatusOfSingleScan"`
	SessionID string   `xml:"sessionID"`
	RunID     string   `xml:"RunId"`
}

type scanStatusResult struct {
	basicResult
	RunID               string `xml:"RunId"`
	CurrentStatus       string `xml:"CurrentStatus"`
	QueuePosition       int64  `xml:"QueuePosition"`
	StageName           string `xml:"StageName"`
	StageMessage        string `xml:"StageMessage"`
	StepMessage         string `xml:"StepMessage"`
	StepDetails         string `xml:"StepDetails"`
	ScanID              int64  `xml:"ScanId"`
	LOC                 int64  `xml:"LOC"`
	CurrentStagePercent int    `xml:"CurrentStagePercent"`
	TotalPercent        int    `xml:"TotalPercent"`
}

// Reports.

type reportRequest struct {
	ScanID int64  `xml:"ScanID"`
	Type   string `xml:"Type"`
}

type createScanReportRequest struct {
	XMLName   xml.Name      `xml:"http://Checkmarx.com/v7 CreateScanReport"`
	SessionID string        `xml:"SessionID"`
	Report    reportRequest `xml:"reportRequest"`
}

type createReportResult struct {
	basicResult
	ID int64 `xml:"ID"`
}

type scanReportStatusRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetScanReportStatus"`
	SessionID string   `xml:"SessionID"`
	ReportID  int64    `xml:"ReportID"`
}

type reportStatusResult struct {
	basicResult
	IsReady  bool `xml:"IsReady"`
	IsFailed bool `xml:"IsFailed"`
}

type scanReportRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetScanReport"`
	SessionID string   `xml:"SessionID"`
	ReportID  int64    `xml:"ReportID"`
}

type scanResultsResult struct {
	basicResult
	ScanResults base64Binary `xml:"ScanResults"`
}

// Catalog.

type projectsDisplayDataRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetProjectsDisplayData"`
	SessionID string   `xml:"sessionID"`
}

type projectDisplayData struct {
	ProjectID    int64      `xml:"projectID"`
	ProjectName  string     `xml:"ProjectName"`
	Group        string     `xml:"Group"`
	Preset       string     `xml:"Preset"`
	Owner        string     `xml:"Owner"`
	LastScanDate dotNetTime `xml:"LastScanDate"`
	TotalScans   int64      `xml:"TotalScans"`
}

type projectsDisplayDataResult struct {
	basicResult
	Projects []projectDisplayData `xml:"projectList>ProjectDisplayData"`
}

type presetListRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetPresetList"`
	SessionID string   `xml:"SessionID"`
}

type preset struct {
	ID         int64  `xml:"ID"`
	PresetName string `xml:"PresetName"`
}

type presetListResult struct {
	basicResult
	Presets []preset `xml:"PresetList>Preset"`
}

type configurationSetListRequest struct {
	XMLName   xml.Name `xml:"http://Checkmarx.com/v7 GetConfigurationSetList"`
	SessionID string   `xml:"SessionID"`
}

type configurationSet struct {
	ID            int64  `xml:"ID"`
	ConfigSetName string `xml:"ConfigSetName"`
}

type configurationSetListResult struct {
	basicResult
	ConfigurationSets []configurationSet `xml:"ConfigSetList>ConfigurationSet"`
}

type isValidProjectNameRequest struct {
	XMLName     xml.Name `xml:"http://Checkmarx.com/v7 IsValidProjectName"`
	SessionID   string   `xml:"SessionID"`
	ProjectName string   `xml:"ProjectName"`
	GroupID     string   `xml:"GroupId"`
}
