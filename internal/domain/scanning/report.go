package scanning

import (
	"fmt"
	"strings"
)

// ReportType is the format a scan report is rendered in.
type ReportType string

const (
	ReportTypePDF ReportType = "PDF"
	ReportTypeRTF ReportType = "RTF"
	ReportTypeCSV ReportType = "CSV"
	ReportTypeXML ReportType = "XML"
)

func (t ReportType) String() string { return string(t) }

// ParseReportType converts a case-insensitive name into a ReportType.
func ParseReportType(s string) (ReportType, error) {
	switch t := ReportType(strings.ToUpper(strings.TrimSpace(s))); t {
	case ReportTypePDF, ReportTypeRTF, ReportTypeCSV, ReportTypeXML:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported report type %q", s)
	}
}

// ReportJob identifies a server-side report generation task.
type ReportJob struct {
	ID     int64
	ScanID int64
	Type   ReportType
}

// ReportStatus is the readiness of a report job. It is independent of the
// scan status enumeration.
type ReportStatus struct {
	Ready  bool
	Failed bool
}
