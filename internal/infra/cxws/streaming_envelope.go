package cxws

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

// ErrUnsafeEnvelopeField is returned when a value interpolated into the
// literal streaming envelope would need XML escaping.
var ErrUnsafeEnvelopeField = errors.New("envelope field contains characters that require escaping")

// UnsafeFieldError names the offending field.
type UnsafeFieldError struct {
	Field string
}

func (e *UnsafeFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsafeEnvelopeField, e.Field)
}

func (e *UnsafeFieldError) Unwrap() error { return ErrUnsafeEnvelopeField }

// ScanEnvelope is the Scan request split around the ZippedFile content. The
// payload is written between Head and Tail verbatim.
type ScanEnvelope struct {
	Head []byte
	Tail []byte
}

// ContentLength is the size of the full request for a payload of size bytes.
func (e ScanEnvelope) ContentLength(size int64) int64 {
	return int64(len(e.Head)) + int64(len(e.Tail)) + size
}

// BuildScanEnvelope renders the Scan request for sessionID and req as literal
// head and tail fragments. Values are interpolated without escaping, so any
// value that would need it is rejected instead.
func BuildScanEnvelope(sessionID string, req scanning.ScanRequest) (ScanEnvelope, error) {
	if _, ok := scanning.ParseSourceOrigin(req.Source.Origin.String()); !ok {
		return ScanEnvelope{}, fmt.Errorf("unsupported source origin %q", req.Source.Origin)
	}

	fileName := req.Source.Packaged.FileName
	if fileName == "" {
		fileName = scanning.DefaultArchiveFileName
	}

	fields := []struct {
		name  string
		value string
	}{
		{"sessionId", sessionID},
		{"ProjectName", req.Project.ProjectName},
		{"AssociatedGroupID", req.Project.AssociatedGroupID},
		{"Description", req.Project.Description},
		{"User", req.Source.Credentials.User},
		{"Pass", req.Source.Credentials.Pass},
		{"FileName", fileName},
		{"SourcePullingAction", req.Source.PullingAction},
	}
	for i, p := range req.Source.PathList {
		fields = append(fields, struct {
			name  string
			value string
		}{fmt.Sprintf("PathList[%d]", i), p.Path})
	}
	for _, f := range fields {
		if !safeText(f.value) {
			return ScanEnvelope{}, &UnsafeFieldError{Field: f.name}
		}
	}

	var head strings.Builder
	head.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	head.WriteString(`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` + "\n")
	head.WriteString("  <soap:Body>\n")
	head.WriteString(`    <Scan xmlns="http://Checkmarx.com/v7">` + "\n")
	head.WriteString("      <sessionId>" + sessionID + "</sessionId>\n")
	head.WriteString("      <args>\n")
	head.WriteString("        <PrjSettings>\n")
	head.WriteString("          <projectID>" + strconv.FormatInt(req.Project.ProjectID, 10) + "</projectID>\n")
	head.WriteString("          <ProjectName>" + req.Project.ProjectName + "</ProjectName>\n")
	head.WriteString("          <PresetID>" + strconv.FormatInt(req.Project.PresetID, 10) + "</PresetID>\n")
	head.WriteString("          <AssociatedGroupID>" + req.Project.AssociatedGroupID + "</AssociatedGroupID>\n")
	head.WriteString("          <ScanConfigurationID>" + strconv.FormatInt(req.Project.ScanConfigurationID, 10) + "</ScanConfigurationID>\n")
	head.WriteString("          <Description>" + req.Project.Description + "</Description>\n")
	head.WriteString("        </PrjSettings>\n")
	head.WriteString("        <SrcCodeSettings>\n")
	head.WriteString("          <SourceOrigin>" + req.Source.Origin.String() + "</SourceOrigin>\n")
	head.WriteString("          <UserCredentials>\n")
	head.WriteString("            <User>" + req.Source.Credentials.User + "</User>\n")
	head.WriteString("            <Pass>" + req.Source.Credentials.Pass + "</Pass>\n")
	head.WriteString("          </UserCredentials>\n")
	head.WriteString("          <PathList>\n")
	for _, p := range req.Source.PathList {
		head.WriteString("            <ScanPath>\n")
		head.WriteString("              <Path>" + p.Path + "</Path>\n")
		head.WriteString("              <IncludeSubTree>" + strconv.FormatBool(p.IncludeSubTree) + "</IncludeSubTree>\n")
		head.WriteString("            </ScanPath>\n")
	}
	head.WriteString("          </PathList>\n")
	head.WriteString("          <PackagedCode>\n")
	head.WriteString("            <ZippedFile>")

	var tail strings.Builder
	tail.WriteString("</ZippedFile>\n")
	tail.WriteString("            <FileName>" + fileName + "</FileName>\n")
	tail.WriteString("          </PackagedCode>\n")
	tail.WriteString("          <SourcePullingAction>" + req.Source.PullingAction + "</SourcePullingAction>\n")
	tail.WriteString("        </SrcCodeSettings>\n")
	tail.WriteString("        <IsPrivateScan>" + strconv.FormatBool(req.IsPrivateScan) + "</IsPrivateScan>\n")
	tail.WriteString("        <IsIncremental>" + strconv.FormatBool(req.IsIncremental) + "</IsIncremental>\n")
	tail.WriteString("      </args>\n")
	tail.WriteString("    </Scan>\n")
	tail.WriteString("  </soap:Body>\n")
	tail.WriteString("</soap:Envelope>")

	return ScanEnvelope{Head: []byte(head.String()), Tail: []byte(tail.String())}, nil
}

// safeText reports whether s can appear as XML character data unescaped and
// reach the server unchanged. A literal CR would be normalized to LF.
func safeText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '<', r == '>', r == '&', r == '\'', r == '"':
			return false
		case r == '\t', r == '\n':
		case r < 0x20, r == 0xFFFE, r == 0xFFFF, r >= 0xD800 && r <= 0xDFFF:
			return false
		}
	}
	return true
}
