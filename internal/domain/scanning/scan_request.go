package scanning

import (
	"context"
	"io"
)

// SourceOrigin tells the server where the sources of a scan come from.
type SourceOrigin string

const (
	// SourceOriginLocal means the sources are uploaded as a packaged archive.
	SourceOriginLocal SourceOrigin = "Local"
	// SourceOriginSharedPath means the server reads sources from a network share.
	SourceOriginSharedPath SourceOrigin = "SharedPath"
	// SourceOriginSourceControl means the server pulls from a source control system.
	SourceOriginSourceControl SourceOrigin = "SourceControl"
	// SourceOriginSourcePulling means the server runs a pulling action to fetch sources.
	SourceOriginSourcePulling SourceOrigin = "SourcePulling"
)

func (o SourceOrigin) String() string { return string(o) }

// ParseSourceOrigin converts a string into a SourceOrigin. It returns false
// for values the server does not understand.
func ParseSourceOrigin(s string) (SourceOrigin, bool) {
	switch SourceOrigin(s) {
	case SourceOriginLocal, SourceOriginSharedPath, SourceOriginSourceControl, SourceOriginSourcePulling:
		return SourceOrigin(s), true
	default:
		return "", false
	}
}

// DefaultArchiveFileName is the file name the server records for an uploaded archive.
const DefaultArchiveFileName = "src.zip"

// ProjectSettings identifies the project a scan belongs to and how it is scanned.
type ProjectSettings struct {
	// ProjectID is zero for a project the server has not seen yet.
	ProjectID           int64
	ProjectName         string
	PresetID            int64
	AssociatedGroupID   string
	ScanConfigurationID int64
	Description         string
}

// Credentials are the user/password pair used both for login and for
// source-control access in SourceCodeSettings.
type Credentials struct {
	User string
	Pass string
}

// ScanPath is a single path on a shared location to include in the scan.
type ScanPath struct {
	Path           string
	IncludeSubTree bool
}

// PackagedCode carries an inline archive. ZippedFile holds the raw archive
// bytes; they are base64 encoded on the wire, so callers must not encode them.
type PackagedCode struct {
	ZippedFile []byte
	FileName   string
}

// SourceCodeSettings describe where the sources are and how to obtain them.
type SourceCodeSettings struct {
	Origin        SourceOrigin
	Credentials   Credentials
	PathList      []ScanPath
	Packaged      PackagedCode
	PullingAction string
}

// ScanRequest is the full set of arguments for a scan submission.
type ScanRequest struct {
	Project       ProjectSettings
	Source        SourceCodeSettings
	IsPrivateScan bool
	IsIncremental bool
}

// Blob is an external payload that is streamed rather than held in memory.
// Its content is sent verbatim, so it must already be in the wire encoding
// the server expects for PackagedCode.ZippedFile.
type Blob interface {
	// Open returns a fresh reader over the payload. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Size is the exact number of bytes Open will yield.
	Size() int64
	// Name identifies the blob in logs and errors.
	Name() string
}

// StreamedScanRequest is a ScanRequest whose packaged archive is read from
// Payload instead of Source.Packaged.ZippedFile, which is ignored.
type StreamedScanRequest struct {
	ScanRequest
	Payload Blob
}

// JobHandle is the server-assigned identity of a submitted scan. RunID is
// only ever used as the correlation key for status queries.
type JobHandle struct {
	RunID     string
	ProjectID int64
}
