// Package filesystem provides afero-backed storage for scan payloads and
// generated reports.
package filesystem

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/ahrav/cxscan/internal/domain/scanning"
)

// Encoding describes what a payload file holds on disk.
type Encoding int

const (
	// EncodingBase64 means the file already holds the base64 text the server
	// expects and is streamed verbatim.
	EncodingBase64 Encoding = iota
	// EncodingRaw means the file holds the raw archive, which is base64
	// encoded on the fly while it is read.
	EncodingRaw
)

func (e Encoding) String() string {
	switch e {
	case EncodingBase64:
		return "base64"
	case EncodingRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// ParseEncoding converts "base64" or "raw" into an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "base64":
		return EncodingBase64, nil
	case "raw":
		return EncodingRaw, nil
	default:
		return 0, fmt.Errorf("unsupported payload encoding %q", s)
	}
}

var _ scanning.Blob = (*FileBlob)(nil)

// FileBlob is a scan payload stored in a file.
type FileBlob struct {
	fs       afero.Fs
	path     string
	encoding Encoding
	diskSize int64
}

// NewFileBlob stats path and returns a blob over it.
func NewFileBlob(fs afero.Fs, path string, encoding Encoding) (*FileBlob, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat payload %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("payload %s is a directory", path)
	}
	return &FileBlob{fs: fs, path: path, encoding: encoding, diskSize: info.Size()}, nil
}

// Name returns the file path.
func (b *FileBlob) Name() string { return b.path }

// Size is the number of bytes Open yields, after encoding.
func (b *FileBlob) Size() int64 {
	if b.encoding == EncodingRaw {
		return int64(base64.StdEncoding.EncodedLen(int(b.diskSize)))
	}
	return b.diskSize
}

// Open returns a reader over the encoded payload. Exactly one file handle is
// opened; it is released when the returned reader is closed.
func (b *FileBlob) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := b.fs.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload %s: %w", b.path, err)
	}
	if b.encoding != EncodingRaw {
		return f, nil
	}
	return newEncodingReader(f), nil
}

// encodingReader base64 encodes src through a pipe.
type encodingReader struct {
	pr   *io.PipeReader
	done chan struct{}
}

func newEncodingReader(src afero.File) *encodingReader {
	pr, pw := io.Pipe()
	r := &encodingReader{pr: pr, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		defer src.Close()

		enc := base64.NewEncoder(base64.StdEncoding, pw)
		_, err := io.Copy(enc, src)
		if err == nil {
			err = enc.Close()
		}
		pw.CloseWithError(err)
	}()

	return r
}

func (r *encodingReader) Read(p []byte) (int, error) { return r.pr.Read(p) }

// Close stops the encoder and waits for the file handle to be released.
func (r *encodingReader) Close() error {
	err := r.pr.Close()
	<-r.done
	return err
}
