package fileloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/cxscan/internal/config"
)

var _ config.Loader = (*FileLoader)(nil)

// FileLoader loads configuration from a YAML file. Unknown keys are rejected
// and omitted keys keep their defaults.
type FileLoader struct {
	fs   afero.Fs
	path string
}

// NewFileLoader creates a FileLoader reading path from the OS filesystem.
func NewFileLoader(path string) *FileLoader {
	return NewFileLoaderFs(afero.NewOsFs(), path)
}

// NewFileLoaderFs creates a FileLoader reading path from fs.
func NewFileLoaderFs(fs afero.Fs, path string) *FileLoader {
	return &FileLoader{fs: fs, path: path}
}

// Load reads, parses and validates the configuration file.
func (l *FileLoader) Load(ctx context.Context) (*config.Config, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := config.Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
