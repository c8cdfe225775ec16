// Package envloader loads configuration from CXSCAN_* environment variables,
// optionally layered over a config file.
package envloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/ahrav/cxscan/internal/config"
)

// EnvPrefix is prepended to every environment variable, e.g.
// CXSCAN_SERVER_URL for server.url.
const EnvPrefix = "CXSCAN"

var _ config.Loader = (*EnvLoader)(nil)

// EnvLoader resolves configuration from defaults, an optional file, and the
// environment, in increasing order of precedence.
type EnvLoader struct {
	fs   afero.Fs
	file string
}

// Option configures an EnvLoader.
type Option func(*EnvLoader)

// WithConfigFile layers the environment over the given YAML file.
func WithConfigFile(path string) Option {
	return func(l *EnvLoader) { l.file = path }
}

// WithFs reads the config file from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(l *EnvLoader) { l.fs = fs }
}

// NewEnvLoader creates an EnvLoader.
func NewEnvLoader(opts ...Option) *EnvLoader {
	l := &EnvLoader{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves and validates the configuration.
func (l *EnvLoader) Load(ctx context.Context) (*config.Config, error) {
	v := viper.New()
	v.SetFs(l.fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows, so every key gets
	// a default.
	for key, value := range defaults(config.Default()) {
		v.SetDefault(key, value)
	}

	if l.file != "" {
		v.SetConfigFile(l.file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults(d config.Config) map[string]any {
	return map[string]any{
		"server.url":           d.Server.URL,
		"server.username":      d.Server.Username,
		"server.password":      d.Server.Password,
		"server.connect_retry": d.Server.ConnectRetry,

		"scan.project_id":          d.Scan.ProjectID,
		"scan.project_name":        d.Scan.ProjectName,
		"scan.preset_id":           d.Scan.PresetID,
		"scan.group_id":            d.Scan.GroupID,
		"scan.configuration_id":    d.Scan.ConfigurationID,
		"scan.description":         d.Scan.Description,
		"scan.private":             d.Scan.Private,
		"scan.incremental":         d.Scan.Incremental,
		"scan.archive_path":        d.Scan.ArchivePath,
		"scan.archive_encoding":    d.Scan.ArchiveEncoding,
		"scan.file_name":           d.Scan.FileName,
		"scan.streaming_threshold": d.Scan.StreamingThreshold,

		"report.type": d.Report.Type,
		"report.path": d.Report.Path,

		"polling.scan_interval":   d.Polling.ScanInterval,
		"polling.report_interval": d.Polling.ReportInterval,
		"polling.deadline":        d.Polling.Deadline,

		"http.dial_timeout":            d.HTTP.DialTimeout,
		"http.tls_handshake_timeout":   d.HTTP.TLSHandshakeTimeout,
		"http.response_header_timeout": d.HTTP.ResponseHeaderTimeout,
		"http.insecure_skip_verify":    d.HTTP.InsecureSkipVerify,
		"http.max_retries":             d.HTTP.MaxRetries,
		"http.requests_per_second":     d.HTTP.RequestsPerSecond,
		"http.burst":                   d.HTTP.Burst,

		"telemetry.endpoint":    d.Telemetry.Endpoint,
		"telemetry.sample_rate": d.Telemetry.SampleRate,
		"telemetry.insecure":    d.Telemetry.Insecure,

		"kafka.brokers":   append([]string{}, d.Kafka.Brokers...),
		"kafka.topic":     d.Kafka.Topic,
		"kafka.client_id": d.Kafka.ClientID,

		"log.level": d.Log.Level,
	}
}
