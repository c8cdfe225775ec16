// Package config defines the configuration of the cxscan host.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Polling   PollingConfig   `yaml:"polling" mapstructure:"polling"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Kafka     KafkaConfig     `yaml:"kafka" mapstructure:"kafka"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig locates and authenticates against the analysis server.
type ServerConfig struct {
	// URL is the base address, scheme and host only.
	URL      string `yaml:"url" mapstructure:"url" validate:"required,url"`
	Username string `yaml:"username" mapstructure:"username" validate:"required"`
	Password string `yaml:"password" mapstructure:"password" validate:"required"`

	// ConnectRetry bounds how long an unreachable resolver is retried. Zero
	// means a single attempt.
	ConnectRetry time.Duration `yaml:"connect_retry" mapstructure:"connect_retry" validate:"gte=0"`
}

// ScanConfig describes the project and the sources submitted for analysis.
type ScanConfig struct {
	ProjectID       int64  `yaml:"project_id" mapstructure:"project_id" validate:"gte=0"`
	ProjectName     string `yaml:"project_name" mapstructure:"project_name" validate:"required"`
	PresetID        int64  `yaml:"preset_id" mapstructure:"preset_id" validate:"gte=0"`
	GroupID         string `yaml:"group_id" mapstructure:"group_id"`
	ConfigurationID int64  `yaml:"configuration_id" mapstructure:"configuration_id" validate:"gte=0"`
	Description     string `yaml:"description" mapstructure:"description"`
	Private         bool   `yaml:"private" mapstructure:"private"`
	Incremental     bool   `yaml:"incremental" mapstructure:"incremental"`

	// ArchivePath is the zipped sources. ArchiveEncoding says whether the
	// file already holds base64 text or raw zip bytes.
	ArchivePath     string `yaml:"archive_path" mapstructure:"archive_path" validate:"required"`
	ArchiveEncoding string `yaml:"archive_encoding" mapstructure:"archive_encoding" validate:"oneof=base64 raw"`
	FileName        string `yaml:"file_name" mapstructure:"file_name"`

	// StreamingThreshold is the encoded size above which the archive is
	// streamed instead of inlined.
	StreamingThreshold int64 `yaml:"streaming_threshold" mapstructure:"streaming_threshold" validate:"gte=0"`
}

// ReportConfig selects the report to download once the scan finishes. An
// empty Path skips the report.
type ReportConfig struct {
	Type string `yaml:"type" mapstructure:"type" validate:"oneof=PDF RTF CSV XML pdf rtf csv xml"`
	Path string `yaml:"path" mapstructure:"path"`
}

// PollingConfig controls the status and report poll loops.
type PollingConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval" mapstructure:"scan_interval" validate:"gt=0"`
	ReportInterval time.Duration `yaml:"report_interval" mapstructure:"report_interval" validate:"gt=0"`
	// Deadline bounds each poll loop. Zero means no deadline.
	Deadline time.Duration `yaml:"deadline" mapstructure:"deadline" validate:"gte=0"`
}

// HTTPConfig tunes the outbound HTTP transport.
type HTTPConfig struct {
	DialTimeout           time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gt=0"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout" mapstructure:"tls_handshake_timeout" validate:"gte=0"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" mapstructure:"response_header_timeout" validate:"gte=0"`
	InsecureSkipVerify    bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	MaxRetries            int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	RequestsPerSecond     float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	Burst                 int           `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// TelemetryConfig enables OTLP export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
}

// KafkaConfig enables publishing progress events when Brokers is set.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" mapstructure:"brokers"`
	Topic    string   `yaml:"topic" mapstructure:"topic" validate:"required_with=Brokers"`
	ClientID string   `yaml:"client_id" mapstructure:"client_id"`
}

// Enabled reports whether progress events should be published.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Default returns a Config holding every default value.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			ArchiveEncoding:    "raw",
			FileName:           "src.zip",
			StreamingThreshold: 8 << 20,
		},
		Report: ReportConfig{Type: "XML"},
		Polling: PollingConfig{
			ScanInterval:   10 * time.Second,
			ReportInterval: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			DialTimeout:           30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 5 * time.Minute,
			Burst:                 1,
		},
		Telemetry: TelemetryConfig{SampleRate: 1},
		Kafka:     KafkaConfig{ClientID: "cxscan"},
		Log:       LogConfig{Level: "info"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks c against its field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
