package envloader

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cxscan/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CXSCAN_SERVER_URL", "https://cx.example.com")
	t.Setenv("CXSCAN_SERVER_USERNAME", "admin")
	t.Setenv("CXSCAN_SERVER_PASSWORD", "secret")
	t.Setenv("CXSCAN_SCAN_PROJECT_NAME", "payments")
	t.Setenv("CXSCAN_SCAN_ARCHIVE_PATH", "/work/src.zip")
}

func TestEnvLoader_Load(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CXSCAN_POLLING_SCAN_INTERVAL", "15s")
	t.Setenv("CXSCAN_SCAN_PRIVATE", "true")
	t.Setenv("CXSCAN_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CXSCAN_KAFKA_TOPIC", "scan-progress")

	cfg, err := NewEnvLoader().Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://cx.example.com", cfg.Server.URL)
	assert.Equal(t, "payments", cfg.Scan.ProjectName)
	assert.True(t, cfg.Scan.Private)
	assert.Equal(t, 15*time.Second, cfg.Polling.ScanInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)

	d := config.Default()
	assert.Equal(t, d.Polling.ReportInterval, cfg.Polling.ReportInterval)
	assert.Equal(t, d.HTTP.ResponseHeaderTimeout, cfg.HTTP.ResponseHeaderTimeout)
	assert.Equal(t, d.Scan.StreamingThreshold, cfg.Scan.StreamingThreshold)
}

func TestEnvLoader_EnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/cxscan.yaml", []byte(`
server:
  url: https://file.example.com
  username: file-user
  password: file-pass
scan:
  project_name: from-file
  archive_path: /work/src.zip
report:
  type: CSV
`), 0o600))
	t.Setenv("CXSCAN_SERVER_URL", "https://env.example.com")

	cfg, err := NewEnvLoader(WithFs(fs), WithConfigFile("/etc/cxscan.yaml")).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Server.URL)
	assert.Equal(t, "file-user", cfg.Server.Username)
	assert.Equal(t, "from-file", cfg.Scan.ProjectName)
	assert.Equal(t, "CSV", cfg.Report.Type)
}

func TestEnvLoader_Load_Invalid(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CXSCAN_LOG_LEVEL", "verbose")

	_, err := NewEnvLoader().Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestEnvLoader_Load_MissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := NewEnvLoader(WithFs(afero.NewMemMapFs()), WithConfigFile("/missing.yaml")).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
