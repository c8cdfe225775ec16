package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/cxscan/internal/app/scanning"
	"github.com/ahrav/cxscan/internal/config"
	"github.com/ahrav/cxscan/internal/config/envloader"
	"github.com/ahrav/cxscan/internal/config/fileloader"
	domain "github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/internal/infra/cxws"
	"github.com/ahrav/cxscan/internal/infra/eventbus/kafka"
	"github.com/ahrav/cxscan/internal/infra/soap"
	"github.com/ahrav/cxscan/internal/infra/storage/filesystem"
	"github.com/ahrav/cxscan/pkg/common"
	"github.com/ahrav/cxscan/pkg/common/logger"
	"github.com/ahrav/cxscan/pkg/common/otel"
)

const serviceName = "cxscan"

func main() {
	_, _ = maxprocs.Set()

	flags := pflag.NewFlagSet(serviceName, pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	ignoreEnv := flags.Bool("ignore-env", false, "read only the config file, ignoring CXSCAN_* variables")
	list := flags.String("list", "", "print a catalog (projects, presets, configurations) instead of scanning")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loader config.Loader = envloader.NewEnvLoader(envloader.WithConfigFile(*configPath))
	if *ignoreEnv {
		if *configPath == "" {
			fmt.Fprintln(os.Stderr, "--ignore-env requires --config")
			os.Exit(2)
		}
		loader = fileloader.NewFileLoader(*configPath)
	}

	cfg, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	hostname, _ := os.Hostname()
	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}
	metadata := map[string]string{
		"hostname": hostname,
		"app":      serviceName,
	}
	log := logger.NewWithMetadata(
		os.Stdout,
		logger.ParseLevel(cfg.Log.Level),
		serviceName,
		otel.GetTraceID,
		logEvents,
		metadata,
	)

	if err := run(ctx, log, cfg, *list); err != nil {
		log.Error(ctx, "cxscan failed", "error", describe(err))
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, log *logger.Logger, cfg *config.Config, list string) error {
	providers := otel.NoopProviders()
	if cfg.Telemetry.Endpoint != "" {
		var (
			teardown func(context.Context)
			err      error
		)
		providers, teardown, err = otel.InitTelemetry(log, otel.Config{
			ServiceName:      serviceName,
			ExporterEndpoint: cfg.Telemetry.Endpoint,
			Probability:      cfg.Telemetry.SampleRate,
			ResourceAttributes: map[string]string{
				"library.language": "go",
			},
			InsecureExporter: cfg.Telemetry.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			teardown(shutdownCtx)
		}()
	}
	tracer := providers.Tracer.Tracer(serviceName)

	transport := soap.NewTransport(transportConfig(cfg.HTTP), log, tracer)
	retryCfg := common.RetryConfig{InitialInterval: time.Second, MaxElapsedTime: cfg.Server.ConnectRetry}

	ws, err := common.ConnectWithRetry(ctx, log, retryCfg,
		func(ctx context.Context) (*cxws.WebService, error) {
			return cxws.Connect(ctx, transport, cfg.Server.URL, log, tracer)
		},
		domain.ErrServiceNotFound,
	)
	if err != nil {
		return err
	}
	log.Info(ctx, "Resolved web service", "url", ws.Endpoint().Service.String())

	reporters := scanning.MultiReporter{scanning.NewLogProgressReporter(log)}
	if cfg.Kafka.Enabled() {
		producer, err := common.ConnectWithRetry(ctx, log, retryCfg,
			func(context.Context) (sarama.SyncProducer, error) {
				return kafka.NewProducer(&kafka.ClientConfig{
					Brokers:  cfg.Kafka.Brokers,
					ClientID: cfg.Kafka.ClientID,
					Timeout:  cfg.HTTP.DialTimeout,
				})
			},
			sarama.ErrOutOfBrokers,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to kafka: %w", err)
		}
		publisher := kafka.NewProgressPublisher(producer, cfg.Kafka.Topic, log, tracer)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn(ctx, "Failed to close progress publisher", "error", err)
			}
		}()
		reporters = append(reporters, publisher)
	}

	metrics, err := scanning.NewSessionMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	session := scanning.NewSession(ws,
		scanning.WithLogger(log),
		scanning.WithTracer(tracer),
		scanning.WithMetrics(metrics),
		scanning.WithProgressReporter(reporters),
		scanning.WithScanPollInterval(cfg.Polling.ScanInterval),
		scanning.WithReportPollInterval(cfg.Polling.ReportInterval),
		scanning.WithPollDeadline(cfg.Polling.Deadline),
	)

	if err := session.Login(ctx, cfg.Server.Username, cfg.Server.Password); err != nil {
		return err
	}

	if list != "" {
		return printCatalog(ctx, session, list)
	}
	return scan(ctx, log, session, cfg)
}

func scan(ctx context.Context, log *logger.Logger, session *scanning.Session, cfg *config.Config) error {
	fs := afero.NewOsFs()

	encoding, err := filesystem.ParseEncoding(cfg.Scan.ArchiveEncoding)
	if err != nil {
		return err
	}
	blob, err := filesystem.NewFileBlob(fs, cfg.Scan.ArchivePath, encoding)
	if err != nil {
		return err
	}

	if cfg.Scan.ProjectID == 0 {
		if err := session.ValidateProjectName(ctx, cfg.Scan.ProjectName, cfg.Scan.GroupID); err != nil {
			log.Info(ctx, "Project name is not available for a new project, scanning into the existing one",
				"project_name", cfg.Scan.ProjectName,
				"reason", err.Error(),
			)
		}
	}

	handle, err := session.SubmitAuto(ctx, scanRequest(cfg.Scan), blob, cfg.Scan.StreamingThreshold)
	if err != nil {
		return err
	}

	scanID, err := session.TrackScan(ctx, handle)
	if err != nil {
		return err
	}

	if cfg.Report.Path == "" {
		return nil
	}
	reportType, err := domain.ParseReportType(cfg.Report.Type)
	if err != nil {
		return err
	}
	return session.RetrieveReport(ctx, scanID, reportType, filesystem.NewReportFile(fs, cfg.Report.Path))
}

func printCatalog(ctx context.Context, session *scanning.Session, kind string) error {
	var (
		items any
		err   error
	)
	switch kind {
	case "projects":
		items, err = session.Projects(ctx)
	case "presets":
		items, err = session.Presets(ctx)
	case "configurations":
		items, err = session.ConfigurationSets(ctx)
	default:
		return fmt.Errorf("unknown catalog %q", kind)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
