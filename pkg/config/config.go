package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/port-labs/incremental-sync/pkg/query"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

// Settings holds everything one sync run needs. Field sources, in
// override order: defaults, YAML file, environment.
type Settings struct {
	// WebhookIngestURL is the Port webhook ingestion endpoint.
	WebhookIngestURL string `yaml:"webhookIngestUrl" envconfig:"PORT_WEBHOOK_INGEST_URL" validate:"required,url"`

	// ManagementEndpoint is the Azure Resource Manager base URL.
	ManagementEndpoint string `yaml:"managementEndpoint" envconfig:"AZURE_MANAGEMENT_ENDPOINT" validate:"required,url"`

	// AzureTenantID, AzureClientID and AzureClientSecret authenticate the
	// client-credentials flow. AzureAccessToken bypasses it with a
	// pre-provisioned token; one of the two forms must be supplied.
	AzureTenantID     string `yaml:"azureTenantId" envconfig:"AZURE_TENANT_ID"`
	AzureClientID     string `yaml:"azureClientId" envconfig:"AZURE_CLIENT_ID"`
	AzureClientSecret string `yaml:"azureClientSecret" envconfig:"AZURE_CLIENT_SECRET"`
	AzureAccessToken  string `yaml:"azureAccessToken" envconfig:"AZURE_ACCESS_TOKEN"`

	// SyncMode selects incremental or full synchronization.
	SyncMode string `yaml:"syncMode" envconfig:"SYNC_MODE" validate:"oneof=incremental full"`

	// ChangeWindowMinutes scopes incremental queries to changes newer
	// than this many minutes.
	ChangeWindowMinutes int `yaml:"changeWindowMinutes" envconfig:"CHANGE_WINDOW_MINUTES" validate:"min=1"`

	// SubscriptionBatchSize is how many subscriptions are queried per
	// Resource Graph call.
	SubscriptionBatchSize int `yaml:"subscriptionBatchSize" envconfig:"SUBSCRIPTION_BATCH_SIZE" validate:"min=1,max=1000"`

	// DeliveryConcurrency bounds in-flight webhook calls.
	DeliveryConcurrency int `yaml:"deliveryConcurrency" envconfig:"DELIVERY_CONCURRENCY" validate:"min=1,max=100"`

	// RateLimitCapacity is the token bucket capacity for query calls.
	RateLimitCapacity int `yaml:"rateLimitCapacity" envconfig:"RATE_LIMIT_CAPACITY" validate:"min=1"`

	// RateLimitRefillPerSecond is the token bucket refill rate.
	RateLimitRefillPerSecond float64 `yaml:"rateLimitRefillPerSecond" envconfig:"RATE_LIMIT_REFILL_PER_SECOND" validate:"gte=0"`

	// HTTPTimeoutSeconds is the per-call timeout for outbound HTTP.
	HTTPTimeoutSeconds int `yaml:"httpTimeoutSeconds" envconfig:"HTTP_TIMEOUT_SECONDS" validate:"min=1"`

	// ResourceGroupTagFilters is the JSON-encoded include/exclude tag
	// specification for resource containers; see TagFilters.
	ResourceGroupTagFilters string `yaml:"resourceGroupTagFilters" envconfig:"RESOURCE_GROUP_TAG_FILTERS"`

	// RunHistoryDB is the sqlite file recording run outcomes; empty
	// disables persistence.
	RunHistoryDB string `yaml:"runHistoryDb" envconfig:"RUN_HISTORY_DB"`

	// LogLevel and LogFormat configure the structured logger.
	LogLevel  string `yaml:"logLevel" envconfig:"LOG_LEVEL" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"logFormat" envconfig:"LOG_FORMAT" validate:"oneof=console json"`

	// MetricsListenAddress exposes Prometheus metrics during the run;
	// empty disables the endpoint.
	MetricsListenAddress string `yaml:"metricsListenAddress" envconfig:"METRICS_LISTEN_ADDRESS"`

	// TraceExporter and TraceEndpoint configure OpenTelemetry tracing.
	// Exporter "none" keeps tracing off.
	TraceExporter string `yaml:"traceExporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout otlp"`
	TraceEndpoint string `yaml:"traceEndpoint" envconfig:"TRACE_ENDPOINT"`
}

// defaults returns the built-in settings baseline.
func defaults() *Settings {
	return &Settings{
		ManagementEndpoint:       "https://management.azure.com",
		SyncMode:                 "incremental",
		ChangeWindowMinutes:      15,
		SubscriptionBatchSize:    1000,
		DeliveryConcurrency:      25,
		RateLimitCapacity:        10,
		RateLimitRefillPerSecond: 5,
		HTTPTimeoutSeconds:       20,
		LogLevel:                 "info",
		LogFormat:                "console",
		TraceExporter:            "none",
	}
}

// Load assembles the settings from defaults, the optional YAML file at
// path, and the environment. A .env file in the working directory is
// loaded best-effort first so local runs behave like deployed ones.
func Load(path string) (*Settings, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	s := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// envconfig only touches fields whose variables are present, so the
	// environment overrides both defaults and file values.
	if err := envconfig.Process("", s); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := validator.New().Struct(s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Telemetry maps the flat settings onto the telemetry configuration.
func (s *Settings) Telemetry(serviceVersion string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = serviceVersion
	cfg.Logging.Level = s.LogLevel
	cfg.Logging.Format = s.LogFormat
	if s.MetricsListenAddress != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = s.MetricsListenAddress
	}
	if s.TraceExporter != "" && s.TraceExporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = s.TraceExporter
		cfg.Tracing.Endpoint = s.TraceEndpoint
	}
	return cfg
}

// TagFilters decodes the JSON tag-filter specification. Malformed input
// degrades to an empty filter set with a logged warning; it never fails
// the run.
func (s *Settings) TagFilters(log *telemetry.Logger) query.TagFilters {
	filters, err := ParseTagFilters(s.ResourceGroupTagFilters)
	if err != nil {
		log.WithError(err).Warn("Ignoring malformed resource group tag filters")
		return query.TagFilters{}
	}
	return filters
}

// ParseTagFilters decodes a JSON object with optional include/exclude
// string maps. An empty input yields an empty filter set.
func ParseTagFilters(raw string) (query.TagFilters, error) {
	var filters query.TagFilters
	if raw == "" {
		return filters, nil
	}
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return query.TagFilters{}, fmt.Errorf("invalid tag filter JSON: %w", err)
	}
	return filters, nil
}
