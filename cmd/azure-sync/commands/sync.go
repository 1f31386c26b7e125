package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/port-labs/incremental-sync/pkg/azure"
	"github.com/port-labs/incremental-sync/pkg/config"
	"github.com/port-labs/incremental-sync/pkg/engine"
	"github.com/port-labs/incremental-sync/pkg/port"
	"github.com/port-labs/incremental-sync/pkg/ratelimit"
	"github.com/port-labs/incremental-sync/pkg/stores"
	"github.com/port-labs/incremental-sync/pkg/telemetry"
)

func newSyncCommand() *cobra.Command {
	var (
		mode          string
		windowMinutes int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass",
		Long: `Execute one synchronization run against the configured Azure estate.

In incremental mode only resources changed within the configured window
are synchronized; in full mode the entire inventory is re-sent.`,
		Example: `  # Incremental sync with settings from the environment
  azure-sync sync

  # Full inventory resync
  azure-sync sync --mode full

  # Wider change window
  azure-sync sync --window-minutes 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if mode != "" {
				settings.SyncMode = mode
			}
			if windowMinutes > 0 {
				settings.ChangeWindowMinutes = windowMinutes
			}
			return runSync(cmd.Context(), settings, cmd.Root().Version)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "sync mode (incremental or full)")
	cmd.Flags().IntVarP(&windowMinutes, "window-minutes", "w", 0, "incremental change window in minutes")

	return cmd
}

func runSync(ctx context.Context, settings *config.Settings, version string) error {
	tel, err := telemetry.NewTelemetry(settings.Telemetry(version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	if err := tel.StartMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	log := tel.Logger
	runID := uuid.NewString()
	log = log.WithRunID(runID)

	timeout := time.Duration(settings.HTTPTimeoutSeconds) * time.Second

	var tokens azure.TokenSource
	switch {
	case settings.AzureAccessToken != "":
		tokens = azure.StaticTokenSource(settings.AzureAccessToken)
	case settings.AzureTenantID != "":
		tokens = azure.ClientCredentialsTokenSource(
			settings.AzureTenantID, settings.AzureClientID, settings.AzureClientSecret, nil)
	default:
		return fmt.Errorf("no Azure credentials configured: set AZURE_ACCESS_TOKEN or the AZURE_TENANT_ID/AZURE_CLIENT_ID/AZURE_CLIENT_SECRET triple")
	}

	client := azure.NewClient(settings.ManagementEndpoint, timeout, tokens, log)
	sender := port.NewWebhookSender(settings.WebhookIngestURL, timeout, log)

	limiter := ratelimit.NewTokenBucket(settings.RateLimitCapacity, settings.RateLimitRefillPerSecond)
	runner := engine.NewQueryRunner(client, limiter, log, tel.Metrics)
	dispatcher := engine.NewDispatcher(sender, settings.DeliveryConcurrency, log, tel.Metrics)

	orchestrator := engine.NewOrchestrator(client, runner, dispatcher, engine.Options{
		Mode:                  engine.SyncMode(settings.SyncMode),
		WindowMinutes:         settings.ChangeWindowMinutes,
		SubscriptionBatchSize: settings.SubscriptionBatchSize,
		Filters:               settings.TagFilters(log),
	}, log, tel.Metrics, tel.Tracer)

	var recorder engine.RunRecorder
	if settings.RunHistoryDB != "" {
		store, err := stores.NewRunStore(settings.RunHistoryDB)
		if err != nil {
			return err
		}
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("failed to open run history store: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	started := time.Now().UTC()
	summary, runErr := orchestrator.Run(ctx)

	if recorder != nil {
		record := engine.RunRecord{
			ID:          runID,
			Mode:        engine.SyncMode(settings.SyncMode),
			Status:      "completed",
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
			Summary:     summary,
		}
		if runErr != nil {
			record.Status = "failed"
			record.Error = runErr.Error()
		}
		if err := recorder.RecordRun(ctx, record); err != nil {
			log.WithError(err).Warn("Failed to persist run record")
		}
	}

	if runErr != nil {
		return runErr
	}

	log.WithField("run_id", runID).
		WithField("records", summary.Records).
		WithField("dropped", summary.Dropped).
		Info("Synchronization finished")
	return nil
}
