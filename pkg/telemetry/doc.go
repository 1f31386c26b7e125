// Package telemetry provides observability instrumentation for the sync
// engine: structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus).
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "azure-sync"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Component loggers carry a stable component field:
//
//	logger := tel.Logger.NewComponentLogger("dispatcher")
//	logger.WithError(err).Warn("Dropping delivery task")
//
// Both *Metrics and *Tracer are safe to use as nil receivers, which keeps
// instrumentation optional for tests and library consumers.
package telemetry
