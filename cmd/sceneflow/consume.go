package main

import (
	"github.com/spf13/cobra"

	"sceneflow-go/internal/enrich"
	"sceneflow-go/internal/exporter"
	"sceneflow-go/internal/fetcher"
	"sceneflow-go/internal/health"
	"sceneflow-go/internal/pipeline"
	"sceneflow-go/internal/queue"
	"sceneflow-go/internal/storage"
	"sceneflow-go/internal/textextract"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume documents from the input queue until interrupted",
	Long: `Consume connects to the broker, processes one document at a time and
publishes a completion message for every exported document.

Probes are served on health.addr:
  - /healthz - process is alive
  - /readyz  - consumer holds a live subscription`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log := loadConfig()
		log.WithField("environment", cfg.Environment).Info("starting service")

		gen, err := enrich.NewGenerator(ctx, cfg.LLM)
		if err != nil {
			return err
		}
		client := enrich.NewClient(gen, enrich.OptionsFromConfig(cfg.LLM), log)

		uploader, err := storage.NewFromConfig(cfg.Storage, log)
		if err != nil {
			return err
		}
		exp, err := exporter.New(uploader, cfg.Export.Formats, log)
		if err != nil {
			return err
		}

		registry := textextract.NewRegistry()
		consumer := queue.NewConsumer(cfg.Broker, registry.Supports, log)
		pipe := pipeline.New(pipeline.Deps{
			Fetcher:   fetcher.New(cfg.Fetch, log),
			Extractor: registry,
			Enricher:  client,
			Exporter:  exp,
			Publisher: consumer,
		}, pipeline.Options{Concurrency: cfg.Pipeline.Concurrency}, log)

		if cfg.Health.Addr != "" {
			go func() {
				if err := health.Serve(ctx, cfg.Health.Addr, consumer, log); err != nil {
					log.WithError(err).Error("probe server stopped")
				}
			}()
		}

		log.WithField("model", cfg.LLM.Model).
			WithField("provider", cfg.LLM.Provider).
			WithField("formats", registry.Formats()).
			Info("pipeline ready")
		if err := consumer.Run(ctx, pipe); err != nil {
			return err
		}
		log.Info("shutdown complete")
		return nil
	},
}
