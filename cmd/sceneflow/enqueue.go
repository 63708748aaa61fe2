package main

import (
	"errors"

	"github.com/spf13/cobra"

	"sceneflow-go/internal/manifest"
	"sceneflow-go/internal/queue"
)

var manifestPath string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Publish the documents listed in a spreadsheet to the input queue",
	Long: `Enqueue reads the first sheet of an xlsx manifest and publishes one job
per row that has an http(s) link. Columns are found by header name: link/url,
file name, type/format and correlation id; Russian headers work too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if manifestPath == "" {
			return errors.New("--manifest is required")
		}
		cfg, log := loadConfig()

		jobs, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		log.WithField("manifest", manifestPath).WithField("jobs", len(jobs)).Info("manifest loaded")

		sent, err := queue.Enqueue(cmd.Context(), cfg.Broker, jobs, log)
		log.WithField("queue", cfg.Broker.InputQueue).WithField("sent", sent).Info("enqueue finished")
		return err
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&manifestPath, "manifest", "", "xlsx manifest of documents to enqueue")
}
