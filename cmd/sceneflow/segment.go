package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sceneflow-go/internal/aggregator"
	"sceneflow-go/internal/segmenter"
	"sceneflow-go/internal/textextract"
)

var segmentType string

var segmentCmd = &cobra.Command{
	Use:   "segment FILE",
	Short: "Extract and segment a local document without enrichment",
	Long: `Segment runs text extraction and scene segmentation on a local file and
prints the scenes as JSON. No broker, storage or model is needed.

Examples:
  sceneflow segment pilot.docx
  sceneflow segment draft --type txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		format := segmentType
		if format == "" {
			format = textextract.FormatFromName(args[0])
		}

		registry := textextract.NewRegistry()
		if !registry.Supports(format) {
			return fmt.Errorf("unsupported file type %q (supported: %v)", format, registry.Formats())
		}
		text, err := registry.Extract(format, data)
		if err != nil {
			return err
		}

		doc := segmenter.Segment(text)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"preamble": doc.Preamble,
			"summary":  aggregator.Aggregate(doc.Scenes),
			"scenes":   doc.Scenes,
		})
	},
}

func init() {
	segmentCmd.Flags().StringVar(&segmentType, "type", "", "document format (default: from the file extension)")
}
