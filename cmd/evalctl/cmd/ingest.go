package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avelkov/corpus-qa/internal/bootstrap"
	"github.com/avelkov/corpus-qa/internal/config"
	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/observability/logging"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Register a text or transcript file and enqueue it for indexing",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		transcript, _ := cmd.Flags().GetBool("transcript")
		if workspaceID == "" || file == "" {
			return fmt.Errorf("--workspace and --file are required")
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read source file: %w", err)
		}
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		sourceType := domain.SourceTypeText
		if transcript {
			sourceType = domain.SourceTypeTranscript
		}

		cfg := config.Load()
		logger := logging.NewJSONLogger("corpus-qa-evalctl", cfg.LogLevel)

		ctx := cmd.Context()
		app, err := bootstrap.New(ctx, cfg, logger, "evalctl")
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		doc, err := app.IngestUC.Ingest(ctx, workspaceID, file, title, sourceType, string(content))
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		fmt.Printf("document %s queued for indexing (hash %s)\n", doc.ID, doc.ContentHash[:12])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("workspace", "w", "", "Workspace owning the document")
	ingestCmd.Flags().StringP("file", "f", "", "Path to the source file")
	ingestCmd.Flags().StringP("title", "t", "", "Document title (defaults to the file name)")
	ingestCmd.Flags().Bool("transcript", false, "Parse the file as a timecoded transcript")
}
