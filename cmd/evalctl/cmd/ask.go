package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelkov/corpus-qa/internal/bootstrap"
	"github.com/avelkov/corpus-qa/internal/config"
	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/observability/logging"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against a workspace corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		sourceType, _ := cmd.Flags().GetString("source-type")
		if workspaceID == "" {
			return fmt.Errorf("--workspace is required")
		}

		cfg := config.Load()
		logger := logging.NewJSONLogger("corpus-qa-evalctl", cfg.LogLevel)

		ctx := cmd.Context()
		app, err := bootstrap.New(ctx, cfg, logger, "evalctl")
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		if _, err := app.IndexerUC.RebuildWorkspace(ctx, workspaceID); err != nil {
			return fmt.Errorf("rebuild workspace index: %w", err)
		}

		filter := domain.SearchFilter{SourceType: sourceType}
		outcome, err := app.AskUC.Ask(ctx, workspaceID, args[0], filter, false)
		if err != nil {
			return fmt.Errorf("ask: %w", err)
		}

		fmt.Println(outcome.Text)
		if !outcome.Answered {
			fmt.Printf("(abstained: %s)\n", outcome.Reason)
			return nil
		}
		if len(outcome.Citations) > 0 {
			fmt.Printf("cited chunks: %v\n", outcome.Citations)
		}
		for _, w := range outcome.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringP("workspace", "w", "", "Workspace to query")
	askCmd.Flags().String("source-type", "", "Restrict retrieval to one source type")
}
