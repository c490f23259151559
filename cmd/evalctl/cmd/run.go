package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avelkov/corpus-qa/internal/bootstrap"
	"github.com/avelkov/corpus-qa/internal/config"
	"github.com/avelkov/corpus-qa/internal/core/domain"
	"github.com/avelkov/corpus-qa/internal/infrastructure/evalset"
	"github.com/avelkov/corpus-qa/internal/observability/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an evaluation set through the retrieval path",
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		file, _ := cmd.Flags().GetString("file")
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

		var questions []domain.EvalQuestion
		if file != "" {
			questions, err = evalset.Load(file)
		} else {
			questions, err = app.EvalStore.ListQuestions(ctx, workspaceID)
		}
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions for workspace %s", workspaceID)
		}

		version, err := app.IndexerUC.RebuildWorkspace(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("rebuild workspace index: %w", err)
		}
		fmt.Printf("index rebuilt: workspace=%s version=%d\n", workspaceID, version)

		run, err := app.EvalUC.RunEval(ctx, questions, workspaceID)
		if err != nil {
			return fmt.Errorf("run eval: %w", err)
		}

		fmt.Printf("run %s finished in %s\n", run.ID, run.FinishedAt.Sub(run.StartedAt).Round(0))
		fmt.Printf("  questions:            %d\n", run.Questions)
		fmt.Printf("  retrieval hit@5:      %.3f\n", run.RetrievalAt5)
		fmt.Printf("  retrieval hit@10:     %.3f\n", run.RetrievalAt10)
		fmt.Printf("  citation rate:        %.3f\n", run.CitationRate)
		fmt.Printf("  citation correctness: %.3f\n", run.CitationCorrectness)

		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			for _, q := range run.PerQuestion {
				fmt.Printf("  %s hit@5=%v hit@10=%v answered=%v citations=%d valid=%d\n",
					q.QuestionID, q.HitAt5, q.HitAt10, q.Answered, q.CitationCount, q.ValidCitations)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("workspace", "w", "", "Workspace to evaluate")
	runCmd.Flags().StringP("file", "f", "", "YAML eval set (defaults to stored questions)")
	runCmd.Flags().BoolP("verbose", "v", false, "Print per-question results")
}
