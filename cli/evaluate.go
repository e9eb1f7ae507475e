package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/training"
)

// NewEvaluateCommand returns a new evaluate command.
func NewEvaluateCommand() *cobra.Command {
	var (
		dataPath   string
		sampleSize int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the trained model against a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if sampleSize > 0 {
				cfg.Training.EvalSampleSize = sampleSize
			}

			session, err := training.NewDefaultSession(cfg, log.Default())
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}

			ds, err := dataset.LoadFile(dataPath)
			if err != nil {
				return fmt.Errorf("failed to load evaluation set: %w", err)
			}

			metrics, err := session.Evaluate(ds, cfg.Training.EvalSampleSize)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			printMetrics(os.Stdout, metrics)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "Evaluation dataset file (.json or .txt)")
	cmd.Flags().IntVarP(&sampleSize, "samples", "n", 0, "Samples to evaluate (overrides config)")
	cmd.MarkFlagRequired("data")
	return cmd
}

func printMetrics(w io.Writer, metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %.4f\n", name, metrics[name])
	}
}
