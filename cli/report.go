package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/monitor"
)

// NewReportCommand returns a new report command.
func NewReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the last training run's metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tl, err := monitor.LoadLog(cfg.Paths.LogsDir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Println("No training runs recorded")
					return nil
				}
				return fmt.Errorf("failed to load training log: %w", err)
			}
			if len(tl.Epochs) == 0 {
				fmt.Println("No training runs recorded")
				return nil
			}

			fmt.Printf("Run %s, %d epochs\n", tl.RunID, len(tl.Epochs))
			for i, epoch := range tl.Epochs {
				fmt.Printf("  epoch %d: train_loss=%.4f", epoch, tl.TrainLoss[i])
				if i < len(tl.ValLoss) {
					fmt.Printf(" val_loss=%.4f", tl.ValLoss[i])
				}
				fmt.Println()
			}
			fmt.Printf("Progress chart: %s\n", filepath.Join(cfg.Paths.LogsDir, monitor.ProgressFileName))
			return nil
		},
	}
}
