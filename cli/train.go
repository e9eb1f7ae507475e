package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/monitor"
	"github.com/tsawler/dialogtrain/training"
)

// NewTrainCommand returns a new train command.
func NewTrainCommand() *cobra.Command {
	var (
		epochs  int
		valPath string
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model on the aggregated conversation files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if epochs > 0 {
				cfg.Training.Epochs = epochs
			}
			logger := log.Default()

			session, err := training.NewDefaultSession(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}

			valSet, err := loadValidationSet(valPath)
			if err != nil {
				return err
			}

			tl, err := session.Run(cfg.Training.Epochs, valSet)
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}
			printRunSummary(os.Stdout, tl)

			if !watch {
				return nil
			}
			return watchAndRetrain(cfg.Paths.ConversationsDir, session, cfg.Training.Epochs, valSet, logger)
		},
	}

	cmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "Epoch count (overrides config)")
	cmd.Flags().StringVar(&valPath, "val", "", "Validation dataset file (.json or .txt)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep watching the conversations directory and retrain on changes")
	return cmd
}

// loadValidationSet loads an optional validation file. An empty path
// means training runs without validation.
func loadValidationSet(path string) (*dataset.Dataset, error) {
	if path == "" {
		return nil, nil
	}
	ds, err := dataset.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load validation set: %w", err)
	}
	return ds, nil
}

// watchAndRetrain blocks on the conversations directory and reruns
// training whenever a conversation file is created or rewritten.
// Returns when interrupted.
func watchAndRetrain(dir string, session *training.Session, epochs int, valSet *dataset.Dataset, logger *log.Logger) error {
	watcher, err := dataset.NewWatcher(dir, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	logger.Info("watching for new conversation files", "dir", dir)

	for {
		select {
		case path := <-watcher.Changes:
			logger.Info("conversation file changed, retraining", "path", path)
			tl, err := session.Run(epochs, valSet)
			if err != nil {
				logger.Error("retraining failed", "err", err)
				continue
			}
			printRunSummary(os.Stdout, tl)
		case <-sig:
			logger.Info("stopping watch")
			return nil
		}
	}
}

func printRunSummary(w io.Writer, tl *monitor.TrainingLog) {
	if len(tl.Epochs) == 0 {
		fmt.Fprintln(w, "No epochs recorded")
		return
	}
	last := len(tl.TrainLoss) - 1
	fmt.Fprintf(w, "Trained %d epochs, final train loss %.4f\n", len(tl.Epochs), tl.TrainLoss[last])

	final := make(map[string]float64, len(tl.Metrics))
	for name, values := range tl.Metrics {
		if len(values) > 0 {
			final[name] = values[len(values)-1]
		}
	}
	printMetrics(w, final)
}
