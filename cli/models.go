package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/dataset"
	"github.com/tsawler/dialogtrain/training"
)

// NewModelsCommand returns a new models command.
func NewModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List versioned model snapshots, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := training.NewDefaultSession(cfg, log.Default())
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}
			names, err := session.ListModels()
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}
			if len(names) == 0 {
				fmt.Println("No saved models")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// NewSaveCommand returns a new save command.
func NewSaveCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Persist the current model as a versioned snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := training.NewDefaultSession(cfg, log.Default())
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}
			path, err := session.SaveModel(name)
			if err != nil {
				return fmt.Errorf("failed to save model: %w", err)
			}
			fmt.Printf("Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Snapshot name (timestamp when empty)")
	return cmd
}

// NewCompareCommand returns a new compare command.
func NewCompareCommand() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "compare <snapshot>...",
		Short: "Evaluate saved snapshots against a test set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := training.NewDefaultSession(cfg, log.Default())
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}

			testSet, err := dataset.LoadFile(dataPath)
			if err != nil {
				return fmt.Errorf("failed to load test set: %w", err)
			}

			results, err := session.CompareModels(args, testSet)
			if err != nil {
				return fmt.Errorf("comparison failed: %w", err)
			}

			paths := make([]string, 0, len(results))
			for path := range results {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			for _, path := range paths {
				fmt.Println(path)
				printMetrics(os.Stdout, results[path].Metrics)
				improvement := results[path].Improvement
				names := make([]string, 0, len(improvement))
				for name := range improvement {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Printf("  %s improvement: %+.4f\n", name, improvement[name])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "Test dataset file (.json or .txt)")
	cmd.MarkFlagRequired("data")
	return cmd
}
