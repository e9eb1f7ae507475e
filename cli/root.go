// Package cli contains the dialogtrain command tree.
package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/config"
)

// rootArgs is the root command arguments.
type rootArgs struct {
	configPath string
	dataDir    string
	verbose    bool
}

// RootArgs is the root command arguments.
var RootArgs rootArgs

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dialogtrain",
	Short: "Train and talk to a conversational word model",
	Long: `
Train and talk to a conversational word model.

Aggregates conversation files into a training set, runs epoch-based
training with metric logging and checkpoints, and serves an
interactive chat over the trained model.
	`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if RootArgs.verbose {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: defaults rooted at
// the data directory, overridden by the TOML file when one is given.
func loadConfig() (*config.Config, error) {
	if RootArgs.configPath != "" {
		return config.Load(RootArgs.configPath)
	}
	return config.Default(RootArgs.dataDir), nil
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&RootArgs.configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().
		StringVarP(&RootArgs.dataDir, "data-dir", "d", "data", "Root directory for datasets, models, and logs")
	rootCmd.PersistentFlags().
		BoolVarP(&RootArgs.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(NewTrainCommand())
	rootCmd.AddCommand(NewChatCommand())
	rootCmd.AddCommand(NewEvaluateCommand())
	rootCmd.AddCommand(NewModelsCommand())
	rootCmd.AddCommand(NewSaveCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewReportCommand())
}
