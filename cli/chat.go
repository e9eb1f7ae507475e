package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tsawler/dialogtrain/training"
)

// NewChatCommand returns a new chat command.
func NewChatCommand() *cobra.Command {
	var archetype string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the trained model interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if archetype != "" {
				cfg.Chat.Archetype = archetype
			}

			session, err := training.NewDefaultSession(cfg, log.Default())
			if err != nil {
				return fmt.Errorf("failed to build session: %w", err)
			}

			fmt.Printf("Chatting with %s. Type 'quit' to exit.\n", cfg.Chat.SpeakerName)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "quit" || input == "exit" {
					break
				}
				fmt.Printf("%s: %s\n", cfg.Chat.SpeakerName, session.Chat(input))
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&archetype, "archetype", "a", "", "Persona archetype (overrides config)")
	return cmd
}
