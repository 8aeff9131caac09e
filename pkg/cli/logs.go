package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/fableflow/pkg/engine"
	"github.com/dshills/fableflow/pkg/storage"
)

// NewLogsCommand creates the logs command
func NewLogsCommand() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "logs <session-id>",
		Short: "Show a saved session's console log",
		Long: `Print the console transcript of a saved session trace.

Every transition the session made, including skipped payloads and error
terminations, appears as one console line.

Examples:
  fableflow logs 6f1c9a2e-...
  fableflow logs 6f1c9a2e-... --level error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteSessionRepositoryWithPath(GetDatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			trace, err := repo.Get(args[0])
			if err != nil {
				return err
			}

			if len(trace.Console) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No console entries.")
				return nil
			}

			filter := engine.ConsoleLevel(level)
			for _, entry := range trace.Console {
				if level != "" && entry.Level != filter {
					continue
				}
				timestamp := entry.Timestamp.Format("15:04:05.000")
				if entry.NodeID != "" {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [%-7s] %s: %s\n", timestamp, entry.Level, entry.NodeID, entry.Message)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s [%-7s] %s\n", timestamp, entry.Level, entry.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Only show entries at this level (info, warning, error)")

	return cmd
}
