package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/fableflow/pkg/storage"
)

// NewSessionsCommand creates the sessions command group
func NewSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect saved session traces",
		Long: `List, show and delete saved debug session traces.

Finished sessions from "fableflow run" are stored in the session database
at ~/.fableflow/fableflow.db.`,
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsShowCommand())
	cmd.AddCommand(newSessionsDeleteCommand())

	return cmd
}

func newSessionsListCommand() *cobra.Command {
	var (
		flowID     string
		limit      int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved session traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteSessionRepositoryWithPath(GetDatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			traces, err := repo.List(flowID, limit)
			if err != nil {
				return err
			}

			if outputJSON {
				output, err := json.MarshalIndent(traces, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal output: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}

			if len(traces) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
				return nil
			}
			for _, trace := range traces {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-10s %4d steps  %s\n",
					trace.FinishedAt.Format("2006-01-02 15:04:05"),
					trace.FlowID,
					trace.Status,
					trace.StepCount,
					trace.SessionID,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow", "", "Only list sessions of this flow")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of sessions to list")
	cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output as JSON")

	return cmd
}

func newSessionsShowCommand() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one saved session trace",
		Args:  cobra.ExactArgs(1),
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

			if outputJSON {
				output, err := json.MarshalIndent(trace, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal output: %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Session:  %s\n", trace.SessionID)
			_, _ = fmt.Fprintf(out, "Flow:     %s\n", trace.FlowID)
			_, _ = fmt.Fprintf(out, "Status:   %s\n", trace.Status)
			_, _ = fmt.Fprintf(out, "Steps:    %d\n", trace.StepCount)
			_, _ = fmt.Fprintf(out, "Finished: %s\n", trace.FinishedAt.Format("2006-01-02 15:04:05"))
			_, _ = fmt.Fprintf(out, "Path:     %v\n", trace.ExecutionPath)
			if len(trace.Variables) > 0 {
				_, _ = fmt.Fprintln(out, "\nVariables:")
				vars, err := json.MarshalIndent(trace.Variables, "  ", "  ")
				if err == nil {
					_, _ = fmt.Fprintf(out, "  %s\n", string(vars))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output as JSON")

	return cmd
}

func newSessionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a saved session trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewSQLiteSessionRepositoryWithPath(GetDatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			if err := repo.Delete(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted session %s\n", args[0])
			return nil
		},
	}
}
