package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/fableflow/pkg/flow"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate <flow>",
		Short: "Validate a flow file",
		Long: `Validate a flow file for correctness.

This checks:
- Document shape against the flow schema
- Flow structure (unique node IDs, start node exists)
- Connection integrity (endpoints exist, no duplicate source pins)

Examples:
  fableflow validate intro
  fableflow validate ./story/act1.yaml --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ResolveFlowPath(args[0])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			if err := flow.ValidateAgainstSchema(data); err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Flow document failed schema validation")
				if verbose {
					_, _ = fmt.Fprintf(cmd.OutOrStderr(), "  Error: %v\n", err)
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Flow document matches schema")

			f, err := flow.Parse(data)
			if err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Failed to parse flow")
				if verbose {
					_, _ = fmt.Fprintf(cmd.OutOrStderr(), "  Error: %v\n", err)
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Flow parsed successfully")

			if err := f.Validate(); err != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStderr(), "✗ Flow validation failed")
				if verbose {
					_, _ = fmt.Fprintf(cmd.OutOrStderr(), "  Error: %v\n", err)
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ Flow structure valid")

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Flow %q: %d nodes, %d connections\n",
				f.Name, len(f.Nodes), len(f.Connections))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed error information")

	return cmd
}
