package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	// Version is the current version of FableFlow
	Version = "1.0.0"
)

// Config holds the global configuration for the FableFlow CLI
type Config struct {
	ConfigDir string
	Debug     bool
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// NewRootCommand creates the root cobra command for FableFlow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fableflow",
		Short: "FableFlow - Branching narrative flow execution and debugging",
		Long: `FableFlow executes branching narrative flows: graphs of typed nodes
(dialogue, condition, instruction, hub, jump, scene, subflow) connected by
pinned edges. It provides a deterministic step debugger with reversible
stepping, breakpoints and cross-flow calls.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.fableflow)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewDebugCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewSessionsCommand())
	cmd.AddCommand(NewLogsCommand())

	return cmd
}

// initConfig initializes the FableFlow configuration directory and files
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv("FABLEFLOW_CONFIG_DIR"); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".fableflow")
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.MkdirAll(GetFlowsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create flows directory: %w", err)
	}

	// Load or create config file
	configFile := filepath.Join(GlobalConfig.ConfigDir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := map[string]interface{}{
			"version": "1.0",
		}
		data, err := yaml.Marshal(defaultConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(configFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
	}

	return nil
}

// GetConfigDir returns the configuration directory path
// Priority order: 1) FABLEFLOW_CONFIG_DIR env var (for testing), 2) GlobalConfig.ConfigDir, 3) ~/.fableflow
func GetConfigDir() string {
	if envDir := os.Getenv("FABLEFLOW_CONFIG_DIR"); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory if home dir cannot be determined
			return ".fableflow"
		}
		return filepath.Join(homeDir, ".fableflow")
	}
	return GlobalConfig.ConfigDir
}

// GetFlowsDir returns the flows directory path
func GetFlowsDir() string {
	return filepath.Join(GetConfigDir(), "flows")
}

// GetDatabasePath returns the path to the session trace database
func GetDatabasePath() string {
	return filepath.Join(GetConfigDir(), "fableflow.db")
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
