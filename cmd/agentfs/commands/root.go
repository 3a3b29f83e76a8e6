// Package commands implements the CLI commands for managing AgentFS
// sandboxes and inspecting their persisted state.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfs/agentfs/internal/logger"
	"github.com/agentfs/agentfs/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "agentfs",
	Short: "AgentFS - Virtual filesystem engine for sandboxed agents",
	Long: `AgentFS gives sandboxed agent processes a POSIX-like filesystem whose
managed state lives as records in a transactional SQLite store. Mounts route
each path either into a managed store or through to a bind-mounted host
directory, and an agent's key-value state and tool-call audit trail share
the same database.

Use "agentfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetConfigFile returns the --config flag value.
func GetConfigFile() string {
	return cfgFile
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/agentfs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(kvCmd)
	rootCmd.AddCommand(callsCmd)
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
