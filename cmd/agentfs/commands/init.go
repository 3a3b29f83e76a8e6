package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfs/agentfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample AgentFS configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/agentfs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  agentfs init

  # Initialize with custom path
  agentfs init --config /etc/agentfs/config.yaml

  # Force overwrite existing config
  agentfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the mounts section to lay out the sandbox filesystem")
	fmt.Println("  2. Start a sandbox session with: agentfs run")
	fmt.Printf("  3. Or specify custom config: agentfs run --config %s\n", configPath)

	return nil
}
