package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ghascaler/internal/config"
)

// checkConfigPath overrides the default configuration file location.
var checkConfigPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and exit",
	Long: `Loads the configuration, resolves its variables, applies machine
defaults, and runs full validation. Exits zero when the configuration
is usable; prints every validation finding otherwise.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := checkConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("configuration check failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid: %d machines, provisioning enabled: %t\n",
		path, len(cfg.Machines), cfg.Provisioning.Enabled)
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkConfigPath, "config", "", "Path to the configuration file")
}
