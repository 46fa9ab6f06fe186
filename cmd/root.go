package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when ghascaler is called without
// any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ghascaler",
	Short: "Autoscale self-hosted GitHub Actions runners across a machine fleet",
	Long: `ghascaler keeps a fleet of self-hosted GitHub Actions runners sized
to the job queue of a repository. It observes queued workflow jobs,
plans how many runner containers each machine should hold, and applies
the difference over SSH.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. Called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "ghascaler version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
