package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "decayregion",
	Short: "Timed decay of player-placed content inside world regions",
	Long: "decayregion tracks blocks, fluids and objects placed inside configured regions, " +
		"reverts them after each region's decay time and restores regions from snapshots.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("decayregion %s built %s\n", VersionString(), BuildDate)
	},
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

// VersionString is the version reported by the health endpoint and --version.
func VersionString() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

func init() {
	rootCmd.Version = VersionString()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $DECAYREGION_CONFIG)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(snapshotCmd)
}
