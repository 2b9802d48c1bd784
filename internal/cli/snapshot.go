package cli

import (
	"fmt"
	"path/filepath"

	"github.com/lazypower/decayregion/internal/client"
	"github.com/spf13/cobra"
)

var importRegion string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Move region snapshots in and out of archive files",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export <region> <path>",
	Short: "Write a region's snapshot to a compressed archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		return printResponse(client.New().Post(regionPath(args[0], "export"), map[string]string{"path": path}))
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Load an archive as a region's stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		body := map[string]string{"path": path, "region": importRegion}
		return printResponse(client.New().Post("/api/snapshots/import", body))
	},
}

func init() {
	snapshotImportCmd.Flags().StringVarP(&importRegion, "region", "r", "", "target region (default: the region named in the archive)")

	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotImportCmd)
}
