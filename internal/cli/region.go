package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/lazypower/decayregion/internal/client"
	"github.com/lazypower/decayregion/internal/engine"
	"github.com/lazypower/decayregion/internal/world"
	"github.com/spf13/cobra"
)

var (
	regionWorld string
	regionMin   string
	regionMax   string
	regionDecay int
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Manage decay regions on a running server",
}

var regionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List regions with ledger counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.New().Get("/api/regions")
		if err != nil {
			return err
		}
		var resp struct {
			Count   int                 `json:"count"`
			Regions []engine.RegionInfo `json:"regions"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("decode regions: %w", err)
		}
		if resp.Count == 0 {
			fmt.Println("No regions defined.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWORLD\tMIN\tMAX\tDECAY\tBLOCKS\tFLUIDS\tENTITIES\tTASKS")
		for _, info := range resp.Regions {
			r := info.Region
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%ds\t%d\t%d\t%d\t%d\n",
				r.ID, r.World, formatPos(r.Min), formatPos(r.Max), r.DecaySeconds,
				info.Ledger.Blocks, info.Ledger.Fluids, info.Ledger.Entities, info.ActiveTasks)
		}
		return tw.Flush()
	},
}

var regionCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Define a region and capture its snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minPos, err := parsePos(regionMin)
		if err != nil {
			return fmt.Errorf("--min: %w", err)
		}
		maxPos, err := parsePos(regionMax)
		if err != nil {
			return fmt.Errorf("--max: %w", err)
		}
		body := map[string]any{
			"id":            args[0],
			"world":         regionWorld,
			"min":           minPos,
			"max":           maxPos,
			"decay_seconds": regionDecay,
		}
		return printResponse(client.New().Post("/api/regions", body))
	},
}

var regionRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a region and its snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(client.New().Delete(regionPath(args[0], "")))
	},
}

var regionRenameCmd = &cobra.Command{
	Use:   "rename <id> <new-id>",
	Short: "Rename a region, carrying its ledger and snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(client.New().Post(regionPath(args[0], "rename"), map[string]string{"id": args[1]}))
	},
}

var regionDecayCmd = &cobra.Command{
	Use:   "decay <id> <seconds>",
	Short: "Set a region's decay time",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secs, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("seconds: %w", err)
		}
		return printResponse(client.New().Put(regionPath(args[0], "decay"), map[string]int{"seconds": secs}))
	},
}

// regionActionCmd builds a subcommand that posts to a per-region action.
func regionActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printResponse(client.New().Post(regionPath(args[0], action), nil))
		},
	}
}

var regionInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show a region with ledger and snapshot counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(client.New().Get(regionPath(args[0], "")))
	},
}

func init() {
	regionCreateCmd.Flags().StringVarP(&regionWorld, "world", "w", "world", "world the region belongs to")
	regionCreateCmd.Flags().StringVar(&regionMin, "min", "", "first corner as x,y,z")
	regionCreateCmd.Flags().StringVar(&regionMax, "max", "", "opposite corner as x,y,z")
	regionCreateCmd.Flags().IntVarP(&regionDecay, "decay", "d", 0, "decay seconds (0 uses the configured default)")
	regionCreateCmd.MarkFlagRequired("min")
	regionCreateCmd.MarkFlagRequired("max")

	regionCmd.AddCommand(regionListCmd)
	regionCmd.AddCommand(regionCreateCmd)
	regionCmd.AddCommand(regionRemoveCmd)
	regionCmd.AddCommand(regionRenameCmd)
	regionCmd.AddCommand(regionDecayCmd)
	regionCmd.AddCommand(regionInfoCmd)
	regionCmd.AddCommand(regionActionCmd("snapshot", "Re-capture a region's snapshot"))
	regionCmd.AddCommand(regionActionCmd("restore", "Restore a region from its snapshot"))
	regionCmd.AddCommand(regionActionCmd("reset", "Clear tracked content and restore a region"))
	regionCmd.AddCommand(regionActionCmd("force-clear", "Clear every tracked block, fluid and entity in a region"))
}

func regionPath(id, action string) string {
	p := "/api/regions/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

// parsePos reads an "x,y,z" coordinate triple.
func parsePos(s string) (world.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return world.Pos{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return world.Pos{}, fmt.Errorf("coordinate %q: %w", p, err)
		}
		n[i] = v
	}
	return world.Pos{X: n[0], Y: n[1], Z: n[2]}, nil
}

func formatPos(p world.Pos) string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

// printResponse pretty-prints a JSON response body to stdout.
func printResponse(data []byte, err error) error {
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if json.Indent(&buf, data, "", "  ") != nil {
		fmt.Println(strings.TrimSpace(string(data)))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
