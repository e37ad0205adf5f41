package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omicsflow/pathway-enrich/internal/layout"
	"github.com/omicsflow/pathway-enrich/internal/pathway"
)

// runLayout resolves a layout for the document at path. With write set, a
// pathway without a layout gets the resolved one and is saved to outPath.
func runLayout(ctx context.Context, env *enrichEnv, path, outPath string, foreignIDs map[string]string, write bool) (*layout.Resolution, bool, error) {
	p, err := pathway.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	for src, id := range foreignIDs {
		p.SetCrossReference(src, id)
	}

	if !write {
		res, err := env.Resolver.Resolve(ctx, p)
		return res, false, err
	}

	res, wrote, err := env.Resolver.Materialize(ctx, p)
	if err != nil || !wrote {
		return res, wrote, err
	}
	return res, true, p.WriteFile(outPath)
}

var layoutCmd = &cobra.Command{
	Use:   "layout <pathway.json>",
	Short: "Resolve a layout for a pathway: existing, refetched, or generated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ids, _ := cmd.Flags().GetStringArray("foreign-id")
		foreignIDs, err := parsePairs(ids)
		if err != nil {
			return err
		}
		write, _ := cmd.Flags().GetBool("write")
		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			outPath = args[0]
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		res, wrote, err := runLayout(ctx, env, args[0], outPath, foreignIDs, write)
		if err != nil {
			return err
		}
		formatResolution(os.Stdout, res, wrote)
		return nil
	},
}

func formatResolution(w io.Writer, res *layout.Resolution, wrote bool) {
	minX, minY, maxX, maxY := layout.Bounds(res.Block)
	fmt.Fprintf(w, "tier: %s\n", res.Tier)
	if res.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", res.Reason)
	}
	fmt.Fprintf(w, "source: %s\n", dash(res.Block.Source))
	fmt.Fprintf(w, "boxes: %d\n", len(res.Block.Boxes))
	fmt.Fprintf(w, "bounds: (%.1f, %.1f) - (%.1f, %.1f)\n", minX, minY, maxX, maxY)
	fmt.Fprintf(w, "written: %t\n", wrote)
}

func init() {
	layoutCmd.Flags().Bool("write", false, "store the resolved layout when the pathway has none")
	layoutCmd.Flags().String("out", "", "write the pathway here instead of in place")
	layoutCmd.Flags().StringArray("foreign-id", nil, "source-specific pathway id, e.g. kegg=map00010")
	rootCmd.AddCommand(layoutCmd)
}
