package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omicsflow/pathway-enrich/internal/model"
	"github.com/omicsflow/pathway-enrich/internal/orchestrator"
	"github.com/omicsflow/pathway-enrich/internal/pathway"
)

// requestFlags are the request options shared by the enrich command and
// the HTTP API.
type requestFlags struct {
	Categories   []string          `json:"categories"`
	Prefer       []string          `json:"preferred_sources"`
	Exclude      []string          `json:"excluded_sources"`
	MinQuality   *float64          `json:"min_quality"`
	AllowPartial *bool             `json:"allow_partial"`
	Merge        map[string]string `json:"merge_policies"`
	ForeignIDs   map[string]string `json:"foreign_ids"`
	Organism     string            `json:"organism"`
}

// buildRequest turns options into a request, filling unset values from the
// enrichment config.
func buildRequest(pathwayID string, f requestFlags) (model.EnrichmentRequest, error) {
	var cats []model.Category
	for _, c := range f.Categories {
		cats = append(cats, model.ParseCategories(c)...)
	}
	if len(cats) == 0 {
		cats = model.AllCategories()
	}

	req := model.NewRequest(pathwayID, cats...)
	req.PreferredSources = f.Prefer
	req.ExcludedSources = f.Exclude
	req.MinQuality = cfg.Enrichment.MinQuality
	if f.MinQuality != nil {
		req.MinQuality = *f.MinQuality
	}
	req.AllowPartial = cfg.Enrichment.AllowPartial
	if f.AllowPartial != nil {
		req.AllowPartial = *f.AllowPartial
	}
	req.Organism = cfg.Enrichment.Organism
	if f.Organism != "" {
		req.Organism = f.Organism
	}
	req.ForeignIDs = f.ForeignIDs
	if len(f.Merge) > 0 {
		req.MergePolicies = make(map[model.Category]model.MergePolicy, len(f.Merge))
		for c, p := range f.Merge {
			req.MergePolicies[model.Category(c)] = model.MergePolicy(p)
		}
	}
	return req, req.Validate()
}

// parsePairs parses repeated key=value flags.
func parsePairs(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		k, val, ok := strings.Cut(v, "=")
		k, val = strings.TrimSpace(k), strings.TrimSpace(val)
		if !ok || k == "" || val == "" {
			return nil, eris.Errorf("expected key=value, got %q", v)
		}
		out[k] = val
	}
	return out, nil
}

// enrichPathway runs the orchestrator on p under the configured fetch
// timeout.
func enrichPathway(ctx context.Context, env *enrichEnv, p model.Pathway, req model.EnrichmentRequest) (*orchestrator.Outcome, error) {
	if secs := cfg.Enrichment.FetchTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	out, err := env.Orchestrator.Run(ctx, p, req)
	if err != nil {
		return out, eris.Wrapf(err, "enrich %s", p.ID())
	}
	return out, nil
}

// runEnrich enriches the pathway document at path and writes it to outPath.
// The document is only rewritten when the run produced a record.
func runEnrich(ctx context.Context, env *enrichEnv, path, outPath string, f requestFlags) (*orchestrator.Outcome, error) {
	p, err := pathway.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req, err := buildRequest(p.ID(), f)
	if err != nil {
		return nil, err
	}

	out, err := enrichPathway(ctx, env, p, req)
	if err != nil {
		return out, err
	}
	if out.Record != nil {
		if err := p.WriteFile(outPath); err != nil {
			return out, err
		}
		zap.L().Info("pathway written", zap.String("path", outPath), zap.String("record", out.Record.ID))
	}
	return out, nil
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <pathway.json>",
	Short: "Enrich a pathway document from the configured sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := requestFlagsFrom(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			outPath = args[0]
		}

		out, err := runEnrich(ctx, env, args[0], outPath, f)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		formatOutcome(os.Stdout, out)
		return nil
	},
}

func requestFlagsFrom(cmd *cobra.Command) (requestFlags, error) {
	var f requestFlags
	fl := cmd.Flags()

	f.Categories, _ = fl.GetStringSlice("categories")
	f.Prefer, _ = fl.GetStringSlice("prefer")
	f.Exclude, _ = fl.GetStringSlice("exclude")
	f.Organism, _ = fl.GetString("organism")
	if fl.Changed("min-quality") {
		v, _ := fl.GetFloat64("min-quality")
		f.MinQuality = &v
	}
	if fl.Changed("allow-partial") {
		v, _ := fl.GetBool("allow-partial")
		f.AllowPartial = &v
	}

	merge, _ := fl.GetStringArray("merge")
	var err error
	if f.Merge, err = parsePairs(merge); err != nil {
		return f, eris.Wrap(err, "--merge")
	}
	ids, _ := fl.GetStringArray("foreign-id")
	if f.ForeignIDs, err = parsePairs(ids); err != nil {
		return f, eris.Wrap(err, "--foreign-id")
	}
	return f, nil
}

// formatOutcome prints one line per category followed by the record report.
func formatOutcome(w io.Writer, out *orchestrator.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSTATE\tWINNER\tSCORE\tCONFIDENCE\tCHANGED\tREASON")
	for _, co := range out.Categories {
		changed := 0
		if co.Changes != nil {
			changed = co.Changes.EntitiesChanged
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%d\t%s\n",
			co.Category, co.State, dash(co.Winner), co.Score, dash(string(co.Confidence)), changed, co.Reason)
	}
	tw.Flush() //nolint:errcheck

	s := out.Stats
	fmt.Fprintf(w, "\n%d fetches (%d ok, %d not found, %d errors) across %d hosts in %s\n",
		s.Fetches, s.Succeeded, s.NotFound, s.Errors, s.Hosts, out.Duration.Round(time.Millisecond))
	if out.Record != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, out.Record.Report())
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("categories", nil, "categories to enrich (default all): kinetic_parameters,coordinates,annotations")
	cmd.Flags().StringSlice("prefer", nil, "preferred sources, in tie-break order")
	cmd.Flags().StringSlice("exclude", nil, "sources to skip")
	cmd.Flags().Float64("min-quality", 0, "minimum overall score (default from config)")
	cmd.Flags().Bool("allow-partial", true, "apply the best result even when below --min-quality")
	cmd.Flags().StringArray("merge", nil, "merge policy per category, e.g. coordinates=override-if-better")
	cmd.Flags().StringArray("foreign-id", nil, "source-specific pathway id, e.g. kegg=map00010")
	cmd.Flags().String("organism", "", "organism filter for kinetic queries")
}

func init() {
	addRequestFlags(enrichCmd)
	enrichCmd.Flags().String("out", "", "write the enriched pathway here instead of in place")
	enrichCmd.Flags().Bool("json", false, "print the outcome as JSON")
	rootCmd.AddCommand(enrichCmd)
}
