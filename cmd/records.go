package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect enrichment records",
	Long:  "Commands for listing and viewing the provenance records written by enrichment runs.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list [pathway-id]",
	Short: "List enrichment records, optionally for one pathway",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var pathwayID string
		if len(args) == 1 {
			pathwayID = args[0]
		}

		records, err := st.ListRecords(ctx, pathwayID)
		if err != nil {
			return eris.Wrap(err, "records list")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "records show %s", args[0])
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Print(rec.Report())
		return nil
	},
}

func formatRecordsList(w io.Writer, records []model.EnrichmentRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATHWAY\tCREATED\tCATEGORIES\tENTITIES\tSKIPPED")
	for _, r := range records {
		cats := make([]string, 0, len(r.Categories))
		for _, cr := range r.Categories {
			cats = append(cats, fmt.Sprintf("%s(%s)", cr.Category, cr.WinningSource))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			r.ID,
			r.PathwayID,
			r.CreatedAt.Local().Format(time.DateTime),
			strings.Join(cats, ","),
			len(r.ChangedEntityIDs()),
			len(r.Skipped),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	recordsListCmd.Flags().Bool("json", false, "print records as JSON")
	recordsShowCmd.Flags().Bool("json", false, "print the record as JSON")
	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd)
	rootCmd.AddCommand(recordsCmd)
}
