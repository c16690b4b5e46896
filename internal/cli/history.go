package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/franckalain/cropguard/internal/export"
	"github.com/franckalain/cropguard/internal/projector"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the stored scan history",
	}

	cmd.AddCommand(newHistoryListCmd(configPath))
	cmd.AddCommand(newHistoryShowCmd(configPath))
	cmd.AddCommand(newHistoryDeleteCmd(configPath))
	cmd.AddCommand(newHistoryClearCmd(configPath))
	cmd.AddCommand(newHistoryExportCmd(configPath))
	cmd.AddCommand(newHistoryImportCmd(configPath))

	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid scan id %q", arg)
	}
	return id, nil
}

func newHistoryListCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.history.List(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tDISEASE\tCONFIDENCE\tSEVERITY")
			for _, r := range records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Timestamp, r.Disease, r.Confidence, r.Severity)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func newHistoryShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the treatment view for one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.history.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printView(cmd.OutOrStdout(), projector.New(a.catalog).Project(*rec))
			return nil
		},
	}
}

func printView(w io.Writer, v projector.View) {
	fmt.Fprintln(w, v.Disease)
	if v.ConfidenceLabel != "" {
		fmt.Fprintf(w, "%s, %s severity\n", v.ConfidenceLabel, v.Severity)
	}
	if v.Date != "" {
		fmt.Fprintf(w, "Scanned: %s\n", v.Date)
	}
	section := func(title string, items []string) {
		fmt.Fprintf(w, "\n%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(w, "  - %s\n", item)
		}
	}
	section("Treatments", v.Treatments)
	section("Prevention tips", v.Tips)
	section("Schedule", v.Schedule)
}

func newHistoryDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.history.DeleteByID(cmd.Context(), id)
		},
	}
}

func newHistoryClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.history.Clear(cmd.Context())
		},
	}
}

func newHistoryExportCmd(configPath *string) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the scan history",
		Example: `  # Back up the raw history for a later import
  cropguard history export --format json -o history.json

  # Spreadsheet-friendly export
  cropguard history export --format csv -o history.csv

  # Columnar export for analysis tools
  cropguard history export --format parquet -o history.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			ctx := cmd.Context()
			switch strings.ToLower(format) {
			case "json":
				data, err := a.history.Export(ctx)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			case "csv":
				return export.WriteCSV(out, export.Rows(a.history.List(ctx), a.catalog))
			case "parquet":
				if output == "" {
					return fmt.Errorf("--output is required for parquet exports")
				}
				return export.WriteParquet(out, export.Rows(a.history.List(ctx), a.catalog))
			default:
				return fmt.Errorf("unsupported export format: %s", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json, csv or parquet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")

	return cmd
}

func newHistoryImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the scan history with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.history.Import(cmd.Context(), data)
		},
	}
}
