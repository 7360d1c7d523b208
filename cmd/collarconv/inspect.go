package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/spf13/cobra"
)

// InspectReport describes a source file before conversion.
type InspectReport struct {
	Source    string            `json:"source"`
	Delimiter string            `json:"delimiter,omitempty"`
	Columns   []string          `json:"columns"`
	Rows      int               `json:"rows"`
	Suggested core.FieldMapping `json:"suggested_mapping"`
	Matches   []profile.Match   `json:"profile_matches,omitempty"`

	Check *core.ValidationReport `json:"check,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		check  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "inspect INPUT",
		Short: "Show the delimiter, columns, suggested mapping and matching profiles of a file",
		Long: `Show the delimiter, columns, suggested mapping and matching profiles of a file.

With --check every row is also parsed with the suggested mapping and
--format, and cells that would come out empty are reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts *checkOptions
			if check {
				opts = &checkOptions{format: format}
			}
			report, err := inspect(cmd.Context(), a, args[0], opts)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&check, "check", false, "Parse every row and report cells that would be empty")
	cmd.Flags().StringVar(&format, "format", "", "Time format for --check (strftime or Go layout; default: auto)")
	return cmd
}

// checkOptions enables row validation against the suggested mapping.
type checkOptions struct {
	format string
}

func inspect(ctx context.Context, a *app, input string, check *checkOptions) (*InspectReport, error) {
	table, err := core.LoadFile(ctx, input, a.cfg.LoadOptions())
	if err != nil {
		return nil, err
	}

	report := &InspectReport{
		Source:    table.Source,
		Columns:   table.Columns,
		Rows:      table.Len(),
		Suggested: core.AutoSuggest(table.Columns),
	}
	if table.Delimiter != 0 {
		report.Delimiter = string(table.Delimiter)
	}

	matches, err := a.profiles.Match(table.Columns)
	if err != nil {
		return nil, err
	}
	report.Matches = matches

	if check != nil {
		format := check.format
		if format == "" {
			format = a.cfg.Convert.TimeFormat
		}
		report.Check, err = core.ValidateTable(ctx, table, report.Suggested, format, core.DefaultValidationSamples)
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

func printReport(w io.Writer, r *InspectReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "source:\t%s\n", r.Source)
	if r.Delimiter != "" {
		fmt.Fprintf(tw, "delimiter:\t%q\n", r.Delimiter)
	}
	fmt.Fprintf(tw, "rows:\t%d\n", r.Rows)
	fmt.Fprintf(tw, "columns:\t%s\n", strings.Join(r.Columns, ", "))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "suggested mapping:")
	for _, role := range core.Roles {
		col := r.Suggested.Column(role)
		if col == "" {
			col = "(none)"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", role, col)
	}

	if len(r.Matches) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "matching profiles:")
		for _, m := range r.Matches {
			fmt.Fprintf(tw, "  %s\t%.0f%%\n", m.Profile.Name, m.Score*100)
		}
	}

	if c := r.Check; c != nil {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "check:\t%d of %d rows have empty or unparsable cells\n", c.RowsWithIssue, c.RowsChecked)
		for _, role := range core.Roles {
			if n := c.ByField[role.String()]; n > 0 {
				fmt.Fprintf(tw, "  %s\t%d\n", role, n)
			}
		}
		for _, e := range c.Samples {
			fmt.Fprintf(tw, "  row %d\t%s %q: %s\n", e.Row, e.Column, e.Value, e.Message)
		}
	}
	return tw.Flush()
}
