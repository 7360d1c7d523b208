package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/spf13/cobra"
)

// settingsFlags are the conversion settings shared by convert and
// profile save.
type settingsFlags struct {
	mapping core.FieldMapping
	format  string
	start   string
	cutoffs []string
	noDedup bool
	autoMap bool
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.mapping.Serial, "serial", "", "Source column holding the collar serial number")
	fs.StringVar(&f.mapping.Time, "time", "", "Source column holding the fix time")
	fs.StringVar(&f.mapping.Latitude, "lat", "", "Source column holding the latitude")
	fs.StringVar(&f.mapping.Longitude, "lon", "", "Source column holding the longitude")
	fs.StringVar(&f.format, "format", "", "strftime time format, e.g. \"%d.%m.%Y %H:%M\" (default: auto-detect)")
	fs.StringVar(&f.start, "start", "", "Drop fixes before this time (YYYY-MM-DD[ HH:MM:SS])")
	fs.StringArrayVar(&f.cutoffs, "cutoff", nil, "Per-serial start as SERIAL=YYYY-MM-DD[ HH:MM:SS]; repeatable")
	fs.BoolVar(&f.noDedup, "no-dedup", false, "Keep duplicate serial/time fixes instead of shifting them apart")
	fs.BoolVar(&f.autoMap, "auto-map", false, "Fill unset columns from the header")
}

// parseCutoffFlag splits SERIAL=DATE.
func parseCutoffFlag(s string) (profile.Cutoff, error) {
	serial, start, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(serial) == "" || strings.TrimSpace(start) == "" {
		return profile.Cutoff{}, withCode(exitUsage, fmt.Errorf("invalid --cutoff %q: want SERIAL=DATE", s))
	}
	return profile.Cutoff{Serial: strings.TrimSpace(serial), Start: strings.TrimSpace(start)}, nil
}

type convertOptions struct {
	settingsFlags
	output  string
	profile string
}

func newConvertCmd(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert INPUT",
		Short: "Convert one CSV or XLSX export",
		Long: `Convert one CSV or XLSX collar export to the canonical format.

Columns come from --serial/--time/--lat/--lon, then from --profile, then
from the header when --auto-map is set. The result goes to --output, or
to stdout when --output is "-" or not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), a, args[0], opts, cmd.OutOrStdout())
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "Saved mapping profile to start from")

	return cmd
}

func runConvert(ctx context.Context, a *app, input string, opts convertOptions, stdout io.Writer) error {
	table, err := core.LoadFile(ctx, input, a.cfg.LoadOptions())
	if err != nil {
		return err
	}

	req := core.ConvertRequest{
		Mapping:       opts.mapping,
		TimeFormat:    strings.TrimSpace(opts.format),
		GlobalStart:   strings.TrimSpace(opts.start),
		FixDuplicates: a.cfg.Convert.FixDuplicates,
	}

	sess := core.NewSession()
	sess.Load(table)

	if opts.profile != "" {
		p, err := a.profiles.Load(opts.profile)
		if err != nil {
			return err
		}
		if req, err = p.Apply(req, sess); err != nil {
			return err
		}
	}
	for _, s := range opts.cutoffs {
		c, err := parseCutoffFlag(s)
		if err != nil {
			return err
		}
		if err := sess.SetCutoff(c.Serial, c.Start); err != nil {
			return err
		}
	}

	if opts.autoMap {
		req.Mapping = req.Mapping.Fill(core.AutoSuggest(table.Columns))
	}
	if req.TimeFormat == "" {
		req.TimeFormat = a.cfg.Convert.TimeFormat
	}
	if opts.noDedup {
		req.FixDuplicates = false
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Convert.Timeout)
	defer cancel()

	res, err := sess.Convert(ctx, req)
	if err != nil {
		return err
	}

	if opts.output == "" || opts.output == "-" {
		if err := sess.WriteCSV(stdout); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else if err := sess.Export(opts.output); err != nil {
		return err
	}

	slog.Info(core.ConvertedStatus(res),
		"input", input,
		"output", opts.output,
		"rows_in", res.Stats.RowsIn,
		"rows_dropped_global", res.Stats.DroppedGlobal,
		"rows_dropped_serial", res.Stats.DroppedPerSerial,
		"rows_shifted", res.Stats.Shifted,
		"invalid_times", res.Stats.InvalidTimes,
	)
	return nil
}
