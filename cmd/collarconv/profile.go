package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved mapping profiles",
	}
	cmd.AddCommand(
		newProfileSaveCmd(a),
		newProfileListCmd(a),
		newProfileShowCmd(a),
		newProfileDeleteCmd(a),
	)
	return cmd
}

type profileSaveOptions struct {
	settingsFlags
	from        string
	description string
	dedup       bool
}

func newProfileSaveCmd(a *app) *cobra.Command {
	var opts profileSaveOptions

	cmd := &cobra.Command{
		Use:   "save NAME",
		Short: "Save conversion settings under a name",
		Long: `Save conversion settings under a name.

With --from, the file's header is stored so later files with the same
layout are offered this profile, and --auto-map can fill the mapping
from it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &profile.Profile{
				Name:        args[0],
				Description: opts.description,
				Mapping:     opts.mapping,
				TimeFormat:  opts.format,
				GlobalStart: opts.start,
			}
			if cmd.Flags().Changed("dedup") || opts.noDedup {
				dedup := opts.dedup && !opts.noDedup
				p.FixDuplicates = &dedup
			}
			for _, s := range opts.cutoffs {
				c, err := parseCutoffFlag(s)
				if err != nil {
					return err
				}
				p.Cutoffs = append(p.Cutoffs, c)
			}

			if opts.from != "" {
				table, err := core.LoadFile(cmd.Context(), opts.from, a.cfg.LoadOptions())
				if err != nil {
					return err
				}
				p.Headers = table.Columns
				if opts.autoMap {
					p.Mapping = p.Mapping.Fill(core.AutoSuggest(table.Columns))
				}
			}

			if err := a.profiles.Save(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %s\n", p.Name)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.from, "from", "", "Sample export whose header is stored with the profile")
	cmd.Flags().StringVar(&opts.description, "description", "", "Free-form description")
	cmd.Flags().BoolVar(&opts.dedup, "dedup", true, "Shift duplicate serial/time fixes apart")
	return cmd
}

func newProfileListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := a.profiles.List()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no profiles in %s\n", a.profiles.Dir())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUPDATED\tDESCRIPTION")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.UpdatedAt.Format("2006-01-02 15:04"), p.Description)
			}
			return tw.Flush()
		},
	}
}

func newProfileShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.profiles.Load(args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(p); err != nil {
				return fmt.Errorf("encode profile: %w", err)
			}
			return enc.Close()
		},
	}
}

func newProfileDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.profiles.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted profile %s\n", args[0])
			return nil
		},
	}
}
