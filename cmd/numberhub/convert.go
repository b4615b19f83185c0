package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/numberhub/pkg/units"
)

var (
	unitIDColor   = color.New(color.FgCyan)
	favoriteColor = color.New(color.FgYellow, color.Bold)
	mutedColor    = color.New(color.Faint)
)

func (a *cli) convertCmd() *cobra.Command {
	var formatTime, asJSON bool
	var inches string
	cmd := &cobra.Command{
		Use:   "convert INPUT FROM [TO]",
		Short: "Convert a value between units",
		Long: `Converts INPUT (a calculator expression) from unit FROM to unit TO. Without
TO, the value is converted into every unit of FROM's group. Number bases take
and print digit strings instead of expressions.`,
		Example: `  numberhub convert 5 mile kilometer
  numberhub convert "100-32" fahrenheit celsius
  numberhub convert 5 foot meter --inches 6
  numberhub convert ff hexadecimal binary
  numberhub --rates-file rates.yaml convert 20 usd`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				items, err := svc.ConvertAll(ctx, args[1], args[0], a.cfg.Calc.Precision)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, items)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, it := range items {
					value := mutedColor.Sprint("unavailable")
					if it.Available {
						value = fmt.Sprintf("%s %s", it.Display(), it.Unit.Short)
					}
					_, _ = fmt.Fprintf(tw, "%s\t%s\n", unitIDColor.Sprint(it.Unit.ID), value)
				}
				return tw.Flush()
			}

			conv := svc.Convert(ctx, units.ConvertRequest{
				From:       args[1],
				To:         args[2],
				Input:      args[0],
				Inches:     inches,
				Precision:  a.cfg.Calc.Precision,
				FormatTime: formatTime,
			})
			if asJSON {
				if err := writeJSON(out, conv); err != nil {
					return err
				}
			}
			if !conv.OK() {
				return conv.Err
			}
			if asJSON {
				return nil
			}
			if _, err := fmt.Fprintf(out, "%s %s\n", conv.String(), conv.To.Short); err != nil {
				return err
			}
			if conv.Time != nil {
				_, err = fmt.Fprintln(out, mutedColor.Sprint(conv.Time.String()))
			}
			if err == nil && conv.FootInch != nil {
				_, err = fmt.Fprintln(out, mutedColor.Sprint(conv.FootInch.String()))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&formatTime, "format-time", false, "also break time inputs down into days through attoseconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&inches, "inches", "", "inches added to a foot INPUT (an expression)")
	return cmd
}

func (a *cli) unitsCmd() *cobra.Command {
	var groups []string
	var favorites bool
	var sortBy string
	cmd := &cobra.Command{
		Use:   "units [QUERY]",
		Short: "List and search units",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sorting, err := units.ParseSorting(sortBy)
			if err != nil {
				return err
			}
			svc, done, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			opts := units.FilterOptions{FavoritesOnly: favorites, Sorting: sorting}
			if len(args) == 1 {
				opts.Query = args[0]
			}
			for _, g := range groups {
				opts.Groups = append(opts.Groups, units.Group(strings.ToLower(g)))
			}

			views, err := svc.Filter(cmd.Context(), opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, v := range views {
				star := " "
				if v.Stats.Favorite {
					star = favoriteColor.Sprint("★")
				}
				_, _ = fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n",
					star, unitIDColor.Sprint(v.Unit.ID), v.Unit.Short, v.Unit.Name, mutedColor.Sprint(v.Unit.Group))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&groups, "group", nil, "only list these groups")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "only list favorites")
	cmd.Flags().StringVar(&sortBy, "sort", "usage", "order: usage, alphabetical, scale_asc, scale_desc")

	cmd.AddCommand(a.favoriteCmd(), a.pairCmd())
	return cmd
}

func (a *cli) favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite UNIT",
		Short: "Toggle the favorite flag of a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			st, err := svc.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "removed from favorites"
			if st.Favorite {
				state = "added to favorites"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.UnitID, state)
			return err
		},
	}
}

func (a *cli) pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair UNIT [TARGET]",
		Short: "Show or set the default conversion target of a unit",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			if len(args) == 2 {
				if _, err := svc.SetPair(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
			}
			p, err := svc.Pair(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], p.ID)
			return err
		},
	}
}
