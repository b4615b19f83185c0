package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/numberhub/pkg/expr"
	"github.com/lemonberrylabs/numberhub/pkg/textfield"
	"github.com/lemonberrylabs/numberhub/pkg/units"
)

func (a *cli) evalCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "eval EXPRESSION...",
		Short: "Evaluate a calculator expression",
		Example: `  numberhub eval "2(3+4)"
  numberhub eval --angle deg "sin(30)"
  numberhub eval --precision 50 "π"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := a.cfg.Calc.Angle()
			if err != nil {
				return err
			}
			res := expr.Evaluate(strings.Join(args, " "), mode, a.cfg.Calc.Precision)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			}
			if !res.OK() {
				return res.Err
			}
			if !asJSON {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.String())
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *cli) deleteRangeCmd() *cobra.Command {
	var start, end int
	cmd := &cobra.Command{
		Use:   "delete-range TEXT",
		Short: "Show what one backspace removes from TEXT",
		Long: `Computes the range a single backspace deletes. Without --start the caret
sits at the end of TEXT; without --end the selection is collapsed.`,
		Example: `  numberhub delete-range "1+sin("
  numberhub delete-range --start 3 "2×(5+6)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if start < 0 {
				start = utf8.RuneCountInString(text)
			}
			if end < 0 {
				end = start
			}
			sel := textfield.Selection{Start: start, End: end}
			r := textfield.CalculateDeleteRange(text, sel)
			after, caret := textfield.Delete(text, sel)
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "range: [%d, %d)\ntext:  %s\ncaret: %d\n", r.Start, r.End, after, caret)
			return err
		},
	}
	cmd.Flags().IntVar(&start, "start", -1, "selection start (rune offset)")
	cmd.Flags().IntVar(&end, "end", -1, "selection end (rune offset)")
	return cmd
}

func (a *cli) timeCmd() *cobra.Command {
	var unit string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "time EXPRESSION...",
		Short: "Break a duration down into days through attoseconds",
		Example: `  numberhub time 90061
  numberhub time --unit hour 1.5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			b, err := svc.DecomposeTime(unit, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), b)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), b.String())
			return err
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "second", "time unit of the input")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print every component as JSON")
	return cmd
}

// service builds the converter for a one-shot command.
func (a *cli) service(cmd *cobra.Command) (*units.Service, func(), error) {
	be, err := build(cmd.Context(), a.cfg)
	if err != nil {
		return nil, nil, err
	}
	return be.svc, func() { _ = be.Close() }, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
