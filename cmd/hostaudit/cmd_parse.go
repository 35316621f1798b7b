package main

import (
	"fmt"
	"strconv"

	"github.com/Velocidex/ordereddict"
	"github.com/spf13/cobra"

	"github.com/hostaudit/hostaudit/pkg/cli"
	"github.com/hostaudit/hostaudit/pkg/jsonutil"
	"github.com/hostaudit/hostaudit/pkg/sections"
	"github.com/hostaudit/hostaudit/pkg/ui"
)

func newParseCmd(a *app) *cobra.Command {
	var asJSON, normalize bool

	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Parse saved inspection-script output",
		Long: `Parse raw script output into sections without running anything.

  hostaudit parse audit.txt            # styled sections
  hostaudit parse audit.txt --json     # {"1": "...", "2": "..."} in script order
  hostaudit parse - --normalize        # canonical delimiters, from stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && normalize {
				return &cli.UsageError{Err: fmt.Errorf("--json and --normalize are mutually exclusive")}
			}
			in, done, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			set, err := sections.Parse(in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				results := ordereddict.NewDict()
				for _, sec := range set.Sections() {
					results.Set(strconv.Itoa(sec.ID), sec.Content)
				}
				data, err := jsonutil.MarshalIndent(results, "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s\n", data)
				return err
			case normalize:
				_, err := fmt.Fprint(out, sections.Format(set))
				return err
			default:
				ui.PrintSections(out, set)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print section id to content as JSON")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Re-emit the sections in canonical script format")
	return cmd
}
