package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRatesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rates [jurisdiction...]",
		Short: "List fuel tax rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := opts.rateTable()
			if err != nil {
				return err
			}
			codes := args
			if len(codes) == 0 {
				codes = table.Jurisdictions()
			}
			for _, code := range codes {
				rate, err := table.Rate(code)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, rate.String())
			}
			return nil
		},
	}
}
