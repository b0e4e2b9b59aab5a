package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/models"
)

func newSummarizeCmd(opts *options) *cobra.Command {
	var (
		input  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Compute jurisdiction summaries for a quarter",
		Long: `Compute miles, fuel purchased, net gallons, tax owed and refund due for
every jurisdiction in a quarter. Jurisdictions without a configured rate are
marked and carry no amounts.

Example:
  iftactl summarize --input q2-2024.json --mpg 6.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readQuarter(input)
			if err != nil {
				return err
			}
			calc, err := opts.calculator()
			if err != nil {
				return err
			}
			summaries := calc.GenerateJurisdictionSummaries(data)
			total := fueltax.TotalNetAmount(summaries)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Summaries      []models.JurisdictionSummary `json:"summaries"`
					TotalNetAmount string                       `json:"total_net_amount"`
				}{summaries, total.StringFixed(2)})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "JURISDICTION\tMILES\tGALLONS\tRATE\tNET GAL\tTAX OWED\tREFUND\tNET\t")
			for _, s := range summaries {
				rate := "n/a"
				if s.RateConfigured {
					rate = s.FuelRate.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
					s.Jurisdiction, s.TotalMiles.StringFixed(1), s.FuelPurchased.StringFixed(3), rate,
					s.NetGallons.StringFixed(3), s.TaxOwed.StringFixed(2), s.RefundDue.StringFixed(2), s.NetAmount.StringFixed(2))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			due := models.DueDate(data.Period.Quarter, data.Period.Year)
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal net amount: %s (due %s)\n", total.StringFixed(2), due.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "quarterly data JSON file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
