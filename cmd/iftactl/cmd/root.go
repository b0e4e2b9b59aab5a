// Package cmd provides the iftactl commands: offline fuel tax summaries,
// return validation and document rendering.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/models"
	"github.com/ukydev/fleet-ifta/internal/rates"
)

type options struct {
	ratesFile string
	mpg       float64
	debug     bool
}

// NewRootCmd builds the iftactl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "iftactl",
		Short: "Prepare IFTA quarterly fuel tax returns",
		Long: `iftactl works on quarterly fuel and mileage data stored as JSON.

It supports:
- Computing per-jurisdiction net gallons, tax owed and refunds
- Listing the configured fuel tax rates
- Validating a quarter against a jurisdiction's filing rules
- Rendering the XML return document a jurisdiction receives

Example:
  iftactl summarize --input q2-2024.json
  iftactl rates --rates rates.yaml
  iftactl validate --input q2-2024.json --jurisdiction TX`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(cmd.ErrOrStderr())
			if opts.debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.ratesFile, "rates", "", "YAML rate table (default is the built-in table)")
	root.PersistentFlags().Float64Var(&opts.mpg, "mpg", fueltax.DefaultMPG, "fleet average miles per gallon")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newSummarizeCmd(opts))
	root.AddCommand(newRatesCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newPayloadCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) rateTable() (*rates.Table, error) {
	if o.ratesFile == "" {
		return rates.Default(), nil
	}
	log.WithField("path", o.ratesFile).Debug("Loading rate table")
	return rates.LoadFile(o.ratesFile)
}

func (o *options) calculator() (*fueltax.Calculator, error) {
	table, err := o.rateTable()
	if err != nil {
		return nil, err
	}
	return fueltax.NewCalculator(table, fueltax.WithMPG(o.mpg))
}

func readQuarter(path string) (*models.IFTAQuarterlyData, error) {
	if path == "" {
		return nil, fmt.Errorf("--input is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data models.IFTAQuarterlyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &data, nil
}
