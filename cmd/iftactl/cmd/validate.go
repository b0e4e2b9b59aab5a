package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-ifta/internal/jurisdiction"
	"github.com/ukydev/fleet-ifta/internal/models"
)

var errInvalidQuarter = errors.New("quarterly data is not valid")

// offlineAdapters returns adapters without endpoints; they can validate
// and render but every submission would be rejected.
func offlineAdapters() *jurisdiction.Registry {
	return jurisdiction.NewRegistry(
		jurisdiction.NewFlorida(jurisdiction.Config{}),
		jurisdiction.NewTexas(jurisdiction.Config{}),
	)
}

func lookupAdapter(code string) (jurisdiction.Adapter, error) {
	adapter, ok := offlineAdapters().Lookup(code)
	if !ok {
		return nil, fmt.Errorf("no adapter for jurisdiction %q", models.NormalizeJurisdiction(code))
	}
	return adapter, nil
}

func newValidateCmd(_ *options) *cobra.Command {
	var input, code string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a quarter against filing rules",
		Long: `Check a quarter against the common IFTA rules or, with --jurisdiction,
against that jurisdiction's filing rules. Exits non-zero when problems are found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readQuarter(input)
			if err != nil {
				return err
			}
			var problems []string
			if code == "" {
				problems = jurisdiction.ValidateCommon(data)
			} else {
				adapter, err := lookupAdapter(code)
				if err != nil {
					return err
				}
				problems = adapter.ValidateData(data)
			}
			if len(problems) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			}
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), "- "+p)
			}
			return fmt.Errorf("%w: %d problem(s)", errInvalidQuarter, len(problems))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "quarterly data JSON file")
	cmd.Flags().StringVarP(&code, "jurisdiction", "j", "", "jurisdiction code (FL, TX)")
	return cmd
}

func newPayloadCmd(_ *options) *cobra.Command {
	var input, code, output string
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Render the XML return document for a jurisdiction",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readQuarter(input)
			if err != nil {
				return err
			}
			adapter, err := lookupAdapter(code)
			if err != nil {
				return err
			}
			doc, err := adapter.GeneratePayload(data)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, doc, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(doc)
			return err
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "quarterly data JSON file")
	cmd.Flags().StringVarP(&code, "jurisdiction", "j", "", "jurisdiction code (FL, TX)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("jurisdiction")
	return cmd
}
