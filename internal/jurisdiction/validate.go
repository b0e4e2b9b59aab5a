package jurisdiction

import (
	"fmt"
	"strings"

	"github.com/ukydev/fleet-ifta/internal/models"
)

// ValidateCommon checks the fields every jurisdiction requires.
func ValidateCommon(data *models.IFTAQuarterlyData) []string {
	var errs []string
	if data == nil {
		return []string{"quarterly data is required"}
	}

	c := data.Carrier
	if strings.TrimSpace(c.IFTAAccountNumber) == "" {
		errs = append(errs, "IFTA account number is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "carrier name is required")
	}
	if models.NormalizeJurisdiction(c.BaseJurisdiction) == "" {
		errs = append(errs, "base jurisdiction is required")
	}

	p := data.Period
	if p.Quarter < 1 || p.Quarter > 4 {
		errs = append(errs, fmt.Sprintf("quarter must be between 1 and 4, got %d", p.Quarter))
	}
	if p.Year <= 0 {
		errs = append(errs, "reporting year is required")
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.StartDate.After(p.EndDate) {
		errs = append(errs, "reporting period start date is after end date")
	}

	if len(data.Vehicles) == 0 {
		errs = append(errs, "at least one reportable vehicle is required")
	}
	for i, v := range data.Vehicles {
		if strings.TrimSpace(v.VIN) == "" {
			errs = append(errs, fmt.Sprintf("vehicle %d: VIN is required", i+1))
		}
	}

	for i, r := range data.MileageRecords {
		if models.NormalizeJurisdiction(r.Jurisdiction) == "" {
			errs = append(errs, fmt.Sprintf("mileage record %d: jurisdiction is required", i+1))
		}
		if r.Miles < 0 {
			errs = append(errs, fmt.Sprintf("mileage record %d: miles must not be negative", i+1))
		}
	}
	for i, f := range data.FuelPurchases {
		if models.NormalizeJurisdiction(f.Jurisdiction) == "" {
			errs = append(errs, fmt.Sprintf("fuel purchase %d: jurisdiction is required", i+1))
		}
		if f.Gallons < 0 {
			errs = append(errs, fmt.Sprintf("fuel purchase %d: gallons must not be negative", i+1))
		}
	}
	return errs
}
