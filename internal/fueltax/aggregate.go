package fueltax

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-ifta/internal/models"
)

// MilesByJurisdiction sums recorded miles per jurisdiction.
func MilesByJurisdiction(records []models.MileageRecord) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, r := range records {
		code := models.NormalizeJurisdiction(r.Jurisdiction)
		totals[code] = totals[code].Add(decimal.NewFromFloat(r.Miles))
	}
	return totals
}

// GallonsByJurisdiction sums purchased gallons per jurisdiction.
func GallonsByJurisdiction(purchases []models.FuelPurchase) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, p := range purchases {
		code := models.NormalizeJurisdiction(p.Jurisdiction)
		totals[code] = totals[code].Add(decimal.NewFromFloat(p.Gallons))
	}
	return totals
}

// MileageJurisdictions returns the distinct jurisdictions that have mileage records, sorted.
func MileageJurisdictions(records []models.MileageRecord) []string {
	return sortedKeys(MilesByJurisdiction(records))
}

// Jurisdictions returns the sorted union of jurisdictions appearing in the
// mileage or fuel purchase records of data.
func Jurisdictions(data *models.IFTAQuarterlyData) []string {
	seen := make(map[string]decimal.Decimal)
	for code := range MilesByJurisdiction(data.MileageRecords) {
		seen[code] = decimal.Zero
	}
	for code := range GallonsByJurisdiction(data.FuelPurchases) {
		seen[code] = decimal.Zero
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
