// Package fueltax computes IFTA fuel consumption, net gallons and tax
// liability per jurisdiction.
//
// Gallon figures are rounded to GallonPlaces before they are multiplied by a
// rate and every currency amount is rounded to cents.
package fueltax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-ifta/internal/models"
)

const (
	// DefaultMPG is the fleet-wide fuel economy assumed when none is configured.
	DefaultMPG = 6.5

	GallonPlaces   = 3
	CurrencyPlaces = 2
)

var ErrInvalidMPG = errors.New("miles per gallon must be greater than zero")

// RateSource looks up the tax rate per gallon for a jurisdiction.
type RateSource interface {
	Rate(jurisdiction string) (decimal.Decimal, error)
}

// Calculator derives jurisdiction summaries from quarterly data.
type Calculator struct {
	rates RateSource
	mpg   decimal.Decimal
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithMPG overrides the assumed fuel economy.
func WithMPG(mpg float64) Option {
	return func(c *Calculator) {
		c.mpg = decimal.NewFromFloat(mpg)
	}
}

// NewCalculator creates a calculator using rates for tax lookups.
func NewCalculator(rates RateSource, opts ...Option) (*Calculator, error) {
	c := &Calculator{
		rates: rates,
		mpg:   decimal.NewFromFloat(DefaultMPG),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.mpg.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidMPG, c.mpg)
	}
	return c, nil
}

// MPG returns the fuel economy the calculator assumes.
func (c *Calculator) MPG() decimal.Decimal {
	return c.mpg
}

// HasRate reports whether a tax rate is configured for the jurisdiction.
func (c *Calculator) HasRate(jurisdiction string) bool {
	_, err := c.rates.Rate(jurisdiction)
	return err == nil
}

// FuelConsumption returns the gallons consumed driving miles at mpg.
func FuelConsumption(miles, mpg decimal.Decimal) (decimal.Decimal, error) {
	if !mpg.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidMPG, mpg)
	}
	return miles.Div(mpg), nil
}

// CalculateFuelConsumption returns the gallons consumed driving miles at the
// calculator's configured mpg.
func (c *Calculator) CalculateFuelConsumption(miles decimal.Decimal) decimal.Decimal {
	return miles.Div(c.mpg)
}

// CalculateNetGallons returns gallons consumed minus gallons purchased in a
// jurisdiction. Positive means tax is owed, negative means a refund is due.
func (c *Calculator) CalculateNetGallons(jurisdiction string, data *models.IFTAQuarterlyData) decimal.Decimal {
	code := models.NormalizeJurisdiction(jurisdiction)
	miles := MilesByJurisdiction(data.MileageRecords)[code]
	purchased := GallonsByJurisdiction(data.FuelPurchases)[code]
	return c.netGallons(miles, purchased)
}

func (c *Calculator) netGallons(miles, purchased decimal.Decimal) decimal.Decimal {
	return c.CalculateFuelConsumption(miles).Sub(purchased).Round(GallonPlaces)
}

// CalculateTaxOwed returns max(0, netGallons * rate) in cents.
func (c *Calculator) CalculateTaxOwed(jurisdiction string, netGallons decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.rates.Rate(jurisdiction)
	if err != nil {
		return decimal.Zero, err
	}
	return taxOwed(netGallons, rate), nil
}

func taxOwed(netGallons, rate decimal.Decimal) decimal.Decimal {
	tax := netGallons.Round(GallonPlaces).Mul(rate)
	if !tax.IsPositive() {
		return decimal.Zero
	}
	return tax.Round(CurrencyPlaces)
}

func refundDue(netGallons, rate decimal.Decimal) decimal.Decimal {
	if !netGallons.IsNegative() {
		return decimal.Zero
	}
	return netGallons.Round(GallonPlaces).Mul(rate).Abs().Round(CurrencyPlaces)
}

// GenerateJurisdictionSummaries returns one summary per jurisdiction that has
// mileage or fuel purchases, sorted by jurisdiction code. Jurisdictions with
// neither miles nor gallons are omitted. A jurisdiction without a configured
// rate is reported with RateConfigured false and zero amounts.
func (c *Calculator) GenerateJurisdictionSummaries(data *models.IFTAQuarterlyData) []models.JurisdictionSummary {
	miles := MilesByJurisdiction(data.MileageRecords)
	gallons := GallonsByJurisdiction(data.FuelPurchases)

	summaries := make([]models.JurisdictionSummary, 0)
	for _, code := range Jurisdictions(data) {
		totalMiles := miles[code]
		purchased := gallons[code]
		if totalMiles.IsZero() && purchased.IsZero() {
			continue
		}

		net := c.netGallons(totalMiles, purchased)
		summary := models.JurisdictionSummary{
			Jurisdiction: code,
			TotalMiles:   totalMiles,
			// Exempt mileage is not tracked yet, so every mile is taxable.
			TaxableMiles:  totalMiles,
			FuelPurchased: purchased,
			NetGallons:    net,
			TaxOwed:       decimal.Zero,
			RefundDue:     decimal.Zero,
			NetAmount:     decimal.Zero,
		}

		if rate, err := c.rates.Rate(code); err == nil {
			summary.RateConfigured = true
			summary.FuelRate = rate
			summary.TaxOwed = taxOwed(net, rate)
			summary.RefundDue = refundDue(net, rate)
			summary.NetAmount = summary.TaxOwed.Sub(summary.RefundDue)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// TotalNetAmount sums the net amount across summaries.
func TotalNetAmount(summaries []models.JurisdictionSummary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range summaries {
		total = total.Add(s.NetAmount)
	}
	return total
}

// SummaryFor returns the summary for a jurisdiction, if present.
func SummaryFor(summaries []models.JurisdictionSummary, jurisdiction string) (models.JurisdictionSummary, bool) {
	code := models.NormalizeJurisdiction(jurisdiction)
	for _, s := range summaries {
		if s.Jurisdiction == code {
			return s, true
		}
	}
	return models.JurisdictionSummary{}, false
}
