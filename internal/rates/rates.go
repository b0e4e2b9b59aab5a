// Package rates holds the jurisdiction fuel tax rate table.
package rates

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-ifta/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownJurisdiction = errors.New("no tax rate configured for jurisdiction")
	ErrInvalidRate         = errors.New("invalid tax rate")
)

// defaultRates are diesel rates in USD per gallon used when no rate file is configured.
var defaultRates = map[string]string{
	"AL": "0.3100",
	"AR": "0.2850",
	"AZ": "0.2600",
	"CA": "0.9760",
	"CO": "0.3250",
	"FL": "0.3950",
	"GA": "0.3710",
	"IL": "0.7660",
	"IN": "0.5900",
	"KY": "0.2760",
	"LA": "0.2000",
	"MS": "0.1800",
	"NC": "0.4050",
	"NM": "0.2100",
	"NV": "0.2700",
	"NY": "0.3925",
	"OH": "0.4700",
	"OK": "0.1900",
	"PA": "0.7850",
	"SC": "0.2800",
	"TN": "0.2700",
	"TX": "0.2000",
	"VA": "0.3190",
}

// Table maps jurisdiction codes to tax rates per gallon. It is immutable once built.
type Table struct {
	rates map[string]decimal.Decimal
}

// New builds a table from code -> rate pairs.
func New(rates map[string]decimal.Decimal) (*Table, error) {
	t := &Table{rates: make(map[string]decimal.Decimal, len(rates))}
	for code, rate := range rates {
		code = models.NormalizeJurisdiction(code)
		if code == "" {
			return nil, fmt.Errorf("%w: empty jurisdiction code", ErrInvalidRate)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("%w: %s rate %s is negative", ErrInvalidRate, code, rate)
		}
		t.rates[code] = rate
	}
	return t, nil
}

// Default returns the built-in rate table.
func Default() *Table {
	t, err := parse(defaultRates)
	if err != nil {
		panic(err)
	}
	return t
}

type rateFile struct {
	Rates map[string]string `yaml:"rates"`
}

// LoadFile reads a YAML rate table of the form:
//
//	rates:
//	  FL: "0.3950"
//	  TX: "0.2000"
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate file: %w", err)
	}
	var f rateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rate file: %w", err)
	}
	if len(f.Rates) == 0 {
		return nil, fmt.Errorf("rate file %s defines no rates", path)
	}
	return parse(f.Rates)
}

func parse(raw map[string]string) (*Table, error) {
	parsed := make(map[string]decimal.Decimal, len(raw))
	for code, s := range raw {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRate, code, err)
		}
		parsed[code] = rate
	}
	return New(parsed)
}

// Rate returns the tax rate for a jurisdiction.
func (t *Table) Rate(jurisdiction string) (decimal.Decimal, error) {
	code := models.NormalizeJurisdiction(jurisdiction)
	rate, ok := t.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, code)
	}
	return rate, nil
}

// Has reports whether a rate is configured for the jurisdiction.
func (t *Table) Has(jurisdiction string) bool {
	_, ok := t.rates[models.NormalizeJurisdiction(jurisdiction)]
	return ok
}

// Jurisdictions lists configured codes in sorted order.
func (t *Table) Jurisdictions() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
