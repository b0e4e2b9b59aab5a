package jurisdiction

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/ukydev/fleet-ifta/internal/models"
)

var einPattern = regexp.MustCompile(`^\d{2}-?\d{7}$`)

type texasReturn struct {
	XMLName      xml.Name          `xml:"IFTAQuarterlyReturn"`
	Jurisdiction string            `xml:"jurisdiction,attr"`
	Taxpayer     xmlCarrier        `xml:"Taxpayer"`
	Period       xmlPeriod         `xml:"Period"`
	Fleet        []xmlVehicle      `xml:"Fleet>QualifiedVehicle"`
	Receipts     []xmlFuelPurchase `xml:"FuelReceipts>Receipt"`
	Mileage      []xmlDistance     `xml:"MileageSummary>Jurisdiction"`
}

// NewTexas returns the Texas Comptroller adapter. Texas offers no status
// lookup, so CheckStatus always fails with ErrStatusCheckNotImplemented.
func NewTexas(cfg Config) Adapter {
	return &httpAdapter{
		code:     "TX",
		sub:      newSubmitter("TX", cfg),
		render:   renderTexas,
		validate: validateTexas,
	}
}

func renderTexas(data *models.IFTAQuarterlyData) any {
	return texasReturn{
		Jurisdiction: "TX",
		Taxpayer:     carrierHeader(data),
		Period:       reportingPeriod(data),
		Fleet:        vehicleList(data),
		Receipts:     fuelPurchaseList(data),
		Mileage:      distanceByJurisdiction(data),
	}
}

func validateTexas(data *models.IFTAQuarterlyData) []string {
	ein := strings.TrimSpace(data.Carrier.EIN)
	switch {
	case ein == "":
		return []string{"carrier EIN is required"}
	case !einPattern.MatchString(ein):
		return []string{"carrier EIN must be nine digits"}
	}
	return nil
}
