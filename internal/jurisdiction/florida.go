package jurisdiction

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ukydev/fleet-ifta/internal/models"
)

const floridaNamespace = "urn:fl:dor:ifta:quarterly:v1"

type floridaReturn struct {
	XMLName       xml.Name          `xml:"FloridaIFTAReturn"`
	Xmlns         string            `xml:"xmlns,attr"`
	Licensee      xmlCarrier        `xml:"Licensee"`
	Period        xmlPeriod         `xml:"ReportingPeriod"`
	Vehicles      []xmlVehicle      `xml:"Vehicles>Vehicle"`
	FuelPurchases []xmlFuelPurchase `xml:"FuelPurchases>Purchase"`
	Distance      []xmlDistance     `xml:"DistanceByJurisdiction>Distance"`
}

// NewFlorida returns the Florida Department of Revenue adapter.
func NewFlorida(cfg Config) Adapter {
	return &httpAdapter{
		code:            "FL",
		sub:             newSubmitter("FL", cfg),
		render:          renderFlorida,
		validate:        validateFlorida,
		statusSupported: true,
	}
}

func renderFlorida(data *models.IFTAQuarterlyData) any {
	return floridaReturn{
		Xmlns:         floridaNamespace,
		Licensee:      carrierHeader(data),
		Period:        reportingPeriod(data),
		Vehicles:      vehicleList(data),
		FuelPurchases: fuelPurchaseList(data),
		Distance:      distanceByJurisdiction(data),
	}
}

// Florida matches decals against its licensee records.
func validateFlorida(data *models.IFTAQuarterlyData) []string {
	var errs []string
	for i, v := range data.Vehicles {
		if strings.TrimSpace(v.IFTADecalNumber) == "" {
			errs = append(errs, fmt.Sprintf("vehicle %d: IFTA decal number is required", i+1))
		}
	}
	return errs
}
