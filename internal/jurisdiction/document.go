package jurisdiction

import (
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/models"
)

const dateLayout = "2006-01-02"

type xmlCarrier struct {
	Name             string `xml:"Name"`
	EIN              string `xml:"EIN,omitempty"`
	AccountNumber    string `xml:"IFTAAccountNumber"`
	BaseJurisdiction string `xml:"BaseJurisdiction"`
}

type xmlPeriod struct {
	Quarter   int    `xml:"Quarter"`
	Year      int    `xml:"Year"`
	StartDate string `xml:"StartDate"`
	EndDate   string `xml:"EndDate"`
}

type xmlVehicle struct {
	VIN        string `xml:"VIN"`
	UnitNumber string `xml:"UnitNumber"`
	Decal      string `xml:"IFTADecal,omitempty"`
}

type xmlFuelPurchase struct {
	Date         string `xml:"Date"`
	Jurisdiction string `xml:"Jurisdiction"`
	FuelType     string `xml:"FuelType"`
	Gallons      string `xml:"Gallons"`
	Amount       string `xml:"Amount"`
}

type xmlDistance struct {
	Jurisdiction string `xml:"code,attr"`
	Miles        string `xml:",chardata"`
}

func carrierHeader(data *models.IFTAQuarterlyData) xmlCarrier {
	return xmlCarrier{
		Name:             data.Carrier.Name,
		EIN:              data.Carrier.EIN,
		AccountNumber:    data.Carrier.IFTAAccountNumber,
		BaseJurisdiction: models.NormalizeJurisdiction(data.Carrier.BaseJurisdiction),
	}
}

func reportingPeriod(data *models.IFTAQuarterlyData) xmlPeriod {
	start, end := data.Period.StartDate, data.Period.EndDate
	if start.IsZero() || end.IsZero() {
		start, end = models.QuarterBounds(data.Period.Quarter, data.Period.Year)
	}
	return xmlPeriod{
		Quarter:   data.Period.Quarter,
		Year:      data.Period.Year,
		StartDate: start.Format(dateLayout),
		EndDate:   end.Format(dateLayout),
	}
}

func vehicleList(data *models.IFTAQuarterlyData) []xmlVehicle {
	out := make([]xmlVehicle, 0, len(data.Vehicles))
	for _, v := range data.Vehicles {
		out = append(out, xmlVehicle{VIN: v.VIN, UnitNumber: v.UnitNumber, Decal: v.IFTADecalNumber})
	}
	return out
}

func fuelPurchaseList(data *models.IFTAQuarterlyData) []xmlFuelPurchase {
	out := make([]xmlFuelPurchase, 0, len(data.FuelPurchases))
	for _, p := range data.FuelPurchases {
		out = append(out, xmlFuelPurchase{
			Date:         p.Date.Format(dateLayout),
			Jurisdiction: models.NormalizeJurisdiction(p.Jurisdiction),
			FuelType:     p.FuelType,
			Gallons:      decimal.NewFromFloat(p.Gallons).StringFixed(fueltax.GallonPlaces),
			Amount:       decimal.NewFromFloat(p.TotalAmount).StringFixed(fueltax.CurrencyPlaces),
		})
	}
	return out
}

// distanceByJurisdiction groups the flat mileage records and sums miles per jurisdiction.
func distanceByJurisdiction(data *models.IFTAQuarterlyData) []xmlDistance {
	miles := fueltax.MilesByJurisdiction(data.MileageRecords)
	out := make([]xmlDistance, 0, len(miles))
	for _, code := range fueltax.MileageJurisdictions(data.MileageRecords) {
		out = append(out, xmlDistance{Jurisdiction: code, Miles: miles[code].String()})
	}
	return out
}

func marshalDocument(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render return document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
