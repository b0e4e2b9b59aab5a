package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Carrier identifies the licensee filing the return.
type Carrier struct {
	Name              string `bson:"name" json:"name"`
	EIN               string `bson:"ein" json:"ein"`
	IFTAAccountNumber string `bson:"ifta_account_number" json:"ifta_account_number"`
	BaseJurisdiction  string `bson:"base_jurisdiction" json:"base_jurisdiction"`
	CarrierID         string `bson:"carrier_id" json:"carrier_id"`
}

// ReportingPeriod is the calendar quarter a return covers.
type ReportingPeriod struct {
	Quarter   int       `bson:"quarter" json:"quarter"` // 1-4
	Year      int       `bson:"year" json:"year"`
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
}

// IFTAQuarterlyData is everything needed to prepare one quarter's return.
// It is treated as read-only once a submission has been made against it.
type IFTAQuarterlyData struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Carrier        Carrier            `bson:"carrier" json:"carrier"`
	Period         ReportingPeriod    `bson:"period" json:"period"`
	Vehicles       []VehicleIFTAData  `bson:"vehicles" json:"vehicles"`
	FuelPurchases  []FuelPurchase     `bson:"fuel_purchases" json:"fuel_purchases"`
	MileageRecords []MileageRecord    `bson:"mileage_records" json:"mileage_records"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// NormalizeJurisdiction returns the canonical form of a jurisdiction code.
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// QuarterBounds returns the first and last calendar day of the quarter.
func QuarterBounds(quarter, year int) (time.Time, time.Time) {
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	return start, end
}

// DueDate returns the filing deadline for the quarter: the last day of the
// month following the end of the quarter.
func DueDate(quarter, year int) time.Time {
	_, end := QuarterBounds(quarter, year)
	firstOfNext := time.Date(end.Year(), end.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 1, -1)
}
