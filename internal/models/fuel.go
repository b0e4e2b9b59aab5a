package models

import "time"

// FuelPurchase is a single fuel purchase event. Records are never mutated once imported.
type FuelPurchase struct {
	Date         time.Time `bson:"date" json:"date"`
	Jurisdiction string    `bson:"jurisdiction" json:"jurisdiction"`
	FuelType     string    `bson:"fuel_type" json:"fuel_type"`
	Gallons      float64   `bson:"gallons" json:"gallons"`
	UnitPrice    float64   `bson:"unit_price" json:"unit_price"`     // in USD per gallon
	TotalAmount  float64   `bson:"total_amount" json:"total_amount"` // in USD
	VendorName   string    `bson:"vendor_name" json:"vendor_name"`
	Location     string    `bson:"location" json:"location"`
}

// MileageRecord is the distance driven in one jurisdiction on a trip leg.
type MileageRecord struct {
	Date         time.Time `bson:"date" json:"date"`
	Jurisdiction string    `bson:"jurisdiction" json:"jurisdiction"`
	Miles        float64   `bson:"miles" json:"miles"`
	Route        string    `bson:"route" json:"route"`
	TripPurpose  string    `bson:"trip_purpose" json:"trip_purpose"` // "delivery", "deadhead", ...
}
