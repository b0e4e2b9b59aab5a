package models

// VehicleIFTAData describes a qualified motor vehicle reported on an IFTA return.
type VehicleIFTAData struct {
	VIN              string   `bson:"vin" json:"vin"`
	UnitNumber       string   `bson:"unit_number" json:"unit_number"`
	FuelType         []string `bson:"fuel_type" json:"fuel_type"`                 // "diesel", "gasoline", ...
	RegisteredWeight int      `bson:"registered_weight" json:"registered_weight"` // in pounds
	BaseJurisdiction string   `bson:"base_jurisdiction" json:"base_jurisdiction"`
	IFTADecalNumber  string   `bson:"ifta_decal_number" json:"ifta_decal_number"`
	LicensePlate     string   `bson:"license_plate" json:"license_plate"`
}
