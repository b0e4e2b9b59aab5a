package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/models"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is a city on the simulated freight corridor.
type Stop struct {
	Name         string
	Jurisdiction string
	Location     Location
}

// Interstate 10 and 75 freight corridor, ordered west to east then north.
var corridor = []Stop{
	{"Houston", "TX", Location{29.7604, -95.3698}},
	{"Beaumont", "TX", Location{30.0802, -94.1266}},
	{"Lake Charles", "LA", Location{30.2266, -93.2174}},
	{"Baton Rouge", "LA", Location{30.4515, -91.1871}},
	{"Gulfport", "MS", Location{30.3674, -89.0928}},
	{"Mobile", "AL", Location{30.6954, -88.0399}},
	{"Pensacola", "FL", Location{30.4213, -87.2169}},
	{"Tallahassee", "FL", Location{30.4383, -84.2807}},
	{"Jacksonville", "FL", Location{30.3322, -81.6557}},
	{"Valdosta", "GA", Location{30.8327, -83.2785}},
	{"Atlanta", "GA", Location{33.7490, -84.3880}},
}

const (
	roadFactor   = 1.2 // road miles per great-circle mile
	tankGallons  = 150.0
	refuelAtPct  = 0.25
	dieselPerGal = 3.85
)

func haversineMiles(a, b Location) float64 {
	R := 3958.8
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

// truckState tracks one vehicle through the quarter.
type truckState struct {
	Position int     // index into corridor
	FuelGal  float64 // gallons in tank
	MPG      float64
}

// planTrip picks a destination at least two stops away from the truck's position.
func planTrip(r *rand.Rand, from int) int {
	for {
		to := r.Intn(len(corridor))
		if d := to - from; d >= 2 || d <= -2 {
			return to
		}
	}
}

// driveTrip moves a truck stop by stop, splitting each leg's miles evenly
// between the two ends and buying fuel whenever the tank runs low.
func driveTrip(r *rand.Rand, s *truckState, to int, day time.Time, data *models.IFTAQuarterlyData) {
	step := 1
	if to < s.Position {
		step = -1
	}
	route := fmt.Sprintf("%s-%s", corridor[s.Position].Name, corridor[to].Name)
	for i := s.Position; i != to; i += step {
		a, b := corridor[i], corridor[i+step]
		miles := math.Round(haversineMiles(a.Location, b.Location)*roadFactor*10) / 10
		half := math.Round(miles/2*10) / 10
		for _, leg := range []struct {
			jurisdiction string
			miles        float64
		}{{a.Jurisdiction, half}, {b.Jurisdiction, miles - half}} {
			data.MileageRecords = append(data.MileageRecords, models.MileageRecord{
				Date:         day,
				Jurisdiction: leg.jurisdiction,
				Miles:        leg.miles,
				Route:        route,
				TripPurpose:  "freight",
			})
		}

		s.FuelGal -= miles / s.MPG
		if s.FuelGal < tankGallons*refuelAtPct {
			gallons := math.Round((tankGallons-s.FuelGal)*1000) / 1000
			price := dieselPerGal + (r.Float64()-0.5)*0.4
			data.FuelPurchases = append(data.FuelPurchases, models.FuelPurchase{
				Date:         day,
				Jurisdiction: b.Jurisdiction,
				FuelType:     "diesel",
				Gallons:      gallons,
				UnitPrice:    math.Round(price*1000) / 1000,
				TotalAmount:  math.Round(gallons*price*100) / 100,
				VendorName:   "Corridor Truck Stop",
				Location:     b.Name,
			})
			s.FuelGal = tankGallons
		}
	}
	s.Position = to
}

// simulateQuarter builds a full quarter of trips for a fleet of fleetSize trucks.
func simulateQuarter(r *rand.Rand, fleetSize, quarter, year, tripsPerTruck int) *models.IFTAQuarterlyData {
	start, end := models.QuarterBounds(quarter, year)
	data := &models.IFTAQuarterlyData{
		Carrier: models.Carrier{
			Name:              "Gulf Corridor Logistics LLC",
			EIN:               "12-3456789",
			IFTAAccountNumber: "FL-IFTA-100200",
			BaseJurisdiction:  "FL",
			CarrierID:         "GCL-001",
		},
		Period: models.ReportingPeriod{Quarter: quarter, Year: year, StartDate: start, EndDate: end},
	}

	days := int(end.Sub(start).Hours()/24) + 1
	for i := 0; i < fleetSize; i++ {
		v := models.VehicleIFTAData{
			VIN:              fmt.Sprintf("1XKYD49X%09d", r.Intn(1_000_000_000)),
			UnitNumber:       fmt.Sprintf("T-%03d", i+1),
			FuelType:         []string{"diesel"},
			RegisteredWeight: 80000,
			BaseJurisdiction: "FL",
			IFTADecalNumber:  fmt.Sprintf("FL%02d-%06d", year%100, r.Intn(1_000_000)),
			LicensePlate:     fmt.Sprintf("FLT%04d", r.Intn(10_000)),
		}
		data.Vehicles = append(data.Vehicles, v)

		s := &truckState{
			Position: r.Intn(len(corridor)),
			FuelGal:  tankGallons * (0.5 + r.Float64()*0.5),
			MPG:      6 + r.Float64(),
		}
		for trip := 0; trip < tripsPerTruck; trip++ {
			day := start.AddDate(0, 0, (trip*days)/tripsPerTruck)
			driveTrip(r, s, planTrip(r, s.Position), day, data)
		}

		log.WithFields(log.Fields{
			"unit": v.UnitNumber,
			"vin":  v.VIN,
			"mpg":  fmt.Sprintf("%.2f", s.MPG),
		}).Debug("Simulated vehicle quarter")
	}
	return data
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// createReturn stores the quarter and returns its ID.
func createReturn(ctx context.Context, client *http.Client, apiURL string, data *models.IFTAQuarterlyData) (string, error) {
	resp, err := postJSON(ctx, client, apiURL+"/ifta/returns", data)
	if err != nil {
		return "", fmt.Errorf("failed to create return: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("return creation failed with status: %d", resp.StatusCode)
	}

	var created models.IFTAQuarterlyData
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if created.ID.IsZero() {
		return "", fmt.Errorf("invalid return ID in response")
	}
	return created.ID.Hex(), nil
}

// submitReturn files a stored quarter and returns the jurisdiction outcomes.
func submitReturn(ctx context.Context, client *http.Client, apiURL, returnID string) ([]models.IFTAResponse, error) {
	resp, err := postJSON(ctx, client, apiURL+"/ifta/returns/"+returnID+"/submit", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to submit return: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("return submission failed with status: %d", resp.StatusCode)
	}
	var out []models.IFTAResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// previousQuarter returns the last completed quarter before now.
func previousQuarter(now time.Time) (int, int) {
	q := (int(now.Month())-1)/3 + 1
	if q == 1 {
		return 4, now.Year() - 1
	}
	return q - 1, now.Year()
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	quarter, year := previousQuarter(time.Now())
	quarter = envInt("SIM_QUARTER", quarter)
	year = envInt("SIM_YEAR", year)
	fleetSize := envInt("FLEET_SIZE", 10)
	trips := envInt("SIM_TRIPS_PER_TRUCK", 24)
	seed := int64(envInt("SIM_SEED", int(time.Now().UnixNano()%math.MaxInt32)))

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"quarter":    quarter,
		"year":       year,
		"seed":       seed,
	}).Info("Starting IFTA quarter simulation")

	data := simulateQuarter(rand.New(rand.NewSource(seed)), fleetSize, quarter, year, trips)
	log.WithFields(log.Fields{
		"mileage_records": len(data.MileageRecords),
		"fuel_purchases":  len(data.FuelPurchases),
	}).Info("Quarter simulated")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	client := &http.Client{Timeout: 90 * time.Second}

	returnID, err := createReturn(ctx, client, apiURL, data)
	if err != nil {
		log.WithError(err).Fatal("Failed to store simulated quarter")
	}
	log.WithField("return_id", returnID).Info("Stored simulated quarter")

	if os.Getenv("SIM_SUBMIT") != "true" {
		return
	}
	responses, err := submitReturn(ctx, client, apiURL, returnID)
	if err != nil {
		log.WithError(err).Fatal("Failed to submit simulated quarter")
	}
	for _, r := range responses {
		log.WithFields(log.Fields{
			"jurisdiction":  r.Jurisdiction,
			"status":        r.ProcessingStatus,
			"submission_id": r.SubmissionID,
			"errors":        r.Errors,
		}).Info("Jurisdiction outcome")
	}
}
