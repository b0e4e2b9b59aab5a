package jurisdiction

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-ifta/internal/models"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validQuarter() *models.IFTAQuarterlyData {
	day := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	start, end := models.QuarterBounds(1, 2024)
	return &models.IFTAQuarterlyData{
		Carrier: models.Carrier{
			Name:              "Gulf Coast Freight LLC",
			EIN:               "12-3456789",
			IFTAAccountNumber: "FL-IFTA-778812",
			BaseJurisdiction:  "FL",
			CarrierID:         "GCF-001",
		},
		Period: models.ReportingPeriod{Quarter: 1, Year: 2024, StartDate: start, EndDate: end},
		Vehicles: []models.VehicleIFTAData{{
			VIN:              "1FUJGLDR5CLBP8834",
			UnitNumber:       "T-101",
			FuelType:         []string{"diesel"},
			RegisteredWeight: 80000,
			BaseJurisdiction: "FL",
			IFTADecalNumber:  "FL24-009911",
		}},
		FuelPurchases: []models.FuelPurchase{
			{Date: day, Jurisdiction: "FL", FuelType: "diesel", Gallons: 150.5, TotalAmount: 541.80},
			{Date: day, Jurisdiction: "GA", FuelType: "diesel", Gallons: 175, TotalAmount: 612.50},
		},
		MileageRecords: []models.MileageRecord{
			{Date: day, Jurisdiction: "FL", Miles: 200},
			{Date: day, Jurisdiction: "GA", Miles: 125},
			{Date: day, Jurisdiction: "fl", Miles: 85},
		},
	}
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestValidateData_MissingAccountAndVehicles(t *testing.T) {
	data := validQuarter()
	data.Carrier.IFTAAccountNumber = ""
	data.Vehicles = nil

	for _, a := range []Adapter{NewFlorida(Config{}), NewTexas(Config{})} {
		errs := a.ValidateData(data)
		assert.GreaterOrEqual(t, len(errs), 2, a.Jurisdiction())
		assert.Contains(t, errs, "IFTA account number is required")
		assert.Contains(t, errs, "at least one reportable vehicle is required")
	}
}

func TestValidateData_Valid(t *testing.T) {
	assert.Empty(t, NewFlorida(Config{}).ValidateData(validQuarter()))
	assert.Empty(t, NewTexas(Config{}).ValidateData(validQuarter()))
}

func TestValidateData_JurisdictionRules(t *testing.T) {
	data := validQuarter()
	data.Vehicles[0].IFTADecalNumber = ""
	data.Carrier.EIN = "12345"

	assert.Equal(t, []string{"vehicle 1: IFTA decal number is required"}, NewFlorida(Config{}).ValidateData(data))
	assert.Equal(t, []string{"carrier EIN must be nine digits"}, NewTexas(Config{}).ValidateData(data))
}

func TestValidateCommon_RecordProblems(t *testing.T) {
	data := validQuarter()
	data.Period.Quarter = 5
	data.MileageRecords = append(data.MileageRecords, models.MileageRecord{Jurisdiction: "", Miles: -4})
	data.FuelPurchases = append(data.FuelPurchases, models.FuelPurchase{Jurisdiction: "TX", Gallons: -1})

	errs := ValidateCommon(data)
	assert.Contains(t, errs, "quarter must be between 1 and 4, got 5")
	assert.Contains(t, errs, "mileage record 4: jurisdiction is required")
	assert.Contains(t, errs, "mileage record 4: miles must not be negative")
	assert.Contains(t, errs, "fuel purchase 3: gallons must not be negative")

	assert.Equal(t, []string{"quarterly data is required"}, ValidateCommon(nil))
}

func TestGeneratePayload_Florida(t *testing.T) {
	payload, err := NewFlorida(Config{}).GeneratePayload(validQuarter())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), xml.Header))

	var doc floridaReturn
	require.NoError(t, xml.Unmarshal(payload, &doc))
	assert.Equal(t, floridaNamespace, doc.XMLName.Space)
	assert.Equal(t, "FL-IFTA-778812", doc.Licensee.AccountNumber)
	assert.Equal(t, "2024-01-01", doc.Period.StartDate)
	assert.Equal(t, "2024-03-31", doc.Period.EndDate)
	require.Len(t, doc.Vehicles, 1)
	assert.Equal(t, "FL24-009911", doc.Vehicles[0].Decal)
	require.Len(t, doc.FuelPurchases, 2)
	assert.Equal(t, "150.500", doc.FuelPurchases[0].Gallons)
	assert.Equal(t, "541.80", doc.FuelPurchases[0].Amount)
	assert.Equal(t, []xmlDistance{{Jurisdiction: "FL", Miles: "285"}, {Jurisdiction: "GA", Miles: "125"}}, doc.Distance)
}

func TestGeneratePayload_Texas(t *testing.T) {
	payload, err := NewTexas(Config{}).GeneratePayload(validQuarter())
	require.NoError(t, err)

	var doc texasReturn
	require.NoError(t, xml.Unmarshal(payload, &doc))
	assert.Equal(t, "TX", doc.Jurisdiction)
	assert.Equal(t, "12-3456789", doc.Taxpayer.EIN)
	assert.Len(t, doc.Fleet, 1)
	assert.Len(t, doc.Receipts, 2)
	assert.Len(t, doc.Mileage, 2)
}

func TestSubmitReturn_Accepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "GCF-001", r.Header.Get("X-Carrier-ID"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<FloridaIFTAReturn")

		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<SubmissionResponse><SubmissionId>FL-2024Q1-0001</SubmissionId><ConfirmationNumber>C-99</ConfirmationNumber><Status>Accepted</Status></SubmissionResponse>`)
	}))
	defer server.Close()

	adapter := NewFlorida(Config{Endpoint: server.URL, APIKey: "secret", Logger: quietLogger()})
	resp := adapter.SubmitReturn(context.Background(), validQuarter())

	assert.True(t, resp.Success)
	assert.Equal(t, "FL-2024Q1-0001", resp.SubmissionID)
	assert.Equal(t, "C-99", resp.ConfirmationNumber)
	assert.Equal(t, models.StatusAccepted, resp.ProcessingStatus)
	assert.Equal(t, "FL", resp.Jurisdiction)
	assert.False(t, resp.SubmittedAt.IsZero())
}

func TestSubmitReturn_EmptyBodyFallsBackToIdempotencyKey(t *testing.T) {
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	resp := NewTexas(Config{Endpoint: server.URL, Logger: quietLogger()}).SubmitReturn(context.Background(), validQuarter())
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusSubmitted, resp.ProcessingStatus)
	assert.Equal(t, key, resp.SubmissionID)
}

func TestSubmitReturn_StoredReturnReusesIdempotencyKey(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := Config{Endpoint: server.URL, Logger: quietLogger()}
	data := validQuarter()
	data.ID = primitive.NewObjectID()

	first := NewFlorida(cfg).SubmitReturn(context.Background(), data)
	second := NewFlorida(cfg).SubmitReturn(context.Background(), data)
	NewTexas(cfg).SubmitReturn(context.Background(), data)

	require.Len(t, keys, 3)
	assert.Equal(t, keys[0], keys[1])
	assert.NotEqual(t, keys[0], keys[2])
	assert.Equal(t, first.SubmissionID, second.SubmissionID)
}

func TestSubmitReturn_UnsavedReturnGetsFreshKeys(t *testing.T) {
	data := validQuarter()
	assert.NotEqual(t, idempotencyKey(data, "FL"), idempotencyKey(data, "FL"))

	data.ID = primitive.NewObjectID()
	assert.Equal(t, idempotencyKey(data, "FL"), idempotencyKey(data, "FL"))
	assert.NotEqual(t, idempotencyKey(data, "FL"), idempotencyKey(data, "TX"))
}

func TestSubmitReturn_JurisdictionRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<SubmissionResponse><SubmissionId>TX-1</SubmissionId><Status>rejected</Status><Errors><Error>unknown account</Error></Errors></SubmissionResponse>`)
	}))
	defer server.Close()

	resp := NewTexas(Config{Endpoint: server.URL, Logger: quietLogger()}).SubmitReturn(context.Background(), validQuarter())
	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
	assert.Equal(t, []string{"unknown account"}, resp.Errors)
}

func TestSubmitReturn_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `<SubmissionResponse><SubmissionId>FL-7</SubmissionId><Status>pending</Status></SubmissionResponse>`)
	}))
	defer server.Close()

	logger, hook := test.NewNullLogger()
	adapter := NewFlorida(Config{Endpoint: server.URL, MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: logger})
	resp := adapter.SubmitReturn(context.Background(), validQuarter())

	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusPending, resp.ProcessingStatus)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Len(t, hook.AllEntries(), 3) // two backoff warnings plus the success line
}

func TestSubmitReturn_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad document", http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := NewFlorida(Config{Endpoint: server.URL, MaxAttempts: 5, BaseDelay: time.Millisecond, Logger: quietLogger()})
	resp := adapter.SubmitReturn(context.Background(), validQuarter())

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "status 400")
	assert.Contains(t, resp.Errors[0], "bad document")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSubmitReturn_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	adapter := NewTexas(Config{Endpoint: endpoint, MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: quietLogger()})
	resp := adapter.SubmitReturn(context.Background(), validQuarter())

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "request to TX failed")
	assert.NotEmpty(t, resp.SubmissionID)
}

func TestSubmitReturn_PerAttemptTimeout(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewFlorida(Config{
		Endpoint:    server.URL,
		Timeout:     20 * time.Millisecond,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Logger:      quietLogger(),
	})
	resp := adapter.SubmitReturn(context.Background(), validQuarter())

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSubmitReturn_BackoffUsesClock(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	clock := clockz.NewFakeClock()
	adapter := NewFlorida(Config{
		Endpoint:    server.URL,
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		Clock:       clock,
		Logger:      quietLogger(),
	})

	done := make(chan models.IFTAResponse, 1)
	go func() {
		done <- adapter.SubmitReturn(context.Background(), validQuarter())
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case resp := <-done:
			assert.False(t, resp.Success)
			assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
			return
		case <-deadline:
			t.Fatal("submission did not finish while advancing the fake clock")
		default:
			clock.Advance(2 * time.Hour)
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestSubmitReturn_NoEndpoint(t *testing.T) {
	resp := NewFlorida(Config{Logger: quietLogger()}).SubmitReturn(context.Background(), validQuarter())
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], ErrNoEndpoint.Error())
}

func TestSubmitReturn_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := NewFlorida(Config{Endpoint: server.URL, MaxAttempts: 5, Logger: quietLogger()}).SubmitReturn(ctx, validQuarter())
	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
}

func TestCheckStatus_Florida(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/returns/FL-7/status", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		io.WriteString(w, `<SubmissionResponse><SubmissionId>FL-7</SubmissionId><ConfirmationNumber>C-1</ConfirmationNumber><Status>accepted</Status></SubmissionResponse>`)
	}))
	defer server.Close()

	adapter := NewFlorida(Config{Endpoint: server.URL + "/returns", APIKey: "secret", Logger: quietLogger()})
	resp, err := adapter.CheckStatus(context.Background(), "FL-7")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusAccepted, resp.ProcessingStatus)
	assert.Equal(t, "C-1", resp.ConfirmationNumber)
}

func TestCheckStatus_TexasNotImplemented(t *testing.T) {
	resp, err := NewTexas(Config{Endpoint: "http://example.invalid"}).CheckStatus(context.Background(), "TX-1")
	assert.True(t, errors.Is(err, ErrStatusCheckNotImplemented))
	assert.False(t, resp.Success)
	assert.Equal(t, "TX-1", resp.SubmissionID)
	assert.Equal(t, models.StatusRejected, resp.ProcessingStatus)
	require.Len(t, resp.Errors, 1)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(NewFlorida(Config{}), NewTexas(Config{}))
	assert.Equal(t, []string{"FL", "TX"}, registry.Jurisdictions())

	a, ok := registry.Lookup("tx")
	require.True(t, ok)
	assert.Equal(t, "TX", a.Jurisdiction())

	_, ok = registry.Lookup("GA")
	assert.False(t, ok)
}
