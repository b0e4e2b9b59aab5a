// Package handlers exposes the IFTA filing API over net/http.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/db"
	"github.com/ukydev/fleet-ifta/internal/filing"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/jurisdiction"
	"github.com/ukydev/fleet-ifta/internal/models"
	"github.com/ukydev/fleet-ifta/internal/report"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	maxBodyBytes     = 10 << 20
	maxListedReturns = 100
)

// Filer is the part of the filing service the API needs.
type Filer interface {
	Summaries(data *models.IFTAQuarterlyData) []models.JurisdictionSummary
	SubmitIFTAReturn(ctx context.Context, data *models.IFTAQuarterlyData) []models.IFTAResponse
	RefreshStatus(ctx context.Context, previous models.IFTAResponse) (models.IFTAResponse, error)
}

// SummaryResponse is the body of the summaries endpoint.
type SummaryResponse struct {
	ReturnID       string                       `json:"return_id"`
	Summaries      []models.JurisdictionSummary `json:"summaries"`
	TotalNetAmount decimal.Decimal              `json:"total_net_amount"`
	DueDate        time.Time                    `json:"due_date"`
}

// ErrorResponse carries validation problems back to the client.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// IFTAHandler handles quarterly return requests.
type IFTAHandler struct {
	filer       Filer
	returns     db.ReturnCollection
	submissions db.SubmissionCollection
	clock       clockz.Clock
	log         log.FieldLogger
}

// NewIFTAHandler creates a new IFTA handler.
func NewIFTAHandler(filer Filer, returns db.ReturnCollection, submissions db.SubmissionCollection, logger log.FieldLogger) *IFTAHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &IFTAHandler{
		filer:       filer,
		returns:     returns,
		submissions: submissions,
		clock:       clockz.RealClock,
		log:         logger,
	}
}

// Register mounts the IFTA routes on mux.
func (h *IFTAHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ifta/returns", h.CreateReturn)
	mux.HandleFunc("GET /api/ifta/returns", h.ListReturns)
	mux.HandleFunc("GET /api/ifta/returns/{id}", h.GetReturn)
	mux.HandleFunc("GET /api/ifta/returns/{id}/summaries", h.GetSummaries)
	mux.HandleFunc("POST /api/ifta/returns/{id}/submit", h.SubmitReturn)
	mux.HandleFunc("GET /api/ifta/returns/{id}/submissions", h.ListSubmissions)
	mux.HandleFunc("GET /api/ifta/returns/{id}/report", h.GetReport)
	mux.HandleFunc("POST /api/ifta/submissions/{id}/refresh", h.RefreshSubmission)
}

// CreateReturn stores a quarter of fuel and mileage data.
func (h *IFTAHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var data models.IFTAQuarterlyData
	if err := json.Unmarshal(body, &data); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	data.ID = primitive.NilObjectID

	if errs := jurisdiction.ValidateCommon(&data); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid quarterly data", Errors: errs})
		return
	}
	if data.Period.StartDate.IsZero() || data.Period.EndDate.IsZero() {
		data.Period.StartDate, data.Period.EndDate = models.QuarterBounds(data.Period.Quarter, data.Period.Year)
	}

	id, err := h.returns.InsertReturn(r.Context(), &data)
	if err != nil {
		h.log.WithError(err).Error("Failed to store quarterly data")
		http.Error(w, "Failed to store quarterly data", http.StatusInternalServerError)
		return
	}
	data.ID = id

	h.log.WithFields(log.Fields{
		"return_id": id.Hex(),
		"carrier":   data.Carrier.IFTAAccountNumber,
		"quarter":   data.Period.Quarter,
		"year":      data.Period.Year,
	}).Info("Stored quarterly data")
	writeJSON(w, http.StatusCreated, data)
}

// ListReturns lists stored quarters, newest first. The optional account,
// quarter and year query parameters narrow the list.
func (h *IFTAHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	filter, err := returnFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(maxListedReturns)
	cursor, err := h.returns.FindReturns(r.Context(), filter, opts)
	if err != nil {
		h.log.WithError(err).Error("Failed to query quarterly data")
		http.Error(w, "Failed to list returns", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(r.Context())

	returns := make([]models.IFTAQuarterlyData, 0)
	if err := cursor.All(r.Context(), &returns); err != nil {
		h.log.WithError(err).Error("Failed to decode quarterly data")
		http.Error(w, "Failed to list returns", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, returns)
}

func returnFilter(q url.Values) (bson.M, error) {
	filter := bson.M{}
	if account := strings.TrimSpace(q.Get("account")); account != "" {
		filter["carrier.ifta_account_number"] = account
	}
	if v := q.Get("quarter"); v != "" {
		quarter, err := strconv.Atoi(v)
		if err != nil || quarter < 1 || quarter > 4 {
			return nil, fmt.Errorf("invalid quarter %q", v)
		}
		filter["period.quarter"] = quarter
	}
	if v := q.Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 1 {
			return nil, fmt.Errorf("invalid year %q", v)
		}
		filter["period.year"] = year
	}
	return filter, nil
}

// GetReturn returns a stored quarter.
func (h *IFTAHandler) GetReturn(w http.ResponseWriter, r *http.Request) {
	data, ok := h.loadReturn(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetSummaries computes the jurisdiction summaries of a stored quarter.
func (h *IFTAHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	data, ok := h.loadReturn(w, r)
	if !ok {
		return
	}
	summaries := h.filer.Summaries(data)
	writeJSON(w, http.StatusOK, SummaryResponse{
		ReturnID:       data.ID.Hex(),
		Summaries:      summaries,
		TotalNetAmount: fueltax.TotalNetAmount(summaries),
		DueDate:        models.DueDate(data.Period.Quarter, data.Period.Year),
	})
}

// SubmitReturn files a stored quarter with every jurisdiction it covers.
// Per-jurisdiction failures are part of the 200 response body. Jurisdictions
// already filed for the quarter come back with their recorded submission.
func (h *IFTAHandler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	data, ok := h.loadReturn(w, r)
	if !ok {
		return
	}
	responses := h.filer.SubmitIFTAReturn(r.Context(), data)
	writeJSON(w, http.StatusOK, responses)
}

// ListSubmissions returns the recorded submissions of a quarter.
func (h *IFTAHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !primitive.IsValidObjectID(id) {
		http.Error(w, "Invalid return ID", http.StatusBadRequest)
		return
	}
	subs, err := h.submissions.FindSubmissionsByReturn(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("return_id", id).Error("Failed to list submissions")
		http.Error(w, "Failed to list submissions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetReport renders the quarter as a PDF.
func (h *IFTAHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	data, ok := h.loadReturn(w, r)
	if !ok {
		return
	}
	subs, err := h.submissions.FindSubmissionsByReturn(r.Context(), data.ID.Hex())
	if err != nil {
		// The report is still useful without the submission section.
		h.log.WithError(err).WithField("return_id", data.ID.Hex()).Warn("Failed to load submissions for report")
		subs = nil
	}

	pdf, err := report.RenderQuarterlyReport(data, h.filer.Summaries(data), subs, h.clock.Now())
	if err != nil {
		h.log.WithError(err).Error("Failed to render report")
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("ifta-Q%d-%d.pdf", data.Period.Quarter, data.Period.Year)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// RefreshSubmission polls the jurisdiction for a submission's current status.
func (h *IFTAHandler) RefreshSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	previous, err := h.submissions.FindSubmissionByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Submission not found", http.StatusNotFound)
			return
		}
		h.log.WithError(err).WithField("submission_id", id).Error("Failed to load submission")
		http.Error(w, "Failed to load submission", http.StatusInternalServerError)
		return
	}

	updated, err := h.filer.RefreshStatus(r.Context(), *previous)
	if err != nil {
		writeJSON(w, refreshErrorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func refreshErrorStatus(err error) int {
	switch {
	case errors.Is(err, filing.ErrTerminalStatus), errors.Is(err, filing.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, filing.ErrNoAdapter):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jurisdiction.ErrStatusCheckNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func (h *IFTAHandler) loadReturn(w http.ResponseWriter, r *http.Request) (*models.IFTAQuarterlyData, bool) {
	id := r.PathValue("id")
	if !primitive.IsValidObjectID(id) {
		http.Error(w, "Invalid return ID", http.StatusBadRequest)
		return nil, false
	}
	data, err := h.returns.FindReturnByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Return not found", http.StatusNotFound)
			return nil, false
		}
		h.log.WithError(err).WithField("return_id", id).Error("Failed to load quarterly data")
		http.Error(w, "Failed to load quarterly data", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
