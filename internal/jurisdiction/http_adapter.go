package jurisdiction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/models"
)

// idempotencyNamespace scopes the keys derived for stored returns.
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:fleet-ifta:submission"))

// idempotencyKey is stable per stored return and jurisdiction, so a repeated
// filing of the same return reaches the jurisdiction under the same key.
// Data that was never stored gets a fresh key.
func idempotencyKey(data *models.IFTAQuarterlyData, code string) string {
	if data.ID.IsZero() {
		return uuid.NewString()
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(data.ID.Hex()+"/"+code)).String()
}

// httpAdapter is the shared implementation behind the concrete jurisdictions.
// Each jurisdiction supplies its own document and extra validation rules.
type httpAdapter struct {
	code            string
	sub             *submitter
	render          func(*models.IFTAQuarterlyData) any
	validate        func(*models.IFTAQuarterlyData) []string
	statusSupported bool
}

func (a *httpAdapter) Jurisdiction() string {
	return a.code
}

func (a *httpAdapter) ValidateData(data *models.IFTAQuarterlyData) []string {
	errs := ValidateCommon(data)
	if data != nil && a.validate != nil {
		errs = append(errs, a.validate(data)...)
	}
	return errs
}

func (a *httpAdapter) GeneratePayload(data *models.IFTAQuarterlyData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("%s: quarterly data is required", a.code)
	}
	return marshalDocument(a.render(data))
}

func (a *httpAdapter) SubmitReturn(ctx context.Context, data *models.IFTAQuarterlyData) models.IFTAResponse {
	payload, err := a.GeneratePayload(data)
	if err != nil {
		resp := models.Rejected(a.code, err.Error())
		resp.SubmissionID = uuid.NewString()
		return resp
	}

	key := idempotencyKey(data, a.code)
	logger := a.sub.cfg.Logger.WithFields(log.Fields{
		"jurisdiction":    a.code,
		"idempotency_key": key,
	})

	result, err := a.sub.submit(ctx, payload, data.Carrier.CarrierID, key)
	now := a.sub.cfg.Clock.Now()
	if err != nil {
		logger.WithError(err).Error("Return submission failed")
		resp := models.Rejected(a.code, err.Error())
		resp.SubmissionID = key
		resp.SubmittedAt = now
		resp.UpdatedAt = now
		return resp
	}

	resp := a.toResponse(result, key)
	resp.SubmittedAt = now
	logger.WithFields(log.Fields{
		"submission_id": resp.SubmissionID,
		"status":        resp.ProcessingStatus,
	}).Info("Return submitted")
	return resp
}

func (a *httpAdapter) CheckStatus(ctx context.Context, submissionID string) (models.IFTAResponse, error) {
	if !a.statusSupported {
		err := fmt.Errorf("%w: %s", ErrStatusCheckNotImplemented, a.code)
		resp := models.Rejected(a.code, err.Error())
		resp.SubmissionID = submissionID
		return resp, err
	}

	result, err := a.sub.status(ctx, submissionID)
	if err != nil {
		resp := models.Rejected(a.code, err.Error())
		resp.SubmissionID = submissionID
		return resp, err
	}
	return a.toResponse(result, submissionID), nil
}

func (a *httpAdapter) toResponse(result *submissionResult, fallbackID string) models.IFTAResponse {
	status := result.processingStatus()
	id := result.SubmissionID
	if id == "" {
		id = fallbackID
	}
	return models.IFTAResponse{
		Success:            status != models.StatusRejected,
		SubmissionID:       id,
		ConfirmationNumber: result.ConfirmationNumber,
		Jurisdiction:       a.code,
		ProcessingStatus:   status,
		Errors:             result.Errors,
		UpdatedAt:          a.sub.cfg.Clock.Now(),
	}
}
