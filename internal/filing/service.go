// Package filing orchestrates quarterly IFTA returns across jurisdictions.
package filing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/jurisdiction"
	"github.com/ukydev/fleet-ifta/internal/models"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoAdapter          = errors.New("no adapter available for jurisdiction")
	ErrRateNotConfigured  = errors.New("no tax rate configured for jurisdiction")
	ErrTerminalStatus     = errors.New("submission is already in a terminal state")
	ErrIllegalTransition  = errors.New("illegal submission status transition")
	ErrHistoryUnavailable = errors.New("failed to load prior submissions")
)

// hookTimeout bounds the recorder and publisher calls made after a filing.
const hookTimeout = 10 * time.Second

// SubmissionRecorder persists submission results.
type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, resp models.IFTAResponse) error
}

// SubmissionHistory lists the submissions recorded for a return, newest first.
type SubmissionHistory interface {
	FindSubmissionsByReturn(ctx context.Context, returnID string) ([]models.IFTAResponse, error)
}

// EventPublisher announces submission results to other subsystems.
type EventPublisher interface {
	PublishSubmission(ctx context.Context, resp models.IFTAResponse) error
}

// Service is the single entry point for filing a quarter.
type Service struct {
	calc        *fueltax.Calculator
	registry    *jurisdiction.Registry
	recorder    SubmissionRecorder
	history     SubmissionHistory
	publisher   EventPublisher
	log         log.FieldLogger
	clock       clockz.Clock
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder persists every response produced by the service.
func WithRecorder(r SubmissionRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithHistory makes the service skip jurisdictions that already hold a
// submitted, pending or accepted filing for the return.
func WithHistory(h SubmissionHistory) Option {
	return func(s *Service) { s.history = h }
}

// WithPublisher publishes every response produced by the service.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock sets the clock used for timestamps.
func WithClock(c clockz.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithConcurrency sets how many jurisdictions are filed at once. Values
// below one mean sequential filing.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// NewService creates a filing service.
func NewService(calc *fueltax.Calculator, registry *jurisdiction.Registry, opts ...Option) *Service {
	s := &Service{
		calc:        calc,
		registry:    registry,
		log:         log.StandardLogger(),
		clock:       clockz.RealClock,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Summaries computes the jurisdiction summaries of a quarter.
func (s *Service) Summaries(data *models.IFTAQuarterlyData) []models.JurisdictionSummary {
	return s.calc.GenerateJurisdictionSummaries(data)
}

// SubmitIFTAReturn files data with every jurisdiction that has mileage
// records. One response is returned per jurisdiction, in jurisdiction order.
// A failure in one jurisdiction never prevents the others from being filed
// and nothing is returned as an error: callers inspect each response.
// Jurisdictions already filed for this return keep their recorded response
// and are not filed again.
func (s *Service) SubmitIFTAReturn(ctx context.Context, data *models.IFTAQuarterlyData) []models.IFTAResponse {
	if data == nil {
		return nil
	}
	codes := fueltax.MileageJurisdictions(data.MileageRecords)
	summaries := s.calc.GenerateJurisdictionSummaries(data)
	total := fueltax.TotalNetAmount(summaries)

	logger := s.log.WithFields(log.Fields{
		"return_id":     returnID(data),
		"quarter":       data.Period.Quarter,
		"year":          data.Period.Year,
		"jurisdictions": codes,
	})
	logger.Info("Filing quarterly IFTA return")

	filed, historyErr := s.priorFilings(ctx, data)
	if historyErr != nil {
		logger.WithError(historyErr).Error("Refusing to file without submission history")
	}

	responses := make([]models.IFTAResponse, len(codes))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, code := range codes {
		if prev, ok := filed[code]; ok {
			logger.WithFields(log.Fields{
				"jurisdiction":  code,
				"submission_id": prev.SubmissionID,
				"status":        prev.ProcessingStatus,
			}).Info("Jurisdiction already filed")
			responses[i] = prev
			continue
		}
		g.Go(func() error {
			s.fileOne(ctx, &responses[i], code, data, summaries, total, historyErr)
			return nil
		})
	}
	_ = g.Wait()

	accepted := 0
	for _, r := range responses {
		if r.Success {
			accepted++
		}
	}
	logger.WithFields(log.Fields{
		"succeeded": accepted,
		"failed":    len(responses) - accepted,
	}).Info("Quarterly IFTA return filed")
	return responses
}

// priorFilings maps each jurisdiction to its newest non-rejected submission
// for the return.
func (s *Service) priorFilings(ctx context.Context, data *models.IFTAQuarterlyData) (map[string]models.IFTAResponse, error) {
	id := returnID(data)
	if s.history == nil || id == "" {
		return nil, nil
	}
	prior, err := s.history.FindSubmissionsByReturn(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	filed := make(map[string]models.IFTAResponse)
	for _, p := range prior {
		switch p.ProcessingStatus {
		case models.StatusSubmitted, models.StatusPending, models.StatusAccepted:
		default:
			continue
		}
		code := models.NormalizeJurisdiction(p.Jurisdiction)
		if _, seen := filed[code]; !seen {
			filed[code] = p
		}
	}
	return filed, nil
}

// fileOne files one jurisdiction into slot and runs the hooks. A panic is
// contained here: before slot is set it becomes a rejection, after that the
// stored response stands.
func (s *Service) fileOne(ctx context.Context, slot *models.IFTAResponse, code string, data *models.IFTAQuarterlyData, summaries []models.JurisdictionSummary, total decimal.Decimal, historyErr error) {
	stored := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.log.WithFields(log.Fields{"jurisdiction": code, "panic": r}).Error("Jurisdiction filing panicked")
		if !stored {
			*slot = s.finalize(models.Rejected(code, fmt.Sprintf("internal error while filing %s: %v", code, r)), data, summaries, total)
		}
	}()

	resp := s.finalize(s.fileJurisdiction(ctx, code, data, historyErr), data, summaries, total)
	*slot = resp
	stored = true
	s.afterSubmission(ctx, resp)
}

func (s *Service) fileJurisdiction(ctx context.Context, code string, data *models.IFTAQuarterlyData, historyErr error) models.IFTAResponse {
	if historyErr != nil {
		return models.Rejected(code, historyErr.Error())
	}
	adapter, ok := s.registry.Lookup(code)
	if !ok {
		return models.Rejected(code, fmt.Sprintf("%s: %s", ErrNoAdapter, code))
	}
	if !s.calc.HasRate(code) {
		return models.Rejected(code, fmt.Sprintf("%s: %s", ErrRateNotConfigured, code))
	}
	if errs := adapter.ValidateData(data); len(errs) > 0 {
		return models.Rejected(code, errs...)
	}
	return adapter.SubmitReturn(ctx, data)
}

func (s *Service) finalize(resp models.IFTAResponse, data *models.IFTAQuarterlyData, summaries []models.JurisdictionSummary, total decimal.Decimal) models.IFTAResponse {
	now := s.clock.Now()
	if resp.SubmissionID == "" {
		resp.SubmissionID = uuid.NewString()
	}
	if resp.SubmittedAt.IsZero() {
		resp.SubmittedAt = now
	}
	resp.UpdatedAt = now
	resp.ReturnID = returnID(data)
	resp.JurisdictionSummaries = append([]models.JurisdictionSummary(nil), summaries...)
	resp.TotalNetAmount = total
	resp.DueDate = models.DueDate(data.Period.Quarter, data.Period.Year)
	return resp
}

func (s *Service) afterSubmission(ctx context.Context, resp models.IFTAResponse) {
	logger := s.log.WithFields(log.Fields{
		"jurisdiction":  resp.Jurisdiction,
		"submission_id": resp.SubmissionID,
		"status":        resp.ProcessingStatus,
	})
	if summary, ok := fueltax.SummaryFor(resp.JurisdictionSummaries, resp.Jurisdiction); ok {
		logger = logger.WithField("net_amount", summary.NetAmount.StringFixed(2))
	}
	if !resp.Success {
		logger.WithField("errors", resp.Errors).Warn("Jurisdiction filing rejected")
	}

	// Records must survive a caller that cancels after the filing.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	if s.recorder != nil {
		if err := s.recorder.RecordSubmission(ctx, resp); err != nil {
			logger.WithError(err).Error("Failed to record submission")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSubmission(ctx, resp); err != nil {
			logger.WithError(err).Error("Failed to publish submission")
		}
	}
}

// RefreshStatus polls the jurisdiction for the current state of a prior
// submission. Only legal status transitions are applied; a failed poll
// leaves the submission unchanged and returns the adapter's error.
func (s *Service) RefreshStatus(ctx context.Context, previous models.IFTAResponse) (models.IFTAResponse, error) {
	if previous.ProcessingStatus.IsTerminal() {
		return previous, fmt.Errorf("%w: %s", ErrTerminalStatus, previous.ProcessingStatus)
	}
	adapter, ok := s.registry.Lookup(previous.Jurisdiction)
	if !ok {
		return previous, fmt.Errorf("%w: %s", ErrNoAdapter, previous.Jurisdiction)
	}

	polled, err := adapter.CheckStatus(ctx, previous.SubmissionID)
	if err != nil {
		return previous, err
	}
	if !previous.ProcessingStatus.CanTransitionTo(polled.ProcessingStatus) {
		return previous, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, previous.ProcessingStatus, polled.ProcessingStatus)
	}

	updated := previous
	updated.ProcessingStatus = polled.ProcessingStatus
	updated.Success = polled.Success
	updated.Errors = polled.Errors
	if polled.ConfirmationNumber != "" {
		updated.ConfirmationNumber = polled.ConfirmationNumber
	}
	updated.UpdatedAt = s.clock.Now()

	s.log.WithFields(log.Fields{
		"jurisdiction":  updated.Jurisdiction,
		"submission_id": updated.SubmissionID,
		"from":          previous.ProcessingStatus,
		"to":            updated.ProcessingStatus,
	}).Info("Submission status refreshed")
	s.afterSubmission(ctx, updated)
	return updated, nil
}

func returnID(data *models.IFTAQuarterlyData) string {
	if data.ID.IsZero() {
		return ""
	}
	return data.ID.Hex()
}
