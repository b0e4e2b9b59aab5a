package jurisdiction

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/models"
	"github.com/zoobzio/clockz"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond

	maxResponseBytes = 1 << 20
)

var (
	errMalformedResponse = errors.New("malformed jurisdiction response")
	errInvalidRequest    = errors.New("invalid jurisdiction request")
)

// Config holds the static settings of one jurisdiction endpoint.
type Config struct {
	Endpoint    string
	APIKey      string
	CarrierID   string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	BaseDelay   time.Duration // doubled after each failed attempt
	HTTPClient  *http.Client
	Clock       clockz.Clock
	Logger      log.FieldLogger
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Logger == nil {
		c.Logger = log.StandardLogger()
	}
	return c
}

// StatusError is a non-2xx reply from a jurisdiction endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jurisdiction endpoint returned status %d", e.Code)
	}
	return fmt.Sprintf("jurisdiction endpoint returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// submissionResult is the XML body jurisdictions reply with.
type submissionResult struct {
	SubmissionID       string   `xml:"SubmissionId"`
	ConfirmationNumber string   `xml:"ConfirmationNumber"`
	Status             string   `xml:"Status"`
	Errors             []string `xml:"Errors>Error"`
}

func (r *submissionResult) processingStatus() models.ProcessingStatus {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "accepted", "approved", "filed":
		return models.StatusAccepted
	case "rejected", "denied", "failed":
		return models.StatusRejected
	case "pending", "processing", "in_review":
		return models.StatusPending
	default:
		return models.StatusSubmitted
	}
}

// submitter sends documents to one endpoint with a per-attempt timeout and
// exponential backoff between attempts.
type submitter struct {
	jurisdiction string
	cfg          Config
}

func newSubmitter(jurisdiction string, cfg Config) *submitter {
	return &submitter{jurisdiction: jurisdiction, cfg: cfg.withDefaults()}
}

func (s *submitter) submit(ctx context.Context, payload []byte, carrierID, idempotencyKey string) (*submissionResult, error) {
	return s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/xml")
		req.Header.Set("Idempotency-Key", idempotencyKey)
		s.setAuth(req, carrierID)
		return req, nil
	})
}

func (s *submitter) status(ctx context.Context, submissionID string) (*submissionResult, error) {
	target, err := url.JoinPath(s.cfg.Endpoint, url.PathEscape(submissionID), "status")
	if err != nil {
		return nil, fmt.Errorf("invalid status url: %w", err)
	}
	return s.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		s.setAuth(req, "")
		return req, nil
	})
}

func (s *submitter) setAuth(req *http.Request, carrierID string) {
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Api-Key", s.cfg.APIKey)
	if s.cfg.CarrierID != "" {
		carrierID = s.cfg.CarrierID
	}
	if carrierID != "" {
		req.Header.Set("X-Carrier-ID", carrierID)
	}
}

func (s *submitter) do(ctx context.Context, build func(context.Context) (*http.Request, error)) (*submissionResult, error) {
	if s.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, s.jurisdiction)
	}

	delay := s.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		result, err := s.attempt(ctx, build)
		if err == nil {
			return result, nil
		}
		if attempt >= s.cfg.MaxAttempts || !s.retryable(ctx, err) {
			return nil, err
		}

		s.cfg.Logger.WithFields(log.Fields{
			"jurisdiction": s.jurisdiction,
			"attempt":      attempt,
			"max_attempts": s.cfg.MaxAttempts,
			"delay":        delay,
		}).WithError(err).Warn("Jurisdiction request failed, backing off")

		select {
		case <-s.cfg.Clock.After(delay):
			delay *= 2
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
		}
	}
}

func (s *submitter) attempt(ctx context.Context, build func(context.Context) (*http.Request, error)) (*submissionResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", s.jurisdiction, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", s.jurisdiction, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result submissionResult
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	return &result, nil
}

func (s *submitter) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, errMalformedResponse) || errors.Is(err, errInvalidRequest) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
