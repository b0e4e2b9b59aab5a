// Package events publishes IFTA submission status changes over MQTT.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-ifta/internal/models"
)

const (
	TopicPrefix    = "fleet/ifta/submissions"
	defaultTimeout = 5 * time.Second
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// SubmissionEvent is the message body published for every submission update.
type SubmissionEvent struct {
	SubmissionID       string                  `json:"submission_id"`
	ReturnID           string                  `json:"return_id,omitempty"`
	Jurisdiction       string                  `json:"jurisdiction"`
	Status             models.ProcessingStatus `json:"status"`
	Success            bool                    `json:"success"`
	ConfirmationNumber string                  `json:"confirmation_number,omitempty"`
	Errors             []string                `json:"errors,omitempty"`
	TotalNetAmount     decimal.Decimal         `json:"total_net_amount"`
	DueDate            time.Time               `json:"due_date"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// NewSubmissionEvent projects a response onto its event form.
func NewSubmissionEvent(resp models.IFTAResponse) SubmissionEvent {
	return SubmissionEvent{
		SubmissionID:       resp.SubmissionID,
		ReturnID:           resp.ReturnID,
		Jurisdiction:       resp.Jurisdiction,
		Status:             resp.ProcessingStatus,
		Success:            resp.Success,
		ConfirmationNumber: resp.ConfirmationNumber,
		Errors:             resp.Errors,
		TotalNetAmount:     resp.TotalNetAmount,
		DueDate:            resp.DueDate,
		UpdatedAt:          resp.UpdatedAt,
	}
}

// Topic returns the topic a jurisdiction's submissions are published on.
func Topic(jurisdiction string) string {
	code := models.NormalizeJurisdiction(jurisdiction)
	if code == "" {
		code = "UNKNOWN"
	}
	return TopicPrefix + "/" + code
}

// Publisher sends submission events to an MQTT broker.
type Publisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	log     log.FieldLogger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithQoS sets the MQTT quality of service level (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(p *Publisher) { p.qos = qos }
}

// WithTimeout bounds how long a single publish may wait for the broker.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(p *Publisher) { p.log = l }
}

// NewPublisher wraps an already connected client.
func NewPublisher(client mqtt.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		qos:     1,
		timeout: defaultTimeout,
		log:     log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	return p
}

// Connect dials broker and returns a publisher on the new connection.
func Connect(broker, clientID string, opts ...Option) (*Publisher, error) {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(clientOpts)

	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return NewPublisher(client, opts...), nil
}

// PublishSubmission publishes resp on its jurisdiction topic.
func (p *Publisher) PublishSubmission(ctx context.Context, resp models.IFTAResponse) error {
	payload, err := json.Marshal(NewSubmissionEvent(resp))
	if err != nil {
		return fmt.Errorf("failed to marshal submission event: %w", err)
	}

	topic := Topic(resp.Jurisdiction)
	token := p.client.Publish(topic, p.qos, false, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}

	p.log.WithFields(log.Fields{
		"topic":         topic,
		"submission_id": resp.SubmissionID,
		"status":        resp.ProcessingStatus,
	}).Debug("Published submission event")
	return nil
}

// Close disconnects from the broker, letting in-flight work finish.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
