package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcessingStatus is the lifecycle state of a jurisdiction submission.
type ProcessingStatus string

const (
	StatusUnsubmitted ProcessingStatus = ""
	StatusSubmitted   ProcessingStatus = "submitted"
	StatusAccepted    ProcessingStatus = "accepted"
	StatusRejected    ProcessingStatus = "rejected"
	StatusPending     ProcessingStatus = "pending"
)

// IsTerminal reports whether no further transition is possible.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransitionTo reports whether moving from s to next is legal.
// Re-reporting the current state of a non-terminal submission is allowed.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusUnsubmitted:
		return next == StatusSubmitted || next == StatusRejected ||
			next == StatusAccepted || next == StatusPending
	case StatusSubmitted:
		return next == StatusAccepted || next == StatusRejected || next == StatusPending || next == StatusSubmitted
	case StatusPending:
		return next == StatusAccepted || next == StatusRejected || next == StatusPending
	default:
		return false
	}
}

// JurisdictionSummary is derived from an IFTAQuarterlyData and never stored on its own.
type JurisdictionSummary struct {
	Jurisdiction   string          `bson:"jurisdiction" json:"jurisdiction"`
	TotalMiles     decimal.Decimal `bson:"total_miles" json:"total_miles"`
	TaxableMiles   decimal.Decimal `bson:"taxable_miles" json:"taxable_miles"`
	FuelPurchased  decimal.Decimal `bson:"fuel_purchased" json:"fuel_purchased"` // in gallons
	FuelRate       decimal.Decimal `bson:"fuel_rate" json:"fuel_rate"`           // in USD per gallon
	NetGallons     decimal.Decimal `bson:"net_gallons" json:"net_gallons"`
	TaxOwed        decimal.Decimal `bson:"tax_owed" json:"tax_owed"`
	RefundDue      decimal.Decimal `bson:"refund_due" json:"refund_due"`
	NetAmount      decimal.Decimal `bson:"net_amount" json:"net_amount"`
	RateConfigured bool            `bson:"rate_configured" json:"rate_configured"`
}

// IFTAResponse is the outcome of one jurisdiction submission attempt.
type IFTAResponse struct {
	SubmissionID          string                `bson:"_id" json:"submission_id"`
	ReturnID              string                `bson:"return_id" json:"return_id"`
	Success               bool                  `bson:"success" json:"success"`
	ConfirmationNumber    string                `bson:"confirmation_number" json:"confirmation_number"`
	Jurisdiction          string                `bson:"jurisdiction" json:"jurisdiction"`
	ProcessingStatus      ProcessingStatus      `bson:"processing_status" json:"processing_status"`
	Errors                []string              `bson:"errors,omitempty" json:"errors,omitempty"`
	JurisdictionSummaries []JurisdictionSummary `bson:"jurisdiction_summaries" json:"jurisdiction_summaries"`
	TotalNetAmount        decimal.Decimal       `bson:"total_net_amount" json:"total_net_amount"`
	DueDate               time.Time             `bson:"due_date" json:"due_date"`
	SubmittedAt           time.Time             `bson:"submitted_at" json:"submitted_at"`
	UpdatedAt             time.Time             `bson:"updated_at" json:"updated_at"`
}

// Rejected builds a failed response for a jurisdiction.
func Rejected(jurisdiction string, errs ...string) IFTAResponse {
	return IFTAResponse{
		Success:          false,
		Jurisdiction:     jurisdiction,
		ProcessingStatus: StatusRejected,
		Errors:           errs,
	}
}
