package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Заявки на оплату

type Status string

const (
	StatusPending  Status = "Pending"
	StatusPaid     Status = "Paid"
	StatusRejected Status = "Rejected"
)

// Final reports whether no further transition is legal.
func (s Status) Final() bool {
	return s == StatusPaid || s == StatusRejected
}

type Source string

const (
	SourceManual  Source = "manual"
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
)

// PaymentRequest is one ledger row. Amount, PayerID and Item never change
// after issuance; only the confirmation fields do.
type PaymentRequest struct {
	Identifier   string
	Period       string
	PayerID      string
	PayerName    string
	PayerContact string
	Item         string
	Cycle        string
	Amount       decimal.Decimal
	Status       Status
	CreatedAt    time.Time

	// ConfirmedAt is set only for Paid requests, RejectedAt only for
	// Rejected ones. Source and ConfirmedBy record whoever closed the request.
	ConfirmedAt       *time.Time
	ProviderPaymentID string
	PaidAmount        *decimal.Decimal
	Source            Source
	ConfirmedBy       string
	RejectReason      string
	RejectedAt        *time.Time
}

// Подтверждение оплаты

type Confirmation struct {
	Identifier        string
	ObservedAmount    decimal.Decimal
	ProviderPaymentID string
	ConfirmedAt       time.Time
	Source            Source
	Operator          string
}

type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	// OutcomeAlreadyFinal is returned by Reject for a request that already
	// left Pending.
	OutcomeAlreadyFinal Outcome = "already_final"
)

// ConfirmationResult carries the request as stored after the call. For
// OutcomeAlreadyConfirmed and OutcomeAlreadyFinal it is the prior state,
// untouched.
type ConfirmationResult struct {
	Outcome        Outcome
	Request        PaymentRequest
	AmountMismatch bool
}

func (r ConfirmationResult) Applied() bool {
	return r.Outcome == OutcomeConfirmed || r.Outcome == OutcomeRejected
}
