// Package reconciler moves a payment request out of Pending. Every
// confirmation path (webhook, polling, operator) goes through Confirm, so a
// request is credited at most once per process.
package reconciler

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/keylock"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/notify"
	"github.com/iurnickita/pixrecon/internal/repository"
)

type Repository interface {
	Find(ctx context.Context, identifier string, forceRefresh bool) (repository.Stored, error)
	Update(ctx context.Context, s repository.Stored) error
}

type Reconciler struct {
	repo     Repository
	notifier notify.Notifier
	locks    *keylock.Map
	now      func() time.Time
	zaplog   *zap.Logger
}

func NewReconciler(repo Repository, notifier notify.Notifier, now func() time.Time, zaplog *zap.Logger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		repo:     repo,
		notifier: notifier,
		locks:    keylock.New(),
		now:      now,
		zaplog:   zaplog.Named("reconciler"),
	}
}

// Confirm marks the request Paid. A request that already left Pending is
// returned unchanged with OutcomeAlreadyConfirmed; that is not an error.
func (r *Reconciler) Confirm(ctx context.Context, c model.Confirmation) (model.ConfirmationResult, error) {
	c.Identifier = strings.TrimSpace(c.Identifier)
	if c.Identifier == "" {
		return model.ConfirmationResult{}, errs.Wrap(errs.ErrValidation, "identifier is required")
	}
	if c.ConfirmedAt.IsZero() {
		c.ConfirmedAt = r.now()
	}

	result, err := r.transition(ctx, c.Identifier, model.OutcomeAlreadyConfirmed, func(req *model.PaymentRequest) {
		confirmedAt := c.ConfirmedAt.UTC()
		observed := c.ObservedAmount
		req.Status = model.StatusPaid
		req.ConfirmedAt = &confirmedAt
		req.ProviderPaymentID = c.ProviderPaymentID
		req.PaidAmount = &observed
		req.Source = c.Source
		req.ConfirmedBy = c.Operator
	})
	if err != nil {
		return result, err
	}

	switch result.Outcome {
	case model.OutcomeConfirmed:
		result.AmountMismatch = !c.ObservedAmount.Equal(result.Request.Amount)
		if result.AmountMismatch {
			r.zaplog.Warn("paid amount differs from requested",
				zap.String("identifier", c.Identifier),
				zap.String("requested", result.Request.Amount.StringFixed(2)),
				zap.String("paid", c.ObservedAmount.StringFixed(2)),
				zap.String("source", string(c.Source)))
		}
		r.zaplog.Info("payment confirmed",
			zap.String("identifier", c.Identifier),
			zap.String("source", string(c.Source)),
			zap.String("providerPaymentId", c.ProviderPaymentID))
	case model.OutcomeAlreadyConfirmed:
		r.zaplog.Info("payment already final",
			zap.String("identifier", c.Identifier),
			zap.String("status", string(result.Request.Status)),
			zap.String("source", string(c.Source)))
	}
	return result, nil
}

// Reject closes a Pending request without payment.
func (r *Reconciler) Reject(ctx context.Context, identifier, reason, operator string) (model.ConfirmationResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return model.ConfirmationResult{}, errs.Wrap(errs.ErrValidation, "identifier is required")
	}
	now := r.now().UTC()

	result, err := r.transition(ctx, identifier, model.OutcomeAlreadyFinal, func(req *model.PaymentRequest) {
		req.Status = model.StatusRejected
		req.RejectedAt = &now
		req.Source = model.SourceManual
		req.ConfirmedBy = operator
		req.RejectReason = reason
	})
	if err != nil {
		return result, err
	}
	if result.Outcome == model.OutcomeRejected {
		r.zaplog.Info("payment request rejected",
			zap.String("identifier", identifier),
			zap.String("operator", operator),
			zap.String("reason", reason))
	}
	return result, nil
}

// transition runs the read-modify-write shared by Confirm and Reject and
// notifies the payer after a successful write.
func (r *Reconciler) transition(ctx context.Context, identifier string, finalOutcome model.Outcome, apply func(*model.PaymentRequest)) (model.ConfirmationResult, error) {
	result, err := r.update(ctx, identifier, finalOutcome, apply)
	if err != nil {
		return model.ConfirmationResult{}, err
	}
	if result.Applied() {
		r.notify(ctx, result.Request)
	}
	return result, nil
}

// update holds the identifier lock. The lookup bypasses the ledger cache: a
// cached Pending may already be Paid.
func (r *Reconciler) update(ctx context.Context, identifier string, finalOutcome model.Outcome, apply func(*model.PaymentRequest)) (model.ConfirmationResult, error) {
	defer r.locks.Lock(identifier)()

	stored, err := r.repo.Find(ctx, identifier, true)
	if err != nil {
		return model.ConfirmationResult{}, err
	}
	if stored.Request.Status != model.StatusPending {
		return model.ConfirmationResult{Outcome: finalOutcome, Request: stored.Request}, nil
	}

	apply(&stored.Request)
	if err := r.repo.Update(ctx, stored); err != nil {
		return model.ConfirmationResult{}, err
	}

	outcome := model.OutcomeConfirmed
	if stored.Request.Status == model.StatusRejected {
		outcome = model.OutcomeRejected
	}
	return model.ConfirmationResult{Outcome: outcome, Request: stored.Request}, nil
}

// notify is best-effort: the ledger row is already written.
func (r *Reconciler) notify(ctx context.Context, req model.PaymentRequest) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, req); err != nil {
		r.zaplog.Error("payment notification failed",
			zap.String("identifier", req.Identifier),
			zap.Error(err))
	}
}
