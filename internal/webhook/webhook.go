// Package webhook turns provider push notifications into confirmations.
// Anything that might be ours but could not be processed answers 500 so the
// provider delivers it again.
package webhook

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/provider"
	"github.com/iurnickita/pixrecon/internal/webhook/config"
)

type Confirmer interface {
	Confirm(ctx context.Context, c model.Confirmation) (model.ConfirmationResult, error)
}

type Response struct {
	Status int
	Body   map[string]string
}

func reply(status int, result string) Response {
	return Response{Status: status, Body: map[string]string{"result": result}}
}

type Ingestor struct {
	cfg       config.Config
	provider  provider.Client
	confirmer Confirmer
	zaplog    *zap.Logger
}

func NewIngestor(cfg config.Config, provider provider.Client, confirmer Confirmer, zaplog *zap.Logger) *Ingestor {
	return &Ingestor{cfg: cfg, provider: provider, confirmer: confirmer, zaplog: zaplog.Named("webhook")}
}

// Ingest parses and, when a secret is configured, authenticates a raw
// notification before handling it.
func (i *Ingestor) Ingest(ctx context.Context, body []byte, signature string) Response {
	ev, err := ParseEvent(body)
	if err != nil {
		i.zaplog.Warn("malformed webhook", zap.Error(err))
		return reply(http.StatusBadRequest, "malformed")
	}
	if i.cfg.Secret != "" {
		if err := VerifySignature(i.cfg.Secret, signature, ev.PaymentID); err != nil {
			i.zaplog.Warn("webhook signature rejected", zap.String("paymentId", ev.PaymentID), zap.Error(err))
			return reply(http.StatusUnauthorized, "bad signature")
		}
	}
	return i.Handle(ctx, ev)
}

func (i *Ingestor) Handle(ctx context.Context, ev Event) Response {
	if !ev.Relevant() {
		i.zaplog.Debug("webhook ignored", zap.String("action", ev.Action), zap.String("type", ev.Type))
		return reply(http.StatusOK, "ignored")
	}

	payment, err := i.provider.GetPayment(ctx, ev.PaymentID)
	if err != nil {
		i.zaplog.Error("payment lookup failed", zap.String("paymentId", ev.PaymentID), zap.Error(err))
		return reply(http.StatusInternalServerError, "provider unavailable")
	}
	if !payment.Approved() {
		i.zaplog.Info("payment not approved",
			zap.String("paymentId", ev.PaymentID),
			zap.String("status", payment.Status))
		return reply(http.StatusOK, "ignored")
	}
	reference := payment.Reference()
	if reference == "" {
		i.zaplog.Info("approved payment without reference", zap.String("paymentId", ev.PaymentID))
		return reply(http.StatusOK, "ignored")
	}

	confirmedAt := payment.DateApproved
	c := model.Confirmation{
		Identifier:        reference,
		ObservedAmount:    payment.TransactionAmount,
		ProviderPaymentID: ev.PaymentID,
		Source:            model.SourceWebhook,
	}
	if confirmedAt != nil {
		c.ConfirmedAt = *confirmedAt
	}

	res, err := i.confirmer.Confirm(ctx, c)
	if err != nil {
		level := i.zaplog.Error
		if errs.Is(err, errs.ErrNotFound) {
			level = i.zaplog.Warn
		}
		level("webhook confirmation failed",
			zap.String("paymentId", ev.PaymentID),
			zap.String("identifier", reference),
			zap.Error(err))
		return reply(http.StatusInternalServerError, "not processed")
	}

	resp := reply(http.StatusOK, string(res.Outcome))
	resp.Body["identifier"] = reference
	return resp
}
