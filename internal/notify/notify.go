// Package notify sends the "payment received" message to the payer once a
// request leaves Pending. Delivery is best-effort.
package notify

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/notify/config"
)

type Notifier interface {
	Notify(ctx context.Context, req model.PaymentRequest) error
}

// Message is the body posted to the messaging gateway.
type Message struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Data      map[string]string `json:"data"`
}

var ErrRejected = errs.New("notification rejected by gateway")

// NewNotifier returns a no-op notifier when no gateway URL is configured.
func NewNotifier(cfg config.Config, zaplog *zap.Logger) Notifier {
	zaplog = zaplog.Named("notify")
	if cfg.URL == "" {
		zaplog.Info("notification gateway not configured, messages are only logged")
		return &nopNotifier{zaplog: zaplog}
	}

	rest := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}
	return &httpNotifier{rest: rest, template: cfg.Template, zaplog: zaplog}
}

type httpNotifier struct {
	rest     *resty.Client
	template string
	zaplog   *zap.Logger
}

func (n *httpNotifier) Notify(ctx context.Context, req model.PaymentRequest) error {
	msg := NewMessage(req, n.template)
	if msg.Recipient == "" {
		n.zaplog.Debug("no contact for payer, skipping", zap.String("identifier", req.Identifier))
		return nil
	}

	resp, err := n.rest.R().
		SetContext(ctx).
		SetBody(msg).
		Post("/messages")
	if err != nil {
		return errs.Wrapf(err, "notify %s", req.Identifier)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		return errs.Wrapf(ErrRejected, "notify %s: status %d", req.Identifier, resp.StatusCode())
	}
}

type nopNotifier struct {
	zaplog *zap.Logger
}

func (n *nopNotifier) Notify(_ context.Context, req model.PaymentRequest) error {
	n.zaplog.Info("payment notification",
		zap.String("identifier", req.Identifier),
		zap.String("status", string(req.Status)),
		zap.String("payer", req.PayerID))
	return nil
}

func NewMessage(req model.PaymentRequest, template string) Message {
	data := map[string]string{
		"identifier": req.Identifier,
		"payerName":  req.PayerName,
		"item":       req.Item,
		"cycle":      req.Cycle,
		"amount":     req.Amount.StringFixed(2),
		"status":     string(req.Status),
	}
	if req.ConfirmedAt != nil {
		data["confirmedAt"] = req.ConfirmedAt.Format("02/01/2006 15:04")
	}
	if req.RejectReason != "" {
		data["reason"] = req.RejectReason
	}
	return Message{Recipient: req.PayerContact, Template: template, Data: data}
}
