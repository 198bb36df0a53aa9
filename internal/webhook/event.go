package webhook

import (
	"encoding/json"
	"strings"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/provider"
)

// Event is a provider notification. It only says that a payment changed;
// the payment itself is fetched from the provider.
type Event struct {
	ID        string
	Action    string
	Type      string
	PaymentID string
	LiveMode  bool
}

type rawEvent struct {
	ID       provider.ID `json:"id"`
	Action   string      `json:"action"`
	Type     string      `json:"type"`
	LiveMode bool        `json:"live_mode"`
	Data     struct {
		ID provider.ID `json:"id"`
	} `json:"data"`
}

var ErrMalformedEvent = errs.Mark(errs.New("malformed webhook event"), errs.ErrValidation)

// ParseEvent decodes a notification body. Ids may be JSON numbers or strings.
func ParseEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, errs.Mark(errs.Wrap(err, "decode webhook event"), ErrMalformedEvent)
	}

	ev := Event{
		ID:        string(raw.ID),
		Action:    strings.TrimSpace(raw.Action),
		Type:      strings.TrimSpace(raw.Type),
		PaymentID: strings.TrimSpace(string(raw.Data.ID)),
		LiveMode:  raw.LiveMode,
	}
	if ev.Action == "" && ev.Type == "" {
		return Event{}, errs.Wrap(ErrMalformedEvent, "neither action nor type set")
	}
	if ev.PaymentID == "" {
		return Event{}, errs.Wrap(ErrMalformedEvent, "data.id is missing")
	}
	return ev, nil
}

const (
	ActionPaymentCreated = "payment.created"
	ActionPaymentUpdated = "payment.updated"
	TypePayment          = "payment"
)

// Relevant reports whether the event concerns a payment we may reconcile.
// Without an action the type decides; it may be the bare "payment" or carry
// the action itself.
func (e Event) Relevant() bool {
	if e.Action != "" {
		return paymentAction(e.Action)
	}
	return e.Type == TypePayment || paymentAction(e.Type)
}

func paymentAction(s string) bool {
	return s == ActionPaymentCreated || s == ActionPaymentUpdated
}
