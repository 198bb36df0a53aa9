package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/provider/config"
)

// JSON ответ провайдера
type Payment struct {
	ID                ID              `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	DateApproved      *time.Time      `json:"date_approved"`
	ExternalReference string          `json:"external_reference"`
	Description       string          `json:"description"`
}

const (
	StatusPending    = "pending"
	StatusInProcess  = "in_process"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusChargeback = "charged_back"
)

// Reference is the identifier the payer quoted. Payments made from the
// bank app without our reference field carry it in the description.
func (p Payment) Reference() string {
	if p.ExternalReference != "" {
		return p.ExternalReference
	}
	return p.Description
}

func (p Payment) Approved() bool {
	return p.Status == StatusApproved
}

// ID accepts both numeric and string payment ids.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		*id = ""
		return nil
	}
	*id = ID(b)
	return nil
}

var ErrPaymentNotFound = errs.Mark(errs.New("payment not found at provider"), errs.ErrProviderUnavailable)

type Client interface {
	GetPayment(ctx context.Context, id string) (Payment, error)
}

type client struct {
	rest *resty.Client
}

func NewClient(cfg config.Config) Client {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}
	return &client{rest: rest}
}

func (c *client) GetPayment(ctx context.Context, id string) (Payment, error) {
	path := "/v1/payments/{id}"

	// id приходит из тела вебхука, экранируется resty
	req := c.rest.R().SetContext(ctx).SetPathParam("id", id)
	req.Method = http.MethodGet
	req.URL = path
	resp, err := req.Send()
	if err != nil {
		return Payment{}, errs.Mark(errs.Wrapf(err, "get payment %s", id), errs.ErrProviderUnavailable)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var payment Payment
		if err := json.Unmarshal(resp.Body(), &payment); err != nil {
			return Payment{}, errs.Mark(errs.Wrapf(err, "decode payment %s", id), errs.ErrProviderUnavailable)
		}
		return payment, nil
	case http.StatusNotFound:
		return Payment{}, errs.Wrapf(ErrPaymentNotFound, "payment %s", id)
	default:
		return Payment{}, errs.Mark(errs.Newf("get payment %s: provider status %d", id, resp.StatusCode()), errs.ErrProviderUnavailable)
	}
}
