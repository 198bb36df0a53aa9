// Package repository maps PaymentRequest records to flat ledger rows. Column
// order is known only here.
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/ledger"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/store"
)

const (
	colIdentifier = iota
	colPeriod
	colPayerID
	colPayerName
	colPayerContact
	colItem
	colCycle
	colAmount
	colStatus
	colCreatedAt
	colConfirmedAt
	colProviderPaymentID
	colPaidAmount
	colSource
	colConfirmedBy
	colRejectReason
	colRejectedAt
	columns
)

// Ledger is the subset of ledger.Client the repository needs.
type Ledger interface {
	Get(ctx context.Context, key store.Key, forceRefresh bool) ([]store.Row, error)
	Put(ctx context.Context, key store.Key, rows []store.Row) error
	Append(ctx context.Context, key store.Key, rows []store.Row) (int, error)
}

// Stored is a request together with the ledger row it lives in.
type Stored struct {
	Request model.PaymentRequest
	Row     int
}

type Repository struct {
	ledger Ledger
	table  string
}

func NewRepository(ledger Ledger, table string) *Repository {
	return &Repository{ledger: ledger, table: table}
}

// All returns every request in ledger order. Rows that cannot be decoded
// are skipped.
func (r *Repository) All(ctx context.Context, forceRefresh bool) ([]Stored, error) {
	rows, err := r.ledger.Get(ctx, store.TableKey(r.table), forceRefresh)
	if err != nil {
		if errs.Is(err, ledger.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	stored := make([]Stored, 0, len(rows))
	for i, row := range rows {
		req, err := Decode(row)
		if err != nil {
			continue
		}
		stored = append(stored, Stored{Request: req, Row: i + 1})
	}
	return stored, nil
}

// Find looks a request up by identifier; errs.ErrNotFound when absent.
func (r *Repository) Find(ctx context.Context, identifier string, forceRefresh bool) (Stored, error) {
	all, err := r.All(ctx, forceRefresh)
	if err != nil {
		return Stored{}, err
	}
	for _, s := range all {
		if s.Request.Identifier == identifier {
			return s, nil
		}
	}
	return Stored{}, errs.Wrapf(errs.ErrNotFound, "identifier %s", identifier)
}

// Pending lists requests still waiting for payment, optionally only those
// of one period.
func (r *Repository) Pending(ctx context.Context, period string, forceRefresh bool) ([]model.PaymentRequest, error) {
	all, err := r.All(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	pending := []model.PaymentRequest{}
	for _, s := range all {
		if s.Request.Status != model.StatusPending {
			continue
		}
		if period != "" && s.Request.Period != period {
			continue
		}
		pending = append(pending, s.Request)
	}
	return pending, nil
}

func (r *Repository) Insert(ctx context.Context, req model.PaymentRequest) (Stored, error) {
	row, err := r.ledger.Append(ctx, store.TableKey(r.table), []store.Row{Encode(req)})
	if err != nil {
		return Stored{}, err
	}
	return Stored{Request: req, Row: row}, nil
}

// Update rewrites the row the request was read from.
func (r *Repository) Update(ctx context.Context, s Stored) error {
	return r.ledger.Put(ctx, store.RowKey(r.table, s.Row), []store.Row{Encode(s.Request)})
}

func Encode(req model.PaymentRequest) store.Row {
	row := make(store.Row, columns)
	row[colIdentifier] = req.Identifier
	row[colPeriod] = req.Period
	row[colPayerID] = req.PayerID
	row[colPayerName] = req.PayerName
	row[colPayerContact] = req.PayerContact
	row[colItem] = req.Item
	row[colCycle] = req.Cycle
	row[colAmount] = req.Amount.StringFixed(2)
	row[colStatus] = string(req.Status)
	row[colCreatedAt] = formatTime(&req.CreatedAt)
	row[colConfirmedAt] = formatTime(req.ConfirmedAt)
	row[colProviderPaymentID] = req.ProviderPaymentID
	if req.PaidAmount != nil {
		row[colPaidAmount] = req.PaidAmount.StringFixed(2)
	}
	row[colSource] = string(req.Source)
	row[colConfirmedBy] = req.ConfirmedBy
	row[colRejectReason] = req.RejectReason
	row[colRejectedAt] = formatTime(req.RejectedAt)
	return row
}

var ErrMalformedRow = errs.New("malformed ledger row")

func Decode(row store.Row) (model.PaymentRequest, error) {
	cells := make([]string, columns)
	copy(cells, row)

	if cells[colIdentifier] == "" {
		return model.PaymentRequest{}, errs.Wrap(ErrMalformedRow, "empty identifier")
	}
	amount, err := decimal.NewFromString(cells[colAmount])
	if err != nil {
		return model.PaymentRequest{}, errs.Mark(errs.Wrapf(err, "row %s amount", cells[colIdentifier]), ErrMalformedRow)
	}
	status := model.Status(cells[colStatus])
	switch status {
	case model.StatusPending, model.StatusPaid, model.StatusRejected:
	default:
		return model.PaymentRequest{}, errs.Wrapf(ErrMalformedRow, "row %s status %q", cells[colIdentifier], status)
	}

	req := model.PaymentRequest{
		Identifier:        cells[colIdentifier],
		Period:            cells[colPeriod],
		PayerID:           cells[colPayerID],
		PayerName:         cells[colPayerName],
		PayerContact:      cells[colPayerContact],
		Item:              cells[colItem],
		Cycle:             cells[colCycle],
		Amount:            amount,
		Status:            status,
		ProviderPaymentID: cells[colProviderPaymentID],
		Source:            model.Source(cells[colSource]),
		ConfirmedBy:       cells[colConfirmedBy],
		RejectReason:      cells[colRejectReason],
	}
	if t := parseTime(cells[colCreatedAt]); t != nil {
		req.CreatedAt = *t
	}
	req.ConfirmedAt = parseTime(cells[colConfirmedAt])
	req.RejectedAt = parseTime(cells[colRejectedAt])
	if cells[colPaidAmount] != "" {
		paid, err := decimal.NewFromString(cells[colPaidAmount])
		if err == nil {
			req.PaidAmount = &paid
		}
	}
	return req, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
