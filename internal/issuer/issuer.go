// Package issuer creates payment requests with an identifier no other
// request in the ledger carries.
package issuer

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/identifier"
	"github.com/iurnickita/pixrecon/internal/keylock"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/repository"
)

type Scheme string

const (
	SchemePeriod Scheme = "period"
	SchemeOpaque Scheme = "opaque"
)

// maxAttempts bounds regeneration after a collision with an existing row.
const maxAttempts = 5

type IssueParams struct {
	PayerID      string
	PayerName    string
	PayerContact string
	Item         string
	Cycle        string
	// Amount is parsed with decimal; "45", "45.00" and "45.5" are accepted.
	Amount string
	// Period defaults to the current month.
	Period     string
	Identifier string
	Scheme     Scheme
}

// DuplicateError is returned when a caller-supplied identifier is taken.
type DuplicateError struct {
	Existing model.PaymentRequest
}

func (e *DuplicateError) Error() string {
	return "payment request " + e.Existing.Identifier + " already exists"
}

func (e *DuplicateError) Unwrap() error {
	return errs.ErrDuplicateRequest
}

type Repository interface {
	Find(ctx context.Context, identifier string, forceRefresh bool) (repository.Stored, error)
	Insert(ctx context.Context, req model.PaymentRequest) (repository.Stored, error)
}

type Issuer struct {
	repo   Repository
	gen    *identifier.Generator
	locks  *keylock.Map
	now    func() time.Time
	zaplog *zap.Logger
}

func NewIssuer(repo Repository, gen *identifier.Generator, now func() time.Time, zaplog *zap.Logger) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{repo: repo, gen: gen, locks: keylock.New(), now: now, zaplog: zaplog.Named("issuer")}
}

func (i *Issuer) Issue(ctx context.Context, p IssueParams) (model.PaymentRequest, error) {
	amount, err := ParseAmount(p.Amount)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	p.PayerID = strings.TrimSpace(p.PayerID)
	p.Item = strings.TrimSpace(p.Item)
	if p.PayerID == "" {
		return model.PaymentRequest{}, errs.Wrap(errs.ErrValidation, "payer id is required")
	}
	if p.Item == "" {
		return model.PaymentRequest{}, errs.Wrap(errs.ErrValidation, "item is required")
	}
	now := i.now()
	if p.Period == "" {
		p.Period = identifier.Period(now)
	}
	if !identifier.ValidPeriod(p.Period) {
		return model.PaymentRequest{}, errs.Wrapf(identifier.ErrInvalidPeriod, "period %q", p.Period)
	}

	id := strings.TrimSpace(p.Identifier)
	var release func()
	if id != "" {
		release, err = i.claim(ctx, id)
	} else {
		id, release, err = i.uniqueIdentifier(ctx, p)
	}
	if err != nil {
		return model.PaymentRequest{}, err
	}
	defer release()

	req := model.PaymentRequest{
		Identifier:   id,
		Period:       p.Period,
		PayerID:      p.PayerID,
		PayerName:    strings.TrimSpace(p.PayerName),
		PayerContact: strings.TrimSpace(p.PayerContact),
		Item:         p.Item,
		Cycle:        p.Cycle,
		Amount:       amount,
		Status:       model.StatusPending,
		CreatedAt:    now.UTC(),
	}
	stored, err := i.repo.Insert(ctx, req)
	if err != nil {
		return model.PaymentRequest{}, err
	}

	i.zaplog.Info("payment request issued",
		zap.String("identifier", id),
		zap.String("payer", p.PayerID),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int("row", stored.Row))
	return stored.Request, nil
}

// claim locks id and checks the ledger for it. The lock is held until the
// returned release is called, so the check and the append are not
// interleaved with another issuance of the same identifier.
func (i *Issuer) claim(ctx context.Context, id string) (func(), error) {
	unlock := i.locks.Lock(id)
	existing, err := i.repo.Find(ctx, id, true)
	switch {
	case err == nil:
		unlock()
		return nil, &DuplicateError{Existing: existing.Request}
	case !errs.Is(err, errs.ErrNotFound):
		unlock()
		return nil, err
	}
	return unlock, nil
}

func (i *Issuer) uniqueIdentifier(ctx context.Context, p IssueParams) (string, func(), error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var (
			id  string
			err error
		)
		switch p.Scheme {
		case SchemeOpaque:
			id, err = i.gen.NewOpaqueIdentifier()
		case SchemePeriod, "":
			id, err = i.gen.NewIdentifier(p.PayerID, p.Period)
		default:
			return "", nil, errs.Wrapf(errs.ErrValidation, "unknown identifier scheme %q", p.Scheme)
		}
		if err != nil {
			return "", nil, err
		}

		release, err := i.claim(ctx, id)
		if err == nil {
			return id, release, nil
		}
		if !errs.Is(err, errs.ErrDuplicateRequest) {
			return "", nil, err
		}
		i.zaplog.Warn("generated identifier collides, regenerating",
			zap.String("identifier", id), zap.Int("attempt", attempt))
	}
	return "", nil, errs.Wrapf(errs.ErrDuplicateRequest, "no free identifier after %d attempts", maxAttempts)
}

// ParseAmount accepts a positive decimal with a dot separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errs.Wrapf(errs.ErrInvalidAmount, "amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, errs.Wrapf(errs.ErrInvalidAmount, "amount %s must be positive", s)
	}
	return amount, nil
}
