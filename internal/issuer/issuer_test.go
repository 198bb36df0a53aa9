package issuer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/identifier"
	"github.com/iurnickita/pixrecon/internal/ledger"
	"github.com/iurnickita/pixrecon/internal/ledger/config"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/repository"
	"github.com/iurnickita/pixrecon/internal/store"
)

var testNow = time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T, gen *identifier.Generator) (*Issuer, *repository.Repository) {
	return newTestIssuerWithBackend(t, gen, store.NewMemory())
}

func newTestIssuerWithBackend(t *testing.T, gen *identifier.Generator, backend store.Backend) (*Issuer, *repository.Repository) {
	client := ledger.NewClient(config.Config{CacheTTL: time.Minute, MaxAttempts: 1}, backend, zaptest.NewLogger(t),
		ledger.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	repo := repository.NewRepository(client, "payments")
	if gen == nil {
		gen = identifier.NewGenerator(nil)
	}
	return NewIssuer(repo, gen, func() time.Time { return testNow }, zaptest.NewLogger(t)), repo
}

func TestIssue(t *testing.T) {
	ctx := context.Background()
	iss, repo := newTestIssuer(t, nil)

	req, err := iss.Issue(ctx, IssueParams{PayerID: "123", PayerName: "Maria", Item: "Book A", Amount: "45", Period: "202501"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, "45.00", req.Amount.StringFixed(2))
	assert.Equal(t, testNow, req.CreatedAt)
	assert.True(t, identifier.IsPeriodScoped(req.Identifier))
	assert.True(t, strings.HasPrefix(req.Identifier, "2025010123"))

	stored, err := repo.Find(ctx, req.Identifier, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Request.Status)
	assert.Nil(t, stored.Request.ConfirmedAt)
}

func TestIssueDefaultsPeriodToCurrentMonth(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)

	req, err := iss.Issue(context.Background(), IssueParams{PayerID: "77", Item: "Mensalidade", Amount: "120.50"})
	require.NoError(t, err)
	assert.Equal(t, "202501", req.Period)
}

func TestIssueOpaque(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)

	req, err := iss.Issue(context.Background(), IssueParams{PayerID: "77", Item: "Book B", Amount: "10", Scheme: SchemeOpaque})
	require.NoError(t, err)
	assert.True(t, identifier.IsOpaque(req.Identifier), req.Identifier)
}

func TestIssueSamePayerPeriodDistinct(t *testing.T) {
	ctx := context.Background()
	iss, _ := newTestIssuer(t, nil)

	a, err := iss.Issue(ctx, IssueParams{PayerID: "123", Item: "Book A", Amount: "45", Period: "202501"})
	require.NoError(t, err)
	b, err := iss.Issue(ctx, IssueParams{PayerID: "123", Item: "Book A", Amount: "45", Period: "202501"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Identifier, b.Identifier)
}

func TestIssueValidation(t *testing.T) {
	iss, repo := newTestIssuer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		params IssueParams
		target error
	}{
		{"non numeric amount", IssueParams{PayerID: "1", Item: "i", Amount: "abc"}, errs.ErrInvalidAmount},
		{"zero amount", IssueParams{PayerID: "1", Item: "i", Amount: "0"}, errs.ErrInvalidAmount},
		{"negative amount", IssueParams{PayerID: "1", Item: "i", Amount: "-5"}, errs.ErrInvalidAmount},
		{"missing payer", IssueParams{Item: "i", Amount: "5"}, errs.ErrValidation},
		{"missing item", IssueParams{PayerID: "1", Amount: "5"}, errs.ErrValidation},
		{"bad period", IssueParams{PayerID: "1", Item: "i", Amount: "5", Period: "2025-01"}, errs.ErrValidation},
		{"unknown scheme", IssueParams{PayerID: "1", Item: "i", Amount: "5", Scheme: "uuid"}, errs.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Issue(ctx, tt.params)
			require.Error(t, err)
			assert.True(t, errs.Is(err, tt.target), err.Error())
			assert.True(t, errs.Is(err, errs.ErrValidation))
		})
	}

	all, err := repo.All(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIssueSuppliedIdentifierDuplicate(t *testing.T) {
	ctx := context.Background()
	iss, _ := newTestIssuer(t, nil)

	first, err := iss.Issue(ctx, IssueParams{PayerID: "9", Item: "Book C", Amount: "30", Identifier: "ABCD2345"})
	require.NoError(t, err)
	assert.Equal(t, "ABCD2345", first.Identifier)

	_, err = iss.Issue(ctx, IssueParams{PayerID: "10", Item: "Book D", Amount: "99", Identifier: "ABCD2345"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrDuplicateRequest))

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "9", dup.Existing.PayerID)
	assert.Equal(t, "30.00", dup.Existing.Amount.StringFixed(2))
}

// slowBackend widens the window between the duplicate check and the append.
type slowBackend struct {
	store.Backend
}

func (b slowBackend) Read(ctx context.Context, key store.Key) ([]store.Row, error) {
	time.Sleep(20 * time.Millisecond)
	return b.Backend.Read(ctx, key)
}

func TestIssueConcurrentSameIdentifier(t *testing.T) {
	ctx := context.Background()
	iss, repo := newTestIssuerWithBackend(t, nil, slowBackend{Backend: store.NewMemory()})

	const n = 8
	errCh := make(chan error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := iss.Issue(ctx, IssueParams{PayerID: strconv.Itoa(i + 1), Item: "Book A", Amount: "45", Identifier: "SAME"})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	issued, duplicates := 0, 0
	for err := range errCh {
		switch {
		case err == nil:
			issued++
		case errs.Is(err, errs.ErrDuplicateRequest):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, issued)
	assert.Equal(t, n-1, duplicates)
	assert.Zero(t, iss.locks.Len())

	all, err := repo.All(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "SAME", all[0].Request.Identifier)
}

func TestIssueBlankSuppliedIdentifierIsGenerated(t *testing.T) {
	iss, _ := newTestIssuer(t, nil)

	req, err := iss.Issue(context.Background(), IssueParams{PayerID: "123", Item: "Book A", Amount: "45", Period: "202501", Identifier: "  "})
	require.NoError(t, err)
	assert.True(t, identifier.IsPeriodScoped(req.Identifier), req.Identifier)
}

func TestIssueRegeneratesOnCollision(t *testing.T) {
	ctx := context.Background()
	// первое значение совпадает с уже выданным, второе свободно
	random := strings.Repeat("\x00", 16) + strings.Repeat("\x00", 16) + strings.Repeat("\x11", 16)
	iss, _ := newTestIssuer(t, identifier.NewGenerator(strings.NewReader(random)))

	first, err := iss.Issue(ctx, IssueParams{PayerID: "1", Item: "i", Amount: "5", Scheme: SchemeOpaque})
	require.NoError(t, err)
	assert.Equal(t, "yyyyyyyy", first.Identifier)

	second, err := iss.Issue(ctx, IssueParams{PayerID: "1", Item: "i", Amount: "5", Scheme: SchemeOpaque})
	require.NoError(t, err)
	assert.NotEqual(t, first.Identifier, second.Identifier)
}

func TestIssueGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	iss, _ := newTestIssuer(t, identifier.NewGenerator(strings.NewReader(strings.Repeat("\x00", 16*(maxAttempts+1)))))

	_, err := iss.Issue(ctx, IssueParams{PayerID: "1", Item: "i", Amount: "5", Scheme: SchemeOpaque})
	require.NoError(t, err)

	_, err = iss.Issue(ctx, IssueParams{PayerID: "1", Item: "i", Amount: "5", Scheme: SchemeOpaque})
	assert.True(t, errs.Is(err, errs.ErrDuplicateRequest))
}

func TestParseAmount(t *testing.T) {
	for _, s := range []string{"45", "45.00", "45.5", " 0.01 "} {
		_, err := ParseAmount(s)
		assert.NoError(t, err, s)
	}
	for _, s := range []string{"", "45,00", "R$45", "0.00"} {
		_, err := ParseAmount(s)
		assert.True(t, errs.Is(err, errs.ErrInvalidAmount), s)
	}
}
