package reconciler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/ledger"
	"github.com/iurnickita/pixrecon/internal/ledger/config"
	"github.com/iurnickita/pixrecon/internal/mocks"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/repository"
	"github.com/iurnickita/pixrecon/internal/store"
)

var testNow = time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC)

type fixture struct {
	rec      *Reconciler
	repo     *repository.Repository
	notifier *mocks.MockNotifier
}

func newFixture(t *testing.T) fixture {
	return newFixtureWithBackend(t, store.NewMemory())
}

func newFixtureWithBackend(t *testing.T, backend store.Backend) fixture {
	ctrl := gomock.NewController(t)
	client := ledger.NewClient(config.Config{CacheTTL: time.Hour, MaxAttempts: 1}, backend, zaptest.NewLogger(t),
		ledger.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	repo := repository.NewRepository(client, "payments")
	notifier := mocks.NewMockNotifier(ctrl)
	return fixture{
		rec:      NewReconciler(repo, notifier, func() time.Time { return testNow }, zaptest.NewLogger(t)),
		repo:     repo,
		notifier: notifier,
	}
}

func (f fixture) issue(t *testing.T, identifier, amount string) {
	_, err := f.repo.Insert(context.Background(), model.PaymentRequest{
		Identifier: identifier,
		Period:     "202501",
		PayerID:    "123",
		Item:       "Book A",
		Amount:     decimal.RequireFromString(amount),
		Status:     model.StatusPending,
		CreatedAt:  testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func confirmation(identifier, amount string, source model.Source) model.Confirmation {
	return model.Confirmation{
		Identifier:        identifier,
		ObservedAmount:    decimal.RequireFromString(amount),
		ProviderPaymentID: "1319",
		ConfirmedAt:       time.Date(2025, 1, 19, 22, 15, 0, 0, time.UTC),
		Source:            source,
	}
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req model.PaymentRequest) error {
			assert.Equal(t, model.StatusPaid, req.Status)
			return nil
		}).Times(1)

	res, err := f.rec.Confirm(ctx, confirmation("A1", "45", model.SourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, res.Outcome)
	assert.False(t, res.AmountMismatch)

	stored, err := f.repo.Find(ctx, "A1", true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Request.Status)
	assert.Equal(t, "1319", stored.Request.ProviderPaymentID)
	assert.Equal(t, model.SourceWebhook, stored.Request.Source)
	require.NotNil(t, stored.Request.ConfirmedAt)
	assert.Equal(t, time.Date(2025, 1, 19, 22, 15, 0, 0, time.UTC), *stored.Request.ConfirmedAt)
}

func TestConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := f.rec.Confirm(ctx, confirmation("A1", "45", model.SourceWebhook))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeConfirmed, first.Outcome)

	again := confirmation("A1", "45", model.SourcePoll)
	again.ProviderPaymentID = "9999"
	again.ConfirmedAt = testNow
	second, err := f.rec.Confirm(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyConfirmed, second.Outcome)
	assert.Equal(t, "1319", second.Request.ProviderPaymentID)
	assert.Equal(t, *first.Request.ConfirmedAt, *second.Request.ConfirmedAt)
	assert.Equal(t, model.SourceWebhook, second.Request.Source)
}

// quotaBackend fails every read with a quota error once down is set.
type quotaBackend struct {
	store.Backend
	down   atomic.Bool
	writes atomic.Int32
}

func (b *quotaBackend) Read(ctx context.Context, key store.Key) ([]store.Row, error) {
	if b.down.Load() {
		return nil, store.ErrQuotaExceeded
	}
	return b.Backend.Read(ctx, key)
}

func (b *quotaBackend) Write(ctx context.Context, key store.Key, rows []store.Row) error {
	b.writes.Add(1)
	return b.Backend.Write(ctx, key, rows)
}

func TestRedeliveryDuringQuotaOutageDoesNotConfirmAgain(t *testing.T) {
	ctx := context.Background()
	backend := &quotaBackend{Backend: store.NewMemory()}
	f := newFixtureWithBackend(t, backend)
	f.issue(t, "X1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := f.rec.Confirm(ctx, confirmation("X1", "45", model.SourceWebhook))
	require.NoError(t, err)
	require.Equal(t, model.OutcomeConfirmed, first.Outcome)

	// кэш таблицы еще помнит заявку в статусе Pending
	backend.down.Store(true)
	again := confirmation("X1", "45", model.SourceWebhook)
	again.ProviderPaymentID = "OTHER"
	res, err := f.rec.Confirm(ctx, again)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrStoreUnavailable))
	assert.NotEqual(t, model.OutcomeConfirmed, res.Outcome)
	assert.Equal(t, int32(1), backend.writes.Load())

	backend.down.Store(false)
	stored, err := f.repo.Find(ctx, "X1", true)
	require.NoError(t, err)
	assert.Equal(t, "1319", stored.Request.ProviderPaymentID)
}

func TestConfirmUnknownIdentifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.rec.Confirm(ctx, confirmation("nope", "45", model.SourceManual))
	require.True(t, errs.Is(err, errs.ErrNotFound))

	all, err := f.repo.All(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConfirmAmountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	res, err := f.rec.Confirm(ctx, confirmation("A1", "40.00", model.SourcePoll))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, res.Outcome)
	assert.True(t, res.AmountMismatch)
	assert.Equal(t, "45.00", res.Request.Amount.StringFixed(2))
	assert.Equal(t, "40.00", res.Request.PaidAmount.StringFixed(2))
}

func TestConfirmNotificationFailureKeepsPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errs.New("gateway down"))

	res, err := f.rec.Confirm(ctx, confirmation("A1", "45", model.SourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeConfirmed, res.Outcome)

	stored, err := f.repo.Find(ctx, "A1", true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Request.Status)
}

func TestConfirmManualRecordsOperator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	c := confirmation("A1", "45", model.SourceManual)
	c.ConfirmedAt = time.Time{}
	c.ProviderPaymentID = ""
	c.Operator = "joana"
	res, err := f.rec.Confirm(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "joana", res.Request.ConfirmedBy)
	assert.Equal(t, testNow, *res.Request.ConfirmedAt)
}

func TestConcurrentConfirmationsCreditOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	sources := []model.Source{model.SourceWebhook, model.SourcePoll, model.SourceManual}
	results := make(chan model.ConfirmationResult, 12)
	var wg sync.WaitGroup
	for i := range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.rec.Confirm(ctx, confirmation("A1", "45", sources[i%len(sources)]))
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	confirmed := 0
	for res := range results {
		if res.Outcome == model.OutcomeConfirmed {
			confirmed++
		} else {
			assert.Equal(t, model.OutcomeAlreadyConfirmed, res.Outcome)
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Zero(t, f.rec.locks.Len())
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.issue(t, "A1", "45.00")
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	res, err := f.rec.Reject(ctx, "A1", "payer cancelled", "joana")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRejected, res.Outcome)
	assert.Equal(t, model.StatusRejected, res.Request.Status)
	assert.Equal(t, "payer cancelled", res.Request.RejectReason)
	assert.Nil(t, res.Request.ConfirmedAt)
	require.NotNil(t, res.Request.RejectedAt)
	assert.Equal(t, testNow, *res.Request.RejectedAt)

	stored, err := f.repo.Find(ctx, "A1", true)
	require.NoError(t, err)
	assert.Nil(t, stored.Request.ConfirmedAt)
	require.NotNil(t, stored.Request.RejectedAt)
	assert.Equal(t, testNow, *stored.Request.RejectedAt)

	again, err := f.rec.Reject(ctx, "A1", "twice", "joana")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyFinal, again.Outcome)
	assert.Equal(t, "payer cancelled", again.Request.RejectReason)

	// отклоненную заявку нельзя подтвердить
	conf, err := f.rec.Confirm(ctx, confirmation("A1", "45", model.SourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyConfirmed, conf.Outcome)
	assert.Equal(t, model.StatusRejected, conf.Request.Status)
}

func TestConfirmValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Confirm(context.Background(), confirmation(" ", "45", model.SourceManual))
	assert.True(t, errs.Is(err, errs.ErrValidation))
	_, err = f.rec.Reject(context.Background(), "", "x", "joana")
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

type failingRepository struct {
	stored repository.Stored
}

func (r failingRepository) Find(context.Context, string, bool) (repository.Stored, error) {
	return r.stored, nil
}

func (r failingRepository) Update(context.Context, repository.Stored) error {
	return errs.Mark(errs.New("backend down"), errs.ErrStoreUnavailable)
}

func TestConfirmStoreFailureSkipsNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	repo := failingRepository{stored: repository.Stored{Row: 1, Request: model.PaymentRequest{
		Identifier: "A1", Amount: decimal.RequireFromString("45"), Status: model.StatusPending,
	}}}
	rec := NewReconciler(repo, notifier, nil, zaptest.NewLogger(t))

	_, err := rec.Confirm(context.Background(), confirmation("A1", "45", model.SourceWebhook))
	assert.True(t, errs.Is(err, errs.ErrStoreUnavailable))
}
