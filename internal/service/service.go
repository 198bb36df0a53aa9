package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/identifier"
	"github.com/iurnickita/pixrecon/internal/issuer"
	"github.com/iurnickita/pixrecon/internal/ledger"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/notify"
	"github.com/iurnickita/pixrecon/internal/poller"
	"github.com/iurnickita/pixrecon/internal/provider"
	"github.com/iurnickita/pixrecon/internal/reconciler"
	"github.com/iurnickita/pixrecon/internal/repository"
	"github.com/iurnickita/pixrecon/internal/service/config"
	"github.com/iurnickita/pixrecon/internal/store"
	"github.com/iurnickita/pixrecon/internal/webhook"
)

type Service interface {
	Issue(ctx context.Context, params issuer.IssueParams) (model.PaymentRequest, error)
	Get(ctx context.Context, identifier string) (model.PaymentRequest, error)
	Pending(ctx context.Context, period string, refresh bool) ([]model.PaymentRequest, error)
	Confirm(ctx context.Context, c model.Confirmation) (model.ConfirmationResult, error)
	Reject(ctx context.Context, identifier, reason, operator string) (model.ConfirmationResult, error)
	StartPoll(ref string, interval, timeout time.Duration) error
	StopPoll(ref string) bool
	Polls() []string
	Webhook(ctx context.Context, body []byte, signature string) webhook.Response
	Close()
}

type service struct {
	cfg        config.Config
	repo       *repository.Repository
	issuer     *issuer.Issuer
	reconciler *reconciler.Reconciler
	poller     *poller.Poller
	ingestor   *webhook.Ingestor
	zaplog     *zap.Logger
}

type Option func(*deps)

type deps struct {
	provider provider.Client
	notifier notify.Notifier
	now      func() time.Time
	ledger   []ledger.Option
}

// WithProvider replaces the HTTP provider client.
func WithProvider(p provider.Client) Option {
	return func(d *deps) { d.provider = p }
}

func WithNotifier(n notify.Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(d *deps) { d.ledger = append(d.ledger, opts...) }
}

// NewService wires the ledger client, issuer, reconciler, poller and webhook
// ingestor around backend.
func NewService(ctx context.Context, cfg config.Config, backend store.Backend, zaplog *zap.Logger, opts ...Option) (Service, error) {
	d := deps{now: time.Now}
	for _, opt := range opts {
		opt(&d)
	}
	if d.provider == nil {
		d.provider = provider.NewClient(cfg.Provider)
	}
	if d.notifier == nil {
		d.notifier = notify.NewNotifier(cfg.Notify, zaplog)
	}

	ledgerOpts := []ledger.Option{ledger.WithClock(d.now)}
	if cfg.Ledger.RedisAddr != "" {
		cache, err := ledger.NewRedisCache(ctx, cfg.Ledger.RedisAddr, cfg.Ledger.RedisStaleTTL, zaplog)
		if err != nil {
			// без redis работаем с кэшем в памяти
			zaplog.Warn("redis cache unavailable, using in-process cache",
				zap.String("addr", cfg.Ledger.RedisAddr), zap.Error(err))
		} else {
			ledgerOpts = append(ledgerOpts, ledger.WithCache(cache))
		}
	}
	ledgerOpts = append(ledgerOpts, d.ledger...)

	client := ledger.NewClient(cfg.Ledger, backend, zaplog, ledgerOpts...)
	repo := repository.NewRepository(client, cfg.Ledger.Table)
	rec := reconciler.NewReconciler(repo, d.notifier, d.now, zaplog)

	return &service{
		cfg:        cfg,
		repo:       repo,
		issuer:     issuer.NewIssuer(repo, identifier.NewGenerator(nil), d.now, zaplog),
		reconciler: rec,
		poller:     poller.NewPoller(cfg.Poller, d.provider, rec, zaplog),
		ingestor:   webhook.NewIngestor(cfg.Webhook, d.provider, rec, zaplog),
		zaplog:     zaplog.Named("service"),
	}, nil
}

func (s *service) Issue(ctx context.Context, params issuer.IssueParams) (model.PaymentRequest, error) {
	return s.issuer.Issue(ctx, params)
}

// Get reads through the cache: an operator looking a request up wants the
// current status.
func (s *service) Get(ctx context.Context, id string) (model.PaymentRequest, error) {
	id = strings.TrimSpace(id)
	if err := identifier.Check(id); err != nil {
		return model.PaymentRequest{}, err
	}
	stored, err := s.repo.Find(ctx, id, true)
	if err != nil {
		return model.PaymentRequest{}, err
	}
	return stored.Request, nil
}

// Pending may be up to the cache TTL old unless refresh is set. Writes do
// not invalidate the cache.
func (s *service) Pending(ctx context.Context, period string, refresh bool) ([]model.PaymentRequest, error) {
	if period != "" && !identifier.ValidPeriod(period) {
		return nil, errs.Wrapf(identifier.ErrInvalidPeriod, "period %q", period)
	}
	return s.repo.Pending(ctx, period, refresh)
}

// Confirm is the manual path. Mistyped period-scoped identifiers are
// rejected before the ledger is read.
func (s *service) Confirm(ctx context.Context, c model.Confirmation) (model.ConfirmationResult, error) {
	c.Identifier = strings.TrimSpace(c.Identifier)
	if err := identifier.Check(c.Identifier); err != nil {
		return model.ConfirmationResult{}, err
	}
	if !c.ObservedAmount.IsPositive() {
		return model.ConfirmationResult{}, errs.Wrap(errs.ErrInvalidAmount, "paid amount must be positive")
	}
	if c.Source == "" {
		c.Source = model.SourceManual
	}
	return s.reconciler.Confirm(ctx, c)
}

func (s *service) Reject(ctx context.Context, id, reason, operator string) (model.ConfirmationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return model.ConfirmationResult{}, errs.Wrap(errs.ErrValidation, "reason is required")
	}
	return s.reconciler.Reject(ctx, id, reason, operator)
}

func (s *service) StartPoll(ref string, interval, timeout time.Duration) error {
	return s.poller.Start(ref, interval, timeout)
}

func (s *service) StopPoll(ref string) bool {
	return s.poller.Stop(ref)
}

func (s *service) Polls() []string {
	return s.poller.Active()
}

func (s *service) Webhook(ctx context.Context, body []byte, signature string) webhook.Response {
	return s.ingestor.Ingest(ctx, body, signature)
}

// Close stops every running poll.
func (s *service) Close() {
	active := s.poller.Count()
	s.poller.StopAll()
	s.zaplog.Info("service stopped", zap.Int("pollsStopped", active))
}
