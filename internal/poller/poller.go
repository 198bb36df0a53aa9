// Package poller asks the payment provider about a payment until it is
// approved or the poll times out, then hands it to the reconciler.
package poller

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/pixrecon/internal/errs"
	"github.com/iurnickita/pixrecon/internal/model"
	"github.com/iurnickita/pixrecon/internal/poller/config"
	"github.com/iurnickita/pixrecon/internal/provider"
)

type Confirmer interface {
	Confirm(ctx context.Context, c model.Confirmation) (model.ConfirmationResult, error)
}

type Poller struct {
	cfg       config.Config
	provider  provider.Client
	confirmer Confirmer
	now       func() time.Time
	zaplog    *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
}

func NewPoller(cfg config.Config, provider provider.Client, confirmer Confirmer, zaplog *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 30 * time.Second
	}
	return &Poller{
		cfg:       cfg,
		provider:  provider,
		confirmer: confirmer,
		now:       time.Now,
		zaplog:    zaplog.Named("poller"),
		tasks:     make(map[string]*task),
	}
}

// Start polls ref once right away and then every interval. A running poll
// of the same ref is cancelled first. Zero interval or timeout use the
// configured defaults.
func (p *Poller) Start(ref string, interval, timeout time.Duration) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errs.Wrap(errs.ErrValidation, "provider payment id is required")
	}
	if interval <= 0 {
		interval = p.cfg.Interval
	}
	if timeout <= 0 {
		timeout = p.cfg.Timeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t := &task{cancel: cancel}

	p.mu.Lock()
	if old, ok := p.tasks[ref]; ok {
		old.cancel()
		p.zaplog.Info("restarting poll", zap.String("ref", ref))
	}
	p.tasks[ref] = t
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(ctx, ref, interval, t)

	p.zaplog.Info("poll started",
		zap.String("ref", ref),
		zap.Duration("interval", interval),
		zap.Duration("timeout", timeout))
	return nil
}

// Stop cancels the poll of ref. Stopping an unknown ref does nothing.
func (p *Poller) Stop(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.tasks[ref]
	if !ok {
		return false
	}
	t.cancel()
	delete(p.tasks, ref)
	p.zaplog.Info("poll stopped", zap.String("ref", ref))
	return true
}

// StopAll cancels every poll and waits for the goroutines to exit.
func (p *Poller) StopAll() {
	p.mu.Lock()
	for ref, t := range p.tasks {
		t.cancel()
		delete(p.tasks, ref)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	refs := make([]string, 0, len(p.tasks))
	for ref := range p.tasks {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (p *Poller) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *Poller) run(ctx context.Context, ref string, interval time.Duration, t *task) {
	defer p.wg.Done()
	defer p.remove(ref, t)
	defer t.cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.check(ctx, ref) {
			return
		}
		select {
		case <-ctx.Done():
			if errs.Is(ctx.Err(), context.DeadlineExceeded) {
				p.zaplog.Info("poll timed out", zap.String("ref", ref))
			}
			return
		case <-ticker.C:
		}
	}
}

// remove drops t from the registry unless a newer task took its place.
func (p *Poller) remove(ref string, t *task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tasks[ref] == t {
		delete(p.tasks, ref)
	}
}

// check returns true once the poll is done.
func (p *Poller) check(ctx context.Context, ref string) bool {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	payment, err := p.provider.GetPayment(callCtx, ref)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		p.zaplog.Warn("provider check failed, retrying on next tick", zap.String("ref", ref), zap.Error(err))
		return false
	}
	if !payment.Approved() {
		p.zaplog.Debug("payment not approved yet", zap.String("ref", ref), zap.String("status", payment.Status))
		return false
	}

	reference := payment.Reference()
	if reference == "" {
		p.zaplog.Warn("approved payment carries no reference", zap.String("ref", ref))
		return true
	}

	confirmedAt := p.now()
	if payment.DateApproved != nil {
		confirmedAt = *payment.DateApproved
	}
	paymentID := string(payment.ID)
	if paymentID == "" {
		paymentID = ref
	}

	res, err := p.confirmer.Confirm(ctx, model.Confirmation{
		Identifier:        reference,
		ObservedAmount:    payment.TransactionAmount,
		ProviderPaymentID: paymentID,
		ConfirmedAt:       confirmedAt,
		Source:            model.SourcePoll,
	})
	if err != nil {
		p.zaplog.Error("confirmation from poll failed",
			zap.String("ref", ref),
			zap.String("identifier", reference),
			zap.Error(err))
		return true
	}
	p.zaplog.Info("poll finished",
		zap.String("ref", ref),
		zap.String("identifier", reference),
		zap.String("outcome", string(res.Outcome)))
	return true
}
