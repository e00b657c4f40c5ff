// Package poller reconciles transactions that are still waiting on the
// processor. RunOnce is a standalone pass taking a clock; Start drives it on
// a ticker.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
	"github.com/rutavity/payments/internal/telemetry"
)

// Reconciler is the part of the payment service the poller drives.
type Reconciler interface {
	Pollable(ctx context.Context, filter payment.PollFilter) ([]domain.Transaction, error)
	Sync(ctx context.Context, reference string, now time.Time) (*payment.Outcome, error)
	Expire(ctx context.Context, reference string) (*payment.Outcome, error)
}

// Config holds poller configuration
type Config struct {
	// PollerID identifies this instance in logs
	PollerID string

	// Interval is how often a pass runs
	Interval time.Duration

	// Threshold skips transactions polled more recently than this
	Threshold time.Duration

	// Staleness is how long a transaction may wait before it is expired
	Staleness time.Duration

	// BatchSize caps the transactions handled per pass
	BatchSize int

	// Concurrency caps simultaneous processor queries
	Concurrency int

	// Timeout bounds a single transaction's reconciliation
	Timeout time.Duration
}

// Report summarizes one pass.
type Report struct {
	Checked int
	Changed int
	Expired int
	Failed  int
}

// Poller converges pending transactions to a terminal state.
type Poller struct {
	config Config
	rec    Reconciler
	now    func() time.Time
	logger *slog.Logger
}

// New creates a poller. Zero values fall back to the documented defaults.
func New(rec Reconciler, config Config, now func() time.Time, logger *slog.Logger) *Poller {
	if config.PollerID == "" {
		config.PollerID = fmt.Sprintf("poller-%s", uuid.New().String()[:8])
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Threshold <= 0 {
		config.Threshold = 5 * time.Minute
	}
	if config.Staleness <= 0 {
		config.Staleness = 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		config: config,
		rec:    rec,
		now:    now,
		logger: logger.With("component", "poller", "poller_id", config.PollerID),
	}
}

// Start runs a pass every interval until the context is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller starting",
		"interval", p.config.Interval,
		"threshold", p.config.Threshold,
		"staleness", p.config.Staleness,
		"concurrency", p.config.Concurrency,
	)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shutting down")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.RunOnce(ctx, p.now()); err != nil {
				p.logger.Error("poll pass failed", "error", err)
			}
		}
	}
}

// RunOnce reconciles one batch as of now. Only listing failures are
// returned; per-transaction errors are logged and counted.
func (p *Poller) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	started := time.Now()

	txs, err := p.rec.Pollable(ctx, payment.PollFilter{
		States:       []domain.TransactionState{domain.StatePending, domain.StateAuthorized},
		// Offline pending transactions wait for the cashier, not a processor.
		Methods:      payment.ExternalMethods(),
		PolledBefore: now.Add(-p.config.Threshold),
		Limit:        p.config.BatchSize,
	})
	if err != nil {
		return Report{}, fmt.Errorf("list pollable transactions: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Checked: len(txs)}
	)
	count := func(f func(r *Report)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i := range txs {
		tx := txs[i]
		g.Go(func() error {
			txCtx, cancel := context.WithTimeout(gctx, p.config.Timeout)
			defer cancel()

			out, err := p.reconcile(txCtx, &tx, now)
			switch {
			case err != nil:
				p.logger.Error("reconcile failed",
					"reference", tx.Reference,
					"state", tx.State,
					"error", err,
				)
				count(func(r *Report) { r.Failed++ })
			case out != nil && out.Changed:
				count(func(r *Report) {
					r.Changed++
					if out.Event == payment.EventExpire {
						r.Expired++
					}
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	telemetry.Payments.PollRun(started, report.Checked, report.Failed, report.Expired)
	p.logger.Info("poll pass complete",
		"checked", report.Checked,
		"changed", report.Changed,
		"expired", report.Expired,
		"failed", report.Failed,
		"duration", time.Since(started),
	)
	return report, nil
}

// reconcile queries one transaction and expires it once it has waited past
// the staleness horizon without a final answer.
func (p *Poller) reconcile(ctx context.Context, tx *domain.Transaction, now time.Time) (*payment.Outcome, error) {
	out, err := p.rec.Sync(ctx, tx.Reference, now)
	if err == nil && out.To.IsTerminal() {
		return out, nil
	}

	if now.Sub(tx.PendingSince()) < p.config.Staleness {
		return out, err
	}
	if err != nil {
		p.logger.Warn("query failed on stale transaction, expiring",
			"reference", tx.Reference,
			"error", err,
		)
	}
	return p.rec.Expire(ctx, tx.Reference)
}
