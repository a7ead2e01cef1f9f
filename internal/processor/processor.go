// Package processor implements the transaction processor (§4.3): a
// bounded worker pool that drains the priority queue, broadcasts each
// transaction through the blockchain manager, and drives its status
// through the pending → processing → (retrying → processing)* →
// (completed|failed) lifecycle.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/airchainpay/relay/internal/queue"
	"github.com/airchainpay/relay/internal/storage"
)

// Broadcaster is the subset of the blockchain manager the processor
// depends on, kept narrow so tests can supply a fake.
type Broadcaster interface {
	SendTransaction(ctx context.Context, qtx *queue.Transaction) (string, error)
}

// Config carries the worker pool's tunables (§4.3 "Configuration").
type Config struct {
	MaxConcurrentWorkers int
	MaxQueueSize         int
	DefaultRetryCount    int
	DefaultRetryDelay    time.Duration
	MaxRetryDelay        time.Duration
	TransactionTimeout   time.Duration
	// UseExponentialBackoff enables the spec's MAY clause: exponential
	// backoff bounded by MaxRetryDelay instead of a fixed retry delay.
	UseExponentialBackoff bool
}

// DefaultConfig returns the literal defaults named in §4.3.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentWorkers: 6,
		MaxQueueSize:         1000,
		DefaultRetryCount:    3,
		DefaultRetryDelay:    5 * time.Second,
		MaxRetryDelay:        60 * time.Second,
		TransactionTimeout:   5 * time.Minute,
	}
}

// Processor owns the queue, the workers draining it, and cooperative
// shutdown via a running flag (§4.3 "Shutdown").
type Processor struct {
	cfg     Config
	q       *queue.Queue
	chain   Broadcaster
	store   storage.Store
	log     *zap.Logger
	mu      sync.RWMutex
	running bool
}

func New(cfg Config, chain Broadcaster, store storage.Store, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:   cfg,
		q:     queue.New(cfg.MaxQueueSize),
		chain: chain,
		store: store,
		log:   log,
	}
}

// Enqueue applies the §4.3 "Enqueue contract": queue-full fails
// synchronously with queue.ErrQueueFull so the caller can surface 503.
func (p *Processor) Enqueue(tx *queue.Transaction) error {
	if tx.MaxRetries <= 0 {
		tx.MaxRetries = p.cfg.DefaultRetryCount
	}
	if tx.RetryDelay <= 0 {
		tx.RetryDelay = p.cfg.DefaultRetryDelay
	}
	if tx.QueuedAt.IsZero() {
		tx.QueuedAt = time.Now().UTC()
	}
	if err := p.q.Enqueue(tx); err != nil {
		if _, ok := p.store.GetTransaction(tx.ID); ok {
			_ = p.store.UpdateTransactionStatus(tx.ID, storage.StatusQueueFailed, "", "queue_full")
		}
		return err
	}
	return nil
}

// QueueLen reports the current queue depth, used by health checks and
// metrics.
func (p *Processor) QueueLen() int { return p.q.Len() }

// Run starts MaxConcurrentWorkers worker goroutines and blocks until ctx
// is cancelled, at which point it sets running=false and waits for
// in-flight attempts to finish their current iteration.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	workers := p.cfg.MaxConcurrentWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			p.workerLoop(ctx, id)
			return nil
		})
	}

	<-ctx.Done()
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return g.Wait()
}

func (p *Processor) isRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// workerLoop implements the §4.3 worker loop pseudocode exactly.
func (p *Processor) workerLoop(ctx context.Context, workerID int) {
	log := p.log.With(zap.Int("worker", workerID))
	for {
		if ctx.Err() != nil || !p.isRunning() {
			return
		}
		tx, ok := p.q.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.process(ctx, tx, log)
	}
}

func (p *Processor) process(ctx context.Context, tx *queue.Transaction, log *zap.Logger) {
	p.setStatus(tx.ID, storage.StatusProcessing, "", "")

	txCtx, cancel := context.WithTimeout(ctx, p.txTimeout())
	defer cancel()

	var lastErr error
	maxAttempts := tx.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = p.cfg.DefaultRetryCount
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		hash, err := p.chain.SendTransaction(txCtx, tx)
		if err == nil {
			p.setStatus(tx.ID, storage.StatusCompleted, hash, "")
			return
		}
		lastErr = err
		log.Warn("broadcast attempt failed",
			zap.String("tx_id", tx.ID), zap.Int("attempt", attempt+1), zap.Error(err))

		if attempt+1 < maxAttempts {
			p.setStatus(tx.ID, storage.StatusRetrying, "", fmt.Sprintf("attempt %d failed: %v", attempt+1, err))
			select {
			case <-txCtx.Done():
				p.setStatus(tx.ID, storage.StatusFailed, "", fmt.Sprintf("failed after %d attempts: timeout", attempt+1))
				return
			case <-time.After(p.retryDelay(tx, attempt)):
			}
		}
	}

	p.setStatus(tx.ID, storage.StatusFailed, "", fmt.Sprintf("failed after %d attempts: %v", maxAttempts, lastErr))
}

// retryDelay returns the fixed per-transaction delay, or — when
// UseExponentialBackoff is set — an exponential delay bounded by
// MaxRetryDelay (§4.3's "implementers MAY" clause), computed by the same
// backoff.ExponentialBackOff used by the RPC client's retry loop
// (internal/blockchain/rpc/http.go) rather than a hand-rolled power curve.
func (p *Processor) retryDelay(tx *queue.Transaction, attempt int) time.Duration {
	base := tx.RetryDelay
	if base <= 0 {
		base = p.cfg.DefaultRetryDelay
	}
	if !p.cfg.UseExponentialBackoff {
		return base
	}

	maxInterval := p.cfg.MaxRetryDelay
	if maxInterval <= 0 {
		maxInterval = 24 * time.Hour
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.MaxInterval = maxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	delay := bo.NextBackOff()
	for i := 0; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	if delay == backoff.Stop {
		delay = maxInterval
	}
	return delay
}

func (p *Processor) txTimeout() time.Duration {
	if p.cfg.TransactionTimeout > 0 {
		return p.cfg.TransactionTimeout
	}
	return 5 * time.Minute
}

func (p *Processor) setStatus(id string, status storage.Status, txHash, errMsg string) {
	if err := p.store.UpdateTransactionStatus(id, status, txHash, errMsg); err != nil {
		p.log.Error("failed to persist status transition",
			zap.String("tx_id", id), zap.String("status", string(status)), zap.Error(err))
	}
}
