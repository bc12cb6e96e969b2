package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/caseflow/internal/application/port"
	"go.uber.org/zap"
)

// OutboxRelayConfig holds configuration for the outbox relay
type OutboxRelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// DefaultOutboxRelayConfig returns default configuration
func DefaultOutboxRelayConfig() OutboxRelayConfig {
	return OutboxRelayConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
	}
}

// RelayStats is a point-in-time view of relay progress
type RelayStats struct {
	Published   int
	Failed      int
	DeadLetters int
	LastRun     time.Time
	LastError   error
}

// OutboxRelay moves committed events from the outbox to a sink.
// Delivery is at-least-once: a crash between Emit and MarkPublished
// re-sends the event on the next pass.
type OutboxRelay struct {
	config OutboxRelayConfig
	outbox port.OutboxRepository
	sink   port.EventSink
	logger *zap.Logger

	mu        sync.RWMutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	stats     RelayStats

	// passMu serializes passes between the poll loop and RelayOnce callers
	passMu sync.Mutex
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(config OutboxRelayConfig, outbox port.OutboxRepository, sink port.EventSink, logger *zap.Logger) *OutboxRelay {
	defaults := DefaultOutboxRelayConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	return &OutboxRelay{
		config: config,
		outbox: outbox,
		sink:   sink,
		logger: logger,
	}
}

// Name returns the worker name for identification
func (r *OutboxRelay) Name() string {
	return "OutboxRelay"
}

// Start begins the polling loop
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("outbox relay already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.isRunning = true
	r.mu.Unlock()

	r.logger.Info("OutboxRelay started",
		zap.Duration("poll_interval", r.config.PollInterval),
		zap.Int("batch_size", r.config.BatchSize))

	go r.pollLoop(runCtx)
	return nil
}

// Stop cancels the loop and waits for the current pass to finish
func (r *OutboxRelay) Stop() error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	stats := r.Stats()
	r.logger.Info("OutboxRelay stopped",
		zap.Int("published", stats.Published),
		zap.Int("failed", stats.Failed))
	return nil
}

// Stats returns a copy of the relay counters
func (r *OutboxRelay) Stats() RelayStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *OutboxRelay) pollLoop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Relay loop context cancelled")
			return

		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("Outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce publishes one batch of pending events in seq order and returns
// how many were published. A failed emit is recorded on the message and ends
// the pass, so later events wait until it succeeds or is dead-lettered after
// MaxAttempts.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	messages, err := r.outbox.FetchPending(ctx, r.config.BatchSize)
	if err != nil {
		r.record(0, 0, 0, err)
		return 0, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	var published, failed, dead int
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}

		if emitErr := r.sink.Emit(ctx, msg.Event); emitErr != nil {
			failed++
			if err := r.outbox.MarkFailed(ctx, msg.Seq, emitErr.Error()); err != nil {
				r.record(published, failed, dead, err)
				return published, fmt.Errorf("failed to record delivery failure: %w", err)
			}

			if msg.Attempts+1 >= r.config.MaxAttempts {
				dead++
				r.logger.Error("Outbox event dead-lettered",
					zap.Int64("seq", msg.Seq),
					zap.String("event_id", msg.Event.ID),
					zap.String("event_type", string(msg.Event.Type)),
					zap.Int("attempts", msg.Attempts+1),
					zap.Error(emitErr))
				if err := r.outbox.MarkPublished(ctx, msg.Seq); err != nil {
					r.record(published, failed, dead, err)
					return published, fmt.Errorf("failed to dead-letter event: %w", err)
				}
				continue
			}

			r.logger.Warn("Outbox event delivery failed",
				zap.Int64("seq", msg.Seq),
				zap.String("event_id", msg.Event.ID),
				zap.Int("attempts", msg.Attempts+1),
				zap.Error(emitErr))
			break
		}

		if err := r.outbox.MarkPublished(ctx, msg.Seq); err != nil {
			r.record(published, failed, dead, err)
			return published, fmt.Errorf("failed to mark event published: %w", err)
		}
		published++
	}

	if published > 0 || failed > 0 {
		r.logger.Info("Outbox relay pass completed",
			zap.Int("published", published),
			zap.Int("failed", failed),
			zap.Int("dead_lettered", dead))
	}

	r.record(published, failed, dead, nil)
	return published, nil
}

func (r *OutboxRelay) record(published, failed, dead int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Published += published
	r.stats.Failed += failed
	r.stats.DeadLetters += dead
	r.stats.LastRun = time.Now()
	r.stats.LastError = err
}
