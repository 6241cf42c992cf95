package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// AlertDispatcher drains the alert outbox to a publisher with retry and
// dead-lettering. It runs outside the append path: a slow or failing sink
// never blocks writes or verification.
type AlertDispatcher struct {
	repo      ports.AlertOutboxRepository
	publisher ports.AlertPublisher
	interval  time.Duration
	batchSize int
	maxRetry  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	deliverSuccessTotal atomic.Int64
	deliverFailureTotal atomic.Int64
	deliverDeadTotal    atomic.Int64
}

type AlertDispatcherMetrics struct {
	DeliverSuccessTotal int64
	DeliverFailureTotal int64
	DeliverDeadTotal    int64
}

func NewAlertDispatcher(repo ports.AlertOutboxRepository, publisher ports.AlertPublisher, interval time.Duration, batchSize int) *AlertDispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &AlertDispatcher{repo: repo, publisher: publisher, interval: interval, batchSize: batchSize, maxRetry: 5}
}

func (d *AlertDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *AlertDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *AlertDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.DispatchBatch(ctx); err != nil {
			log.Printf("alert dispatch batch error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchBatch delivers one batch of pending alerts. Exported so operators
// (and tests) can force a drain without waiting for the ticker.
func (d *AlertDispatcher) DispatchBatch(ctx context.Context) error {
	alerts, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		var envelope domain.AlertEnvelope
		if err := json.Unmarshal(alert.PayloadJSON, &envelope); err != nil {
			if markErr := d.markFailure(ctx, alert, fmt.Sprintf("decode payload: %v", err)); markErr != nil {
				return markErr
			}
			d.deliverFailureTotal.Add(1)
			continue
		}

		if err := d.publisher.Publish(ctx, envelope); err != nil {
			if markErr := d.markFailure(ctx, alert, err.Error()); markErr != nil {
				return markErr
			}
			d.deliverFailureTotal.Add(1)
			continue
		}

		if err := d.repo.MarkDelivered(ctx, alert.ID); err != nil {
			return err
		}
		d.deliverSuccessTotal.Add(1)
	}

	return nil
}

func (d *AlertDispatcher) markFailure(ctx context.Context, alert domain.AlertEvent, errMsg string) error {
	attempts := alert.Attempts + 1
	if attempts >= d.maxRetry {
		if err := d.repo.MarkDead(ctx, alert.ID, attempts, errMsg); err != nil {
			return err
		}
		d.deliverDeadTotal.Add(1)
		return nil
	}
	next := time.Now().UTC().Add(backoffDuration(attempts)).Format(time.RFC3339Nano)
	return d.repo.MarkFailed(ctx, alert.ID, attempts, next, errMsg)
}

func (d *AlertDispatcher) Metrics() AlertDispatcherMetrics {
	return AlertDispatcherMetrics{
		DeliverSuccessTotal: d.deliverSuccessTotal.Load(),
		DeliverFailureTotal: d.deliverFailureTotal.Load(),
		DeliverDeadTotal:    d.deliverDeadTotal.Load(),
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
