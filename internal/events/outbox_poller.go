package events

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/trinislearning/hit339/internal/logger"
	"github.com/trinislearning/hit339/internal/metrics"
	"github.com/trinislearning/hit339/internal/repository"
)

const defaultBatchSize = 100

// OutboxPoller moves committed events from the outbox table to the broker.
// Events stay unprocessed until the broker accepts them, so delivery is at least once.
type OutboxPoller struct {
	repo      repository.OutboxRepository
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	eventTick time.Duration
	timeout   time.Duration
	batchSize int
	log       logrus.FieldLogger
}

func NewOutboxPoller(repo repository.OutboxRepository, publisher Publisher, eventTick time.Duration, log logrus.FieldLogger) *OutboxPoller {
	if eventTick <= 0 {
		eventTick = time.Second
	}
	p := &OutboxPoller{
		repo:      repo,
		publisher: publisher,
		eventTick: eventTick,
		timeout:   5 * time.Second,
		batchSize: defaultBatchSize,
		log:       log,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "outbox-publisher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
	return p
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.ProcessOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were marked processed.
func (p *OutboxPoller) ProcessOnce(ctx context.Context) int {
	log := logger.FromContext(ctx, p.log)

	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		log.WithError(err).Error("failed to fetch outbox events")
		return 0
	}

	processed := 0
	for _, event := range events {
		_, err := p.breaker.Execute(func() (struct{}, error) {
			pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()
			return struct{}{}, p.publisher.Publish(pubCtx, event)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Debug("broker circuit open, deferring remaining events")
			return processed
		}
		metrics.RecordEventPublished(event.EventType, err)
		if err != nil {
			log.WithError(err).WithField("event_id", event.ID).Warn("failed to publish event")
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.WithError(err).WithField("event_id", event.ID).Error("failed to mark event as processed")
			continue
		}
		processed++
	}
	return processed
}
