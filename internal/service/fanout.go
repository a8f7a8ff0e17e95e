package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/backline"
	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/render"
	"github.com/totegamma/backline/internal/usecase"
)

// FanoutWorkers bounds the parallelism of one notification broadcast.
const FanoutWorkers = 4

// FanoutService materializes per-recipient notification records. Each
// recipient send is independent: a failed send is reported in its result
// and never blocks or fails its siblings.
type FanoutService struct {
	repo      usecase.NotificationRepository
	signal    usecase.Publisher
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewFanoutService(
	repo usecase.NotificationRepository,
	signal usecase.Publisher,
	registry prometheus.Registerer,
) *FanoutService {
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backline_notifications_delivered_total",
		Help: "Notifications materialized per type",
	}, []string{"type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backline_notifications_failed_total",
		Help: "Notification materialization failures per type",
	}, []string{"type"})
	if registry != nil {
		registry.MustRegister(delivered, failed)
	}
	return &FanoutService{
		repo:      repo,
		signal:    signal,
		delivered: delivered,
		failed:    failed,
	}
}

// Deliver broadcasts one batch with bounded parallelism and returns one
// result per recipient, in recipient order.
func (s *FanoutService) Deliver(ctx context.Context, batch usecase.FanoutBatch) []usecase.FanoutResult {
	results := make([]usecase.FanoutResult, len(batch.Recipients))

	var wg sync.WaitGroup
	sem := make(chan struct{}, FanoutWorkers)

	for i, recipient := range batch.Recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, recipient string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.send(ctx, batch, recipient)
		}(i, recipient)
	}
	wg.Wait()

	for _, result := range results {
		if result.Err != nil {
			s.failed.WithLabelValues(string(batch.Type)).Inc()
		} else {
			s.delivered.WithLabelValues(string(batch.Type)).Inc()
		}
	}

	return results
}

func (s *FanoutService) send(ctx context.Context, batch usecase.FanoutBatch, recipient string) usecase.FanoutResult {
	text := render.Render(render.Input{
		Type:       batch.Type,
		SenderName: batch.SenderName,
		EntityType: batch.EntityType,
		EntityName: batch.EntityName,
	})

	notification := domain.Notification{
		ID:             uuid.New().String(),
		Type:           batch.Type,
		Sender:         batch.Sender,
		Recipient:      recipient,
		Title:          text.Title,
		Message:        text.Message,
		DedupeKey:      DedupeKey(batch.Type, recipient, batch.EntityID, batch.Sender),
		EntityID:       batch.EntityID,
		ActionRequired: batch.Type.ActionRequired(),
		ExpiresAt:      batch.ExpiresAt,
		CreatedAt:      time.Now().UTC(),
		Payload: map[string]any{
			"entityID":   batch.EntityID,
			"entityType": string(batch.EntityType),
			"entityName": batch.EntityName,
		},
	}

	created, err := s.repo.Create(ctx, notification)
	if err != nil {
		return usecase.FanoutResult{Recipient: recipient, Err: err}
	}

	event := backline.Event{
		Topic:     backline.AccountTopic(recipient),
		Type:      domain.EventNotificationAdded,
		EntityID:  batch.EntityID,
		Timestamp: time.Now().UTC(),
		Body:      created,
	}
	if err := s.signal.Publish(ctx, event.Topic, event); err != nil {
		// The record is durable; a lost realtime nudge is acceptable.
		return usecase.FanoutResult{Recipient: recipient, NotificationID: created.ID}
	}

	return usecase.FanoutResult{Recipient: recipient, NotificationID: created.ID}
}

// DedupeKey collapses retried sends of the same logical notification. It is
// stable across processes: identical event coordinates always hash the same.
func DedupeKey(t domain.NotificationType, recipient, entityID string, sender *string) string {
	from := ""
	if sender != nil {
		from = *sender
	}
	sum := xxh3.HashString(string(t) + "|" + recipient + "|" + entityID + "|" + from)
	return fmt.Sprintf("%016x", sum)
}
