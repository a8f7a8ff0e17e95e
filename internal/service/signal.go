package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/backline"
)

// SignalService bridges committed writes to realtime subscribers over redis
// pub/sub. Delivery is at-least-once; events carry the entity version so
// consumers can drop duplicates and reorders.
type SignalService struct {
	rdb         *redis.Client
	subscribers prometheus.Gauge
}

func NewSignalService(redisClient *redis.Client, registry prometheus.Registerer) *SignalService {
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backline_realtime_subscribers",
		Help: "Currently connected realtime subscriber sessions",
	})
	if registry != nil {
		registry.MustRegister(subscribers)
	}
	return &SignalService{
		rdb:         redisClient,
		subscribers: subscribers,
	}
}

func (s *SignalService) Publish(ctx context.Context, topic string, event backline.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, topic, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime serves one subscriber session. Topic lists arriving on input
// replace the session's subscription set; decoded events flow to output
// until the context ends or input closes.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- backline.Event) {
	s.subscribers.Inc()
	defer s.subscribers.Dec()

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	messages := pubsub.Channel()
	var topics []string

	for {
		select {
		case <-ctx.Done():
			return
		case requested, ok := <-input:
			if !ok {
				return
			}
			if len(topics) > 0 {
				if err := pubsub.Unsubscribe(ctx, topics...); err != nil {
					slog.ErrorContext(ctx, "failed to unsubscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
			topics = requested
			if len(topics) > 0 {
				if err := pubsub.Subscribe(ctx, topics...); err != nil {
					slog.ErrorContext(ctx, "failed to subscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event backline.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "failed to decode event",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
