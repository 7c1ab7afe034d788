package service

import (
	"context"

	"clinical-coding-be/internal/pkg/logger"
	"clinical-coding-be/pkg/events"
	pktNats "clinical-coding-be/pkg/nats" // Renamed to avoid collision
)

// EventDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type EventDelivery interface {
	BroadcastEvent(evt events.Event)
}

// EventFeedService bridges the NATS event stream into the live observer feed.
// With a shared durable consumer each event is pulled by exactly one instance;
// the hub's Redis fanout carries it to observers on the others.
type EventFeedService struct {
	subscriber *pktNats.Subscriber
	delivery   EventDelivery
	logger     logger.ILogger
}

func NewEventFeedService(sub *pktNats.Subscriber, delivery EventDelivery, log logger.ILogger) *EventFeedService {
	return &EventFeedService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *EventFeedService) Start() {
	if s.subscriber == nil {
		s.logger.Warn("EventFeedService", "NATS subscriber not configured, event feed disabled", nil)
		return
	}

	err := s.subscriber.Subscribe("events.coding.>", "event-feed-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("EventFeedService", "Failed to start event feed subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("EventFeedService", "Event feed started, listening to events.coding.>", nil)
}

func (s *EventFeedService) handleEvent(ctx context.Context, event events.Event) error {
	if s.delivery != nil {
		s.delivery.BroadcastEvent(event)
	}
	return nil
}
