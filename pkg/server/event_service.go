package server

import (
	"github.com/nats-io/nats.go"
	"go.sirus.dev/p2p-comm/duochat/pkg/chat"
	"go.uber.org/zap"
)

// NewEventService will create new instance of EventService
func NewEventService(
	api chat.IChatAPI,
	logger *zap.SugaredLogger,
	nats *nats.EncodedConn,
	eventNamespace string,
) *EventService {
	return &EventService{
		API:            api,
		Logger:         logger,
		Nats:           nats,
		EventNamespace: eventNamespace,
	}
}

// EventService bridge chat events to NATS message bus
type EventService struct {
	API            chat.IChatAPI
	Logger         *zap.SugaredLogger
	Nats           *nats.EncodedConn
	EventNamespace string
}

// Run will wire the chat events channel to NATS and block publishing
// until the channel closes
func (s *EventService) Run() {
	events := make(chan *chat.ChatEvent)
	defer close(events)
	s.API.SetEvents(events)
	s.PublishEvent(events)
}

// PublishEvent will publish chat events to NATS
func (s *EventService) PublishEvent(events chan *chat.ChatEvent) error {
	for event := range events {
		if event == nil {
			continue
		}
		subject := s.EventNamespace + "." + event.Event
		err := s.Nats.Publish(subject, event.Payload)
		if err != nil {
			s.Logger.Error(err)
			continue
		}
	}
	return nil
}
