package eventbus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
)

func NewEventBusRouter(logger *logrus.Entry) (*message.Router, error) {
	lEventBus := NewLoggerAdapter(logger.WithField("subsystem-provider", "EventBus - Router"))

	router, err := message.NewRouter(message.RouterConfig{}, lEventBus)
	if err != nil {
		return nil, fmt.Errorf("could not create event bus router: %s", err)
	}

	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	return router, nil
}

// CloudEventHandler decodes the cloud event carried by a message and hands it to the
// function registered for its type. Events without a handler are acknowledged and dropped.
type CloudEventHandler struct {
	Logger      *logrus.Entry
	DispatchMap map[models.EventType]func(*event.Event) error
}

func (h CloudEventHandler) HandleMessage(m *message.Message) error {
	h.Logger.Tracef("received event: %s", m.Payload)

	event, err := helpers.ParseCloudEvent(m.Payload)
	if err != nil {
		err = fmt.Errorf("something went wrong while processing cloud event: %s", err)
		h.Logger.Error(err)
		return err
	}

	handler, ok := h.DispatchMap[models.EventType(event.Type())]
	if !ok {
		h.Logger.Debugf("no handler found for event type: %s", event.Type())
		return nil
	}

	if err := handler(event); err != nil {
		h.Logger.Errorf("something went wrong while handling event %s: %s", event.ID(), err)
		return err
	}

	return nil
}

// Subscribe routes every event type of the dispatch map from sub to handler. The gochannel
// subscriber matches topics exactly, so each type gets its own router handler.
func Subscribe(router *message.Router, sub message.Subscriber, name string, handler CloudEventHandler) {
	for eventType := range handler.DispatchMap {
		router.AddNoPublisherHandler(fmt.Sprintf("%s-%s", eventType, name), string(eventType), sub, handler.HandleMessage)
	}
}
