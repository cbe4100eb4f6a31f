package eventpub

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
)

type ICloudEventPublisher interface {
	PublishCloudEvent(ctx context.Context, eventType models.EventType, subject string, payload interface{})
}

type CloudEventPublisher struct {
	Publisher message.Publisher
	ServiceID string
	Logger    *logrus.Entry
}

func (cemp *CloudEventPublisher) PublishCloudEvent(ctx context.Context, eventType models.EventType, subject string, payload interface{}) {
	event := helpers.BuildCloudEvent(ctx, eventType, subject, payload)

	eventBytes, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		cemp.Logger.Errorf("error while serializing event: %s", marshalErr)
		return
	}

	cemp.Logger.Tracef("publishing event: Type=%s Source=%s \n%s", event.Type(), event.Source(), string(eventBytes))

	msg := message.NewMessage(event.ID(), eventBytes)
	msg.SetContext(ctx)

	if err := cemp.Publisher.Publish(event.Type(), msg); err != nil {
		cemp.Logger.Errorf("could not publish event %s: %s", event.ID(), err)
	}
}

type EventPublisherWithSourceMiddleware struct {
	Publisher ICloudEventPublisher
	Source    string
}

func NewEventPublisherWithSourceMiddleware(publisher ICloudEventPublisher, source string) ICloudEventPublisher {
	return &EventPublisherWithSourceMiddleware{
		Publisher: publisher,
		Source:    source,
	}
}

func (epws *EventPublisherWithSourceMiddleware) PublishCloudEvent(ctx context.Context, eventType models.EventType, subject string, payload interface{}) {
	if ctx.Value(helpers.CtxSource) == nil {
		ctx = context.WithValue(ctx, helpers.CtxSource, epws.Source)
	}
	epws.Publisher.PublishCloudEvent(ctx, eventType, subject, payload)
}

func keySubject(address string) string {
	return "key/" + address
}
