package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/jakehl/goid"
	"github.com/leapcode/keymanager/core/pkg/models"
)

func BuildCloudEvent(ctx context.Context, eventType models.EventType, subject string, payload interface{}) event.Event {
	event := cloudevents.NewEvent()

	event.SetSpecVersion("1.0")
	event.SetTime(time.Now())
	event.SetID(goid.NewV4UUID().String())
	event.SetType(string(eventType))
	event.SetData(cloudevents.ApplicationJSON, payload)

	if eventSource, ok := ctx.Value(CtxSource).(string); ok && eventSource != "" {
		event.SetSource(fmt.Sprintf("source://keymanager/%s", eventSource))
	} else {
		event.SetSource("source://keymanager")
	}

	if subject != "" {
		event.SetSubject(subject)
	}

	return event
}

func ParseCloudEvent(msg []byte) (*event.Event, error) {
	var event cloudevents.Event
	err := json.Unmarshal(msg, &event)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func GetEventBody[E any](cloudEvent *event.Event) (*E, error) {
	var elem *E
	if cloudEvent == nil {
		return nil, fmt.Errorf("cloud event is null")
	}

	if cloudEvent.Data() == nil {
		return nil, fmt.Errorf("cloud event data is null")
	}

	err := json.Unmarshal(cloudEvent.Data(), &elem)
	return elem, err
}
