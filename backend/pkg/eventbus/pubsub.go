package eventbus

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

// NewGoChannelPubSub returns an in-process publisher and the subscriber reading from it.
// Both halves are the same gochannel instance: events never leave the process.
func NewGoChannelPubSub(logger *logrus.Entry) (message.Publisher, message.Subscriber) {
	lEventBus := NewLoggerAdapter(logger.WithField("subsystem-provider", "GoChannel - PubSub"))
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, lEventBus)

	return pubSub, pubSub
}
