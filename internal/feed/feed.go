// Package feed publishes index changes to live-reload consumers over an
// in-process watermill pub/sub.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/parser"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// DefaultTopic carries every document change.
const DefaultTopic = "content.changes"

// ErrClosed is returned by operations on a closed feed.
var ErrClosed = errors.New("feed: closed")

// Options configures a Feed.
type Options struct {
	Topic string
	// Buffer is the per-subscriber channel capacity. Events for a subscriber
	// whose buffer is full are dropped.
	Buffer int
	Logger interfaces.Logger
}

// Feed is a change publisher and subscriber backed by watermill gochannel.
// Publish returns once every current subscriber has taken or dropped the
// event, so events are observed in publish order and a subscriber that stops
// reading never stalls the publisher.
type Feed struct {
	pubsub  *gochannel.GoChannel
	topic   string
	buffer  int
	logger  interfaces.Logger
	closed  atomic.Bool
	dropped atomic.Uint64
}

var (
	_ interfaces.ChangePublisher  = (*Feed)(nil)
	_ interfaces.ChangeSubscriber = (*Feed)(nil)
)

func New(opts Options) *Feed {
	logger := logging.Ensure(opts.Logger)
	topic := opts.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		}, newLoggerAdapter(logger)),
		topic:  topic,
		buffer: buffer,
		logger: logger,
	}
}

// Publish sends event to every subscriber.
func (f *Feed) Publish(ctx context.Context, event interfaces.ChangeEvent) error {
	if f.closed.Load() {
		return ErrClosed
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("feed: encode %s: %w", event.ID, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	msg.Metadata.Set("id", event.ID)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	if err := f.pubsub.Publish(f.topic, msg); err != nil {
		return fmt.Errorf("feed: publish %s: %w", event.ID, err)
	}
	return nil
}

// Subscribe returns events published after the call. The channel closes when
// ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context) (<-chan interfaces.ChangeEvent, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	messages, err := f.pubsub.Subscribe(ctx, f.topic)
	if err != nil {
		return nil, fmt.Errorf("feed: subscribe: %w", err)
	}

	out := make(chan interfaces.ChangeEvent, f.buffer)
	go func() {
		defer close(out)
		for msg := range messages {
			event, err := decode(msg.Payload)
			if err != nil {
				f.logger.Warn("feed.decode.failed", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				msg.Ack()
				return
			default:
				f.dropped.Add(1)
				f.logger.Warn("feed.subscriber.lagging", "id", event.ID, "version", event.Version)
			}
			msg.Ack()
		}
	}()
	return out, nil
}

// Dropped reports how many events were discarded for lagging subscribers.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Close shuts the pub/sub down and closes subscriber channels.
func (f *Feed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.pubsub.Close()
}

func decode(payload []byte) (interfaces.ChangeEvent, error) {
	var event interfaces.ChangeEvent
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(&event); err != nil {
		return event, err
	}
	if event.Document != nil {
		event.Document = interfaces.Document(parser.NormalizeFields(event.Document))
	}
	return event, nil
}
