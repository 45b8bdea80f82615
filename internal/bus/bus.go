package bus

import "context"

// Bus is the contract between connectors and the dispatcher.
type Bus interface {
	// PublishInbound delivers a message from a connector to the dispatcher.
	PublishInbound(ctx context.Context, msg InboundMessage) error
	// PublishOutbound delivers output to the connector manager.
	PublishOutbound(ctx context.Context, msg OutboundMessage) error
	// InboundChan is consumed by the dispatcher.
	InboundChan() <-chan InboundMessage
	// OutboundChan is consumed by the connector manager.
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the in-process Bus backed by buffered Go channels.
// Publishing blocks while a buffer is full, applying back-pressure to the
// producer, and gives up when ctx ends.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MessageBus) InboundChan() <-chan InboundMessage { return b.inbound }

func (b *MessageBus) OutboundChan() <-chan OutboundMessage { return b.outbound }

func (b *MessageBus) InboundSize() int { return len(b.inbound) }

func (b *MessageBus) OutboundSize() int { return len(b.outbound) }
