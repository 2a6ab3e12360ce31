package channels

import (
	"context"
	"sync/atomic"

	"github.com/sipeed/uptimebot/pkg/bus"
	"github.com/sipeed/uptimebot/pkg/logger"
)

// BaseChannel holds the state shared by every channel adapter: its name,
// the bus it publishes to, and whether it is currently connected.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running atomic.Bool
}

func NewBaseChannel(name string, mb *bus.MessageBus) *BaseChannel {
	return &BaseChannel{
		name: name,
		bus:  mb,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}

// HandleMessage stamps msg with the channel name and hands it to the bus.
// It reports false when the bus is closed or ctx is done.
func (c *BaseChannel) HandleMessage(ctx context.Context, msg bus.InboundMessage) bool {
	msg.Channel = c.name
	if c.bus.PublishInbound(ctx, msg) {
		return true
	}

	logger.WarnCF(c.name, "Inbound message dropped", map[string]any{
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
	})
	return false
}
