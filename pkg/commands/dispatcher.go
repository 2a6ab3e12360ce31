// Package commands maps inbound chat messages to canned replies.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sipeed/uptimebot/pkg/bus"
	"github.com/sipeed/uptimebot/pkg/logger"
	"github.com/sipeed/uptimebot/pkg/utils"
)

const (
	PingCommand   = "!ping"
	HelpCommand   = "!help"
	StatusCommand = "!status"
)

const HelpText = "Hello! I am a 24/7 active bot hosted on Render.\n\n" +
	"Available Commands:\n" +
	"- `!ping`: Check my response latency.\n" +
	"- `!status`: Check my current uptime."

// Sender delivers a reply to the channel it names.
type Sender interface {
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// LatencySource reports the gateway round-trip time.
type LatencySource interface {
	Latency() time.Duration
}

// Handler builds the reply text for one matched command.
type Handler func(msg bus.InboundMessage) string

type Dispatcher struct {
	sender    Sender
	latency   LatencySource
	startedAt time.Time
	now       func() time.Time

	order []string
	table map[string]Handler
}

type Option func(*Dispatcher)

// WithClock overrides the time source used for latency and uptime.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithStartTime sets the instant uptime is measured from.
func WithStartTime(t time.Time) Option {
	return func(d *Dispatcher) {
		d.startedAt = t
	}
}

func NewDispatcher(sender Sender, latency LatencySource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		latency: latency,
		now:     time.Now,
		table:   make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.startedAt.IsZero() {
		d.startedAt = d.now()
	}

	d.register(PingCommand, d.ping)
	d.register(HelpCommand, d.help)
	d.register(StatusCommand, d.status)

	return d
}

func (d *Dispatcher) register(name string, h Handler) {
	if _, exists := d.table[name]; !exists {
		d.order = append(d.order, name)
	}
	d.table[name] = h
}

// Commands lists the registered command names in registration order.
func (d *Dispatcher) Commands() []string {
	return append([]string(nil), d.order...)
}

// Reply returns the reply text for msg, or false when msg is from a bot
// or matches no command.
func (d *Dispatcher) Reply(msg bus.InboundMessage) (string, bool) {
	if msg.IsBot {
		return "", false
	}

	h, ok := d.table[strings.ToLower(msg.Content)]
	if !ok {
		return "", false
	}
	return h(msg), true
}

// Dispatch replies to msg on its originating channel. A failed send is
// logged and dropped. It reports whether a reply was attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, msg bus.InboundMessage) bool {
	reply, ok := d.Reply(msg)
	if !ok {
		return false
	}

	logger.DebugCF("dispatcher", "Command matched", map[string]any{
		"command":   strings.ToLower(msg.Content),
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
	})

	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}
	if err := d.sender.Send(ctx, out); err != nil {
		logger.ErrorCF("dispatcher", "Failed to send reply", map[string]any{
			"chat_id": msg.ChatID,
			"preview": utils.Truncate(reply, 50),
			"error":   err.Error(),
		})
	}
	return true
}

// Run handles inbound messages one at a time until ctx is done or the bus
// is closed.
func (d *Dispatcher) Run(ctx context.Context, mb *bus.MessageBus) error {
	logger.InfoCF("dispatcher", "Dispatcher started", map[string]any{
		"commands": strings.Join(d.order, ","),
	})

	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			logger.InfoC("dispatcher", "Dispatcher stopped")
			return nil
		}
		d.Dispatch(ctx, msg)
	}
}

func (d *Dispatcher) ping(msg bus.InboundMessage) string {
	var clientMs int64
	if !msg.CreatedAt.IsZero() {
		clientMs = d.now().Sub(msg.CreatedAt).Milliseconds()
	}

	var apiMs int64
	if d.latency != nil {
		apiMs = d.latency.Latency().Round(time.Millisecond).Milliseconds()
	}

	return fmt.Sprintf("📡 Pong! Latency is %dms. API Latency is %dms.", clientMs, apiMs)
}

func (d *Dispatcher) help(bus.InboundMessage) string {
	return HelpText
}

func (d *Dispatcher) status(bus.InboundMessage) string {
	days, hours, minutes := utils.SplitUptime(d.now().Sub(d.startedAt))
	return fmt.Sprintf("✅ I am active and have been running for: %d days, %d hours, and %d minutes.", days, hours, minutes)
}
