package commands

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sipeed/uptimebot/pkg/bus"
	"github.com/sipeed/uptimebot/pkg/utils"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []bus.OutboundMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg bus.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) snapshot() []bus.OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bus.OutboundMessage(nil), s.sent...)
}

type fixedLatency time.Duration

func (l fixedLatency) Latency() time.Duration { return time.Duration(l) }

var (
	startedAt = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	pingReply = regexp.MustCompile(`^📡 Pong! Latency is (-?\d+)ms\. API Latency is (-?\d+)ms\.$`)
	statusRe  = regexp.MustCompile(`^✅ I am active and have been running for: (\d+) days, (\d+) hours, and (\d+) minutes\.$`)
)

func newTestDispatcher(now time.Time) (*Dispatcher, *recordingSender) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, fixedLatency(42400*time.Microsecond),
		WithStartTime(startedAt),
		WithClock(func() time.Time { return now }),
	)
	return d, sender
}

func inbound(content string) bus.InboundMessage {
	return bus.InboundMessage{Channel: "discord", ChatID: "c1", SenderID: "u1", Content: content}
}

func TestCommandsOrder(t *testing.T) {
	d, _ := newTestDispatcher(startedAt)
	require.Equal(t, []string{PingCommand, HelpCommand, StatusCommand}, d.Commands())
}

func TestPingReportsBothLatencies(t *testing.T) {
	now := startedAt.Add(time.Hour)
	d, sender := newTestDispatcher(now)

	for _, content := range []string{"!ping", "!PING", "!PiNg"} {
		msg := inbound(content)
		msg.CreatedAt = now.Add(-125 * time.Millisecond)
		require.True(t, d.Dispatch(context.Background(), msg))
	}

	sent := sender.snapshot()
	require.Len(t, sent, 3)
	for _, out := range sent {
		require.Equal(t, "c1", out.ChatID)
		require.Equal(t, "discord", out.Channel)
		require.Equal(t, "📡 Pong! Latency is 125ms. API Latency is 42ms.", out.Content)
		require.Regexp(t, pingReply, out.Content)
	}
}

func TestPingWithoutLatencySource(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, nil)

	reply, ok := d.Reply(inbound("!ping"))
	require.True(t, ok)
	require.Equal(t, "📡 Pong! Latency is 0ms. API Latency is 0ms.", reply)
}

func TestHelpIsVerbatim(t *testing.T) {
	d, sender := newTestDispatcher(startedAt)

	require.True(t, d.Dispatch(context.Background(), inbound("!HELP")))

	sent := sender.snapshot()
	require.Len(t, sent, 1)
	require.Equal(t, HelpText, sent[0].Content)
	require.Equal(t, "Hello! I am a 24/7 active bot hosted on Render.\n\nAvailable Commands:\n- `!ping`: Check my response latency.\n- `!status`: Check my current uptime.", sent[0].Content)
}

func TestStatusOneDayOneHour(t *testing.T) {
	d, _ := newTestDispatcher(startedAt.Add(90000 * time.Second))

	reply, ok := d.Reply(inbound("!status"))
	require.True(t, ok)
	require.Equal(t, "✅ I am active and have been running for: 1 days, 1 hours, and 0 minutes.", reply)
}

func TestStatusTripleBounds(t *testing.T) {
	for _, secs := range []int64{0, 59, 60, 3599, 3600, 86399, 86400, 90061, 1234567} {
		d, _ := newTestDispatcher(startedAt.Add(time.Duration(secs) * time.Second))

		reply, ok := d.Reply(inbound("!Status"))
		require.True(t, ok)

		m := statusRe.FindStringSubmatch(reply)
		require.NotNil(t, m, "unexpected reply %q", reply)

		days, _ := strconv.ParseInt(m[1], 10, 64)
		hours, _ := strconv.ParseInt(m[2], 10, 64)
		minutes, _ := strconv.ParseInt(m[3], 10, 64)
		require.Less(t, minutes, int64(60))
		require.Less(t, hours, int64(24))

		floor := days*86400 + hours*3600 + minutes*60
		require.LessOrEqual(t, floor, secs)
		require.Less(t, secs, floor+60)

		wantDays, wantHours, wantMinutes := utils.SplitUptime(time.Duration(secs) * time.Second)
		require.Equal(t, []int64{wantDays, wantHours, wantMinutes}, []int64{days, hours, minutes})
	}
}

func TestBotMessagesNeverReply(t *testing.T) {
	d, sender := newTestDispatcher(startedAt)

	for _, content := range []string{"!ping", "!help", "!status", "hello"} {
		msg := inbound(content)
		msg.IsBot = true
		require.False(t, d.Dispatch(context.Background(), msg))
	}
	require.Empty(t, sender.snapshot())
}

func TestUnknownTextIsIgnored(t *testing.T) {
	d, sender := newTestDispatcher(startedAt)

	for _, content := range []string{"", "ping", "!pong", " !ping", "!ping ", "!help me", "!statuses"} {
		require.False(t, d.Dispatch(context.Background(), inbound(content)), "content %q", content)
	}
	require.Empty(t, sender.snapshot())
}

func TestSendFailureIsNotRetried(t *testing.T) {
	d, sender := newTestDispatcher(startedAt)
	sender.err = errors.New("missing permissions")

	require.True(t, d.Dispatch(context.Background(), inbound("!help")))
	require.True(t, d.Dispatch(context.Background(), inbound("!status")))

	require.Len(t, sender.snapshot(), 2)
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	d, sender := newTestDispatcher(startedAt)
	sender.err = errors.New("channel deleted")

	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, mb)
	}()

	for _, content := range []string{"!help", "nothing", "!status", "!ping"} {
		require.True(t, mb.PublishInbound(context.Background(), inbound(content)))
	}

	require.Eventually(t, func() bool {
		return len(sender.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}

	sent := sender.snapshot()
	require.Equal(t, HelpText, sent[0].Content)
	require.Regexp(t, statusRe, sent[1].Content)
	require.Regexp(t, pingReply, sent[2].Content)
}

func TestRunStopsWhenBusCloses(t *testing.T) {
	d, _ := newTestDispatcher(startedAt)
	mb := bus.NewMessageBus()
	mb.Close()

	require.NoError(t, d.Run(context.Background(), mb))
}
