package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sipeed/uptimebot/pkg/bus"
	"github.com/sipeed/uptimebot/pkg/config"
	"github.com/sipeed/uptimebot/pkg/logger"
	"github.com/sipeed/uptimebot/pkg/utils"
)

const sendTimeout = 10 * time.Second

// Intents requested once at identify time. The dispatcher needs guild
// metadata, guild message events, message text and member metadata.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentMessageContent |
	discordgo.IntentGuildMembers

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
	ctx     context.Context
}

func NewDiscordChannel(cfg config.DiscordConfig, mb *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = Intents

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", mb),
		session:     session,
		config:      cfg,
		ctx:         context.Background(),
	}, nil
}

func (c *DiscordChannel) getContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.ctx = ctx
	c.session.AddHandler(c.handleReady)
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	return nil
}

// Latency is the most recent heartbeat round-trip to the gateway. The
// session updates it on its own schedule.
func (c *DiscordChannel) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

// UpdatePresence publishes the configured "Watching" activity.
func (c *DiscordChannel) UpdatePresence() error {
	if err := c.session.UpdateWatchStatus(0, c.config.Activity); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}

	channelID := msg.ChatID
	if channelID == "" {
		return fmt.Errorf("channel ID is empty")
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, msg.Content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}

	logger.InfoCF("discord", "Successfully logged in", map[string]any{
		"username": r.User.String(),
		"user_id":  r.User.ID,
		"guilds":   len(r.Guilds),
	})

	if err := c.UpdatePresence(); err != nil {
		logger.WarnCF("discord", "Failed to set activity status", map[string]any{
			"activity": c.config.Activity,
			"error":    err.Error(),
		})
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}

	// Covers our own messages as well; bot accounts always carry the flag.
	if m.Author.Bot {
		return
	}
	if s != nil && s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	if m.Content == "" {
		return
	}

	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_id":  m.Author.ID,
		"channel_id": m.ChannelID,
		"preview":    utils.Truncate(m.Content, 50),
	})

	c.HandleMessage(c.getContext(), bus.InboundMessage{
		SenderID:  m.Author.ID,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		IsBot:     m.Author.Bot,
		CreatedAt: m.Timestamp,
		Metadata: map[string]string{
			"message_id": m.ID,
			"username":   m.Author.Username,
			"guild_id":   m.GuildID,
			"is_dm":      fmt.Sprintf("%t", m.GuildID == ""),
		},
	})
}
