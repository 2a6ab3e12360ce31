package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/uptimebot/pkg/config"
	"github.com/sipeed/uptimebot/pkg/logger"
	"github.com/sipeed/uptimebot/pkg/utils"
)

// PresenceUpdater re-publishes the bot's activity status.
type PresenceUpdater interface {
	UpdatePresence() error
}

// Service periodically refreshes the bot presence and logs uptime on a
// cron schedule. Discord can drop presence after a session resume.
type Service struct {
	expr      string
	presence  PresenceUpdater
	startedAt time.Time
	now       func() time.Time
}

func NewService(cfg config.HeartbeatConfig, presence PresenceUpdater, startedAt time.Time) (*Service, error) {
	expr := strings.TrimSpace(cfg.Cron)
	gron := gronx.New()
	if !gron.IsValid(expr) {
		return nil, fmt.Errorf("invalid heartbeat cron expression %q", cfg.Cron)
	}

	return &Service{
		expr:      expr,
		presence:  presence,
		startedAt: startedAt,
		now:       time.Now,
	}, nil
}

// Next returns the first scheduled tick strictly after ref.
func (s *Service) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, ref, false)
}

// Run fires beats until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	logger.InfoCF("heartbeat", "Heartbeat started", map[string]any{
		"cron": s.expr,
	})

	for {
		next, err := s.Next(s.now())
		if err != nil {
			return fmt.Errorf("compute next heartbeat: %w", err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.InfoC("heartbeat", "Heartbeat stopped")
			return nil
		case <-timer.C:
			s.beat()
		}
	}
}

func (s *Service) beat() {
	days, hours, minutes := utils.SplitUptime(s.now().Sub(s.startedAt))
	logger.InfoCF("heartbeat", "Still running", map[string]any{
		"days":    days,
		"hours":   hours,
		"minutes": minutes,
	})

	if s.presence == nil {
		return
	}
	if err := s.presence.UpdatePresence(); err != nil {
		logger.WarnCF("heartbeat", "Presence refresh failed", map[string]any{
			"error": err.Error(),
		})
	}
}
