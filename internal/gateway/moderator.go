package gateway

import (
	"context"
	"log/slog"

	"github.com/slowtunes/slowtunes/internal/config"
)

// LogModerator records report alerts to the log, tagged with the configured
// moderator id so the entries are easy to route in log tooling.
type LogModerator struct {
	moderatorID uint64
	log         *slog.Logger
}

func NewLogModerator(cfg *config.Config, log *slog.Logger) *LogModerator {
	return &LogModerator{moderatorID: cfg.Moderation.ModeratorID, log: log}
}

func (m *LogModerator) AlertModerator(ctx context.Context, matchID, reporterID uint64) error {
	m.log.Warn("tune reported",
		"moderator_id", m.moderatorID,
		"match_id", matchID,
		"reporter_id", reporterID,
	)
	return nil
}
