package managers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/logs"
)

// LeaderboardManager provides global rating leaderboard.
//
// Leaderboard positions are recomputed by periodic job and can lag
// behind current ratings.
type LeaderboardManager struct {
	core *core.Core
}

// NewLeaderboardManager creates a new instance of LeaderboardManager.
func NewLeaderboardManager(core *core.Core) *LeaderboardManager {
	return &LeaderboardManager{core: core}
}

// Top returns profiles ordered by rating.
func (m *LeaderboardManager) Top(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return m.core.Profiles.FindTop(ctx, limit, offset)
}

// Profile returns profile of participant.
func (m *LeaderboardManager) Profile(ctx context.Context, participantID int64) (models.Profile, error) {
	profile, err := m.core.Profiles.Get(ctx, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, notFoundError("Profile not found.")
		}
		return models.Profile{}, err
	}
	return profile, nil
}

// RecomputeRanks recomputes leaderboard positions of all profiles.
func (m *LeaderboardManager) RecomputeRanks(ctx context.Context) error {
	start := time.Now()
	if err := wrapTx(m.core, ctx, m.core.Profiles.RecomputeRanks); err != nil {
		return err
	}
	m.core.Logger().Debug("Ranks recomputed", logs.Any("latency", time.Since(start).String()))
	return nil
}

// StartDaemons registers periodic jobs of session timeouts and
// leaderboard recompute.
func StartDaemons(c *core.Core, sessions *SessionManager, leaderboard *LeaderboardManager) error {
	if err := c.AddJob(
		"expire_sessions", c.Config.Session.GetExpireInterval(),
		func(ctx context.Context) error {
			ended, err := sessions.ExpireSessions(ctx)
			if ended > 0 {
				c.Logger().Info("Expired sessions ended", logs.Any("count", ended))
			}
			return err
		},
	); err != nil {
		return err
	}
	return c.AddJob(
		"recompute_ranks", c.Config.Session.GetRanksInterval(),
		leaderboard.RecomputeRanks,
	)
}
