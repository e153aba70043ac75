package api

import (
	"context"

	"github.com/udovin/duel/internal/managers"
	"github.com/udovin/duel/internal/pkg/logs"
)

// StartDaemons starts event delivery and periodic jobs of view.
func (v *View) StartDaemons() error {
	v.core.StartTask("event_stream", v.eventStreamDaemon)
	return managers.StartDaemons(v.core, v.sessions, v.leaderboard)
}

// Close disconnects all clients of event streams.
func (v *View) Close() {
	v.stream.shutdown()
}

func (v *View) eventStreamDaemon(ctx context.Context) {
	v.stream.run(ctx)
	if dropped := v.stream.Dropped(); dropped > 0 {
		v.core.Logger().Warn("Events were dropped by stream", logs.Any("count", dropped))
	}
}
