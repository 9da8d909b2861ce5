package scheduler

import (
	"context"

	"github.com/kasuganosora/mmocache/facade"
	"go.uber.org/zap"
)

// StatsSource reports table sizes. *facade.Service satisfies it.
type StatsSource interface {
	Stats() facade.Stats
}

// Sessions reports live sessions of a process, e.g. the player
// SessionManager of a game server.
type Sessions interface {
	Count() int
}

// ReportStats logs the entry count of every cached table.
func ReportStats(src StatsSource, logger *zap.Logger) TaskFn {
	return func(context.Context) {
		st := src.Stats()
		logger.Info("cache stats",
			zap.Int("total", st.Total()),
			zap.Int("characters", st.Characters),
			zap.Int("socials", st.Socials),
			zap.Int("friends", st.Friends),
			zap.Int("parties", st.Parties),
			zap.Int("guilds", st.Guilds),
			zap.Int("storages", st.Storages),
			zap.Int("building_maps", st.BuildingMaps),
			zap.Int("balances", st.Gold+st.Cash))
	}
}

// ReportSessions logs the number of live sessions.
func ReportSessions(src Sessions, logger *zap.Logger) TaskFn {
	return func(context.Context) {
		logger.Info("sessions", zap.Int("count", src.Count()))
	}
}
