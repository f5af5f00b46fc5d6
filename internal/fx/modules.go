package fx

import (
	"context"
	"database/sql"

	"afl-tracker/internal/config"
	"afl-tracker/internal/database"
	"afl-tracker/internal/logger"
	"afl-tracker/internal/repository"
	"afl-tracker/internal/server"
	"afl-tracker/internal/service"
	"afl-tracker/internal/store"
	"afl-tracker/internal/store/firestore"
	"afl-tracker/internal/store/sqlstore"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideStore picks the backend for the match catalogue and actions.
// Rosters stay in SQLite either way.
func ProvideStore(cfg *config.Config, matches *repository.MatchRepository, actions *repository.ActionRepository, clk clockwork.Clock, logger zerolog.Logger) store.Store {
	if cfg.StoreBackend == config.BackendFirestore {
		logger.Info().Str("project", cfg.FirestoreProject).Msg("using firestore match store")
		return firestore.NewFromConfig(cfg, clk, logger)
	}
	logger.Info().Msg("using sqlite match store")
	return sqlstore.New(matches, actions, logger)
}

func registerDatabase(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}

// registerSessions runs after registerDatabase, so on stop the sessions shut
// down before the database closes.
func registerSessions(lc fx.Lifecycle, sessions *service.SessionService) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sessions.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			return sessions.Shutdown()
		},
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Invoke(registerDatabase),
	fx.Provide(ProvideClock),
	// repos
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewActionRepository),
	// store
	fx.Provide(ProvideStore),
	// svc
	fx.Provide(service.NewMatchService),
	fx.Provide(service.NewStatsService),
	fx.Provide(service.NewSessionService),
	fx.Invoke(registerSessions),
	// server
	fx.Provide(server.NewTrackerServer),
	fx.Provide(server.NewFeedHandler),
)
