package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nurpe/obras-service/internal/config"
	"github.com/nurpe/obras-service/internal/db"
	"github.com/nurpe/obras-service/internal/repository"
	"github.com/nurpe/obras-service/internal/service"
)

// Backend is the remote record store and profile store selected by
// REMOTE_DRIVER.
type Backend struct {
	Remote   repository.Remote
	Profiles service.ProfileStore
	close    func() error
}

func OpenBackend(cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.Sync.RemoteDriver {
	case config.RemoteDriverMemory:
		log.Warn().Msg("using in-memory remote; records are lost on exit")
		return &Backend{
			Remote:   repository.NewMemoryRemote(),
			Profiles: repository.NewMemoryProfiles(),
			close:    func() error { return nil },
		}, nil
	case config.RemoteDriverPostgres:
		database, err := db.New(cfg, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := database.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		return &Backend{
			Remote:   repository.NewPostgresRemote(database),
			Profiles: repository.NewProfileRepository(database),
			close:    sqlDB.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.Sync.RemoteDriver)
	}
}

func (b *Backend) Close() error {
	return b.close()
}
