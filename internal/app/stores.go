// Package app assembles the components shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/saturnino-fabrica-de-software/chamada/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/database"
	"github.com/saturnino-fabrica-de-software/chamada/internal/filestore"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/repository"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

// IdentityRepository is satisfied by both the file and the postgres backends.
type IdentityRepository interface {
	identity.Repository
	service.IdentityRepositoryInterface
}

// Stores groups the persistence backends selected by STORE_BACKEND.
type Stores struct {
	Identities IdentityRepository
	Attendance service.AttendanceRepositoryInterface
	Images     *filestore.ImageStore
	// Pinger is nil for the file backend.
	Pinger handler.StorePinger

	closers []func()
}

// Close releases the database pool, if any.
func (s *Stores) Close() {
	for _, c := range s.closers {
		c()
	}
}

// OpenStores opens the configured backend. Reference images always live on
// disk under DataDir/faces.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	images, err := filestore.NewImageStore(filepath.Join(cfg.DataDir, filestore.ImagesDir))
	if err != nil {
		return nil, fmt.Errorf("open image store: %w", err)
	}

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if cfg.AutoMigrate {
			if err := database.MigrateUp(ctx, cfg.DatabaseURL, logger); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres store")
		return &Stores{
			Identities: repository.NewIdentityRepository(pool),
			Attendance: repository.NewAttendanceRepository(pool),
			Images:     images,
			Pinger:     pool,
			closers:    []func(){pool.Close},
		}, nil

	case config.StoreBackendFile:
		identities, err := filestore.NewIdentityRepository(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open identity store: %w", err)
		}
		attendance, err := filestore.NewAttendanceRepository(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open attendance journal: %w", err)
		}
		logger.Info("using file store", slog.String("dir", cfg.DataDir))
		return &Stores{
			Identities: identities,
			Attendance: attendance,
			Images:     images,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}
