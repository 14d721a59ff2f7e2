package service

import (
	"context"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

// IdentityService manages enrolled identities outside of enrollment.
type IdentityService struct {
	repo      IdentityRepositoryInterface
	images    ImageStoreInterface
	store     *identity.Store
	lock      *IdentityLock
	ledger    *cooldown.Ledger
	publisher Publisher
	logger    *slog.Logger
}

func NewIdentityService(repo IdentityRepositoryInterface, images ImageStoreInterface, store *identity.Store, lock *IdentityLock, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		repo:      repo,
		images:    images,
		store:     store,
		lock:      lock,
		publisher: noopPublisher{},
		logger:    logger,
	}
}

func (s *IdentityService) WithPublisher(p Publisher) *IdentityService {
	s.publisher = p
	return s
}

// WithLedger makes Delete clear the cooldown entry, so a person enrolled
// again under the same name is logged on first sight.
func (s *IdentityService) WithLedger(l *cooldown.Ledger) *IdentityService {
	s.ledger = l
	return s
}

func (s *IdentityService) List(ctx context.Context) ([]domain.Identity, error) {
	return s.repo.List(ctx)
}

func (s *IdentityService) Get(ctx context.Context, name string) (*domain.Identity, error) {
	return s.repo.Get(ctx, domain.NormalizeName(name))
}

// Delete removes the record, its reference image and its in-memory entry.
func (s *IdentityService) Delete(ctx context.Context, name string) error {
	name = domain.NormalizeName(name)

	if err := s.lock.Acquire(ctx); err != nil {
		return domain.ErrEnrollmentBusy.WithError(err)
	}
	defer s.lock.Release()

	ident, err := s.repo.Get(ctx, name)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}

	if ident.ImageRef != "" {
		if err := s.images.Delete(ctx, ident.ImageRef); err != nil {
			s.logger.Warn("failed to remove reference image", slog.String("image_ref", ident.ImageRef), slog.Any("error", err))
		}
	}

	s.store.Remove(name)
	if s.ledger != nil {
		s.ledger.Forget(name)
	}
	s.publisher.Broadcast(ws.EventIdentityDeleted, map[string]string{"name": name})
	s.logger.Info("identity deleted", slog.String("name", name))
	return nil
}
