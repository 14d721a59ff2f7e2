package service

import (
	"context"
	"fmt"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const (
	DefaultAttendanceLimit = 50
	MaxAttendanceLimit     = 500
)

type AttendanceService struct {
	repo AttendanceRepositoryInterface
}

func NewAttendanceService(repo AttendanceRepositoryInterface) *AttendanceService {
	return &AttendanceService{repo: repo}
}

// Recent returns the newest events first. Out of range limits are clamped.
func (s *AttendanceService) Recent(ctx context.Context, limit int) ([]domain.AttendanceEvent, error) {
	if limit <= 0 {
		limit = DefaultAttendanceLimit
	}
	limit = min(limit, MaxAttendanceLimit)

	events, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return events, nil
}

// SeedCooldown rebuilds the ledger from the journal so a restart does not
// log people again within the window. It returns the number of entries seeded.
func (s *AttendanceService) SeedCooldown(ctx context.Context, ledger *cooldown.Ledger, now time.Time) (int, error) {
	latest, err := s.repo.LatestByIdentity(ctx, now.Add(-ledger.Window()))
	if err != nil {
		return 0, fmt.Errorf("seed cooldown: %w", err)
	}
	ledger.Seed(latest)
	return len(latest), nil
}
