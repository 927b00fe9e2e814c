package services

import (
	"context"
	"log/slog"

	"github.com/playforge/esports-platform/repositories"
)

// CounterService держит денормализованный tournaments.current_participants
// консистентным с истинным множеством активных заявок. Пересчёт — вторичный
// проход консистентности: вместимость обеспечивается атомарной вставкой
// в репозитории, а не этим счётчиком.
type CounterService struct {
	registrations repositories.RegistrationRepository
	tournaments   repositories.TournamentRepository
	logger        *slog.Logger
}

func NewCounterService(
	registrations repositories.RegistrationRepository,
	tournaments repositories.TournamentRepository,
	logger *slog.Logger,
) *CounterService {
	return &CounterService{
		registrations: registrations,
		tournaments:   tournaments,
		logger:        logger,
	}
}

// Recompute считает активные заявки турнира и пишет результат только при
// отличии от хранимого значения. Вызывается после create/delete заявки —
// единственных операций, меняющих членство в активном множестве.
func (s *CounterService) Recompute(ctx context.Context, tournamentID int) error {
	count, err := s.registrations.CountActive(ctx, tournamentID)
	if err != nil {
		return err
	}

	written, err := s.tournaments.UpdateParticipantCount(ctx, tournamentID, count)
	if err != nil {
		return err
	}
	if written {
		s.logger.Debug("participant counter updated",
			slog.Int("tournament_id", tournamentID),
			slog.Int("count", count),
		)
	}
	return nil
}
