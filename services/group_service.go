package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/playforge/esports-platform/repositories"
)

// GroupService детерминированно разбивает активные заявки турнира на группы
// фиксированного размера. Всегда пересчитывает разбиение с нуля от полного
// упорядоченного активного множества: отклонения и отмены сжимают множество,
// и группы должны оставаться непрерывными, без дыр.
type GroupService struct {
	registrations repositories.RegistrationRepository
	tournaments   repositories.TournamentRepository
	logger        *slog.Logger
}

func NewGroupService(
	registrations repositories.RegistrationRepository,
	tournaments repositories.TournamentRepository,
	logger *slog.Logger,
) *GroupService {
	return &GroupService{
		registrations: registrations,
		tournaments:   tournaments,
		logger:        logger,
	}
}

// GroupLabel возвращает метку группы для i-й заявки (0-индексация).
func GroupLabel(index, groupSize int) string {
	return fmt.Sprintf("G%d", index/groupSize+1)
}

// Recompute пересчитывает метки групп. Идемпотентен: при неизменном активном
// множестве метки не меняются, пишутся только реально изменившиеся строки.
// Закреплённые вручную заявки (group_pinned) не перетираются.
func (s *GroupService) Recompute(ctx context.Context, tournamentID int) (updated, totalGroups int, err error) {
	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return 0, 0, mapTournamentRepoError(err)
	}
	if !t.Grouping.Enabled {
		return 0, 0, nil
	}

	active, err := s.registrations.ListActiveByTournament(ctx, tournamentID)
	if err != nil {
		return 0, 0, err
	}

	for i, reg := range active {
		if reg.GroupPinned {
			continue
		}
		label := GroupLabel(i, t.Grouping.GroupSize)
		if reg.Group != nil && *reg.Group == label {
			continue
		}
		if err := s.registrations.SetGroup(ctx, reg.ID, &label, false); err != nil {
			return updated, 0, err
		}
		updated++
	}

	if len(active) > 0 {
		totalGroups = (len(active) + t.Grouping.GroupSize - 1) / t.Grouping.GroupSize
	}
	s.logger.Debug("groups recomputed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("updated", updated),
		slog.Int("total_groups", totalGroups),
	)
	return updated, totalGroups, nil
}

// Pin закрепляет заявку за явной группой вне детерминированного порядка.
// Закрепление переживает последующие автоматические пересчёты.
func (s *GroupService) Pin(ctx context.Context, registrationID int, label string) error {
	if label == "" {
		return ErrValidationFailed
	}
	err := s.registrations.SetGroup(ctx, registrationID, &label, true)
	if errors.Is(err, repositories.ErrRegistrationNotFound) {
		return ErrRegistrationNotFound
	}
	return err
}

// Unpin снимает закрепление; следующая автоматическая раскладка снова
// распоряжается этой заявкой.
func (s *GroupService) Unpin(ctx context.Context, registrationID int) error {
	err := s.registrations.SetGroup(ctx, registrationID, nil, false)
	if errors.Is(err, repositories.ErrRegistrationNotFound) {
		return ErrRegistrationNotFound
	}
	return err
}
