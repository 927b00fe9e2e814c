package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/repositories"
)

const minGroupSize = 5

type TournamentService struct {
	tournaments   repositories.TournamentRepository
	registrations repositories.RegistrationRepository
	engine        *StatusEngine
	serverStatus  *ServerStatusCache
	clock         clockwork.Clock
	logger        *slog.Logger
}

func NewTournamentService(
	tournaments repositories.TournamentRepository,
	registrations repositories.RegistrationRepository,
	engine *StatusEngine,
	serverStatus *ServerStatusCache,
	clock clockwork.Clock,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournaments:   tournaments,
		registrations: registrations,
		engine:        engine,
		serverStatus:  serverStatus,
		clock:         clock,
		logger:        logger,
	}
}

// Create валидирует и сохраняет новый турнир. Статус нового турнира задаёт
// политика игры; явно переданный статус проверяется на легальность.
func (s *TournamentService) Create(ctx context.Context, t *models.Tournament) error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrValidationFailed
	}
	if !t.GameType.Valid() {
		return ErrValidationFailed
	}
	if t.MaxParticipants < 2 {
		return ErrTournamentInvalidCapacity
	}
	if t.Grouping.Enabled && t.Grouping.GroupSize < minGroupSize {
		return ErrInvalidGroupSize
	}

	if t.Status == "" {
		t.Status = t.GameType.InitialStatus()
	}
	if err := ValidateStatus(t.GameType, t.Status); err != nil {
		return err
	}

	if t.GameType.UsesRegistration() {
		if t.RegistrationDeadline == nil || t.StartDate == nil || t.EndDate == nil {
			return ErrTournamentInvalidDates
		}
		if t.RegistrationDeadline.After(*t.StartDate) || !t.StartDate.Before(*t.EndDate) {
			return ErrTournamentInvalidDates
		}
	}

	err := s.tournaments.Create(ctx, t)
	if errors.Is(err, repositories.ErrTournamentNameConflict) {
		return ErrTournamentNameConflict
	}
	return err
}

// Get возвращает турнир с лениво оценённым статусом: каждое чтение прогоняет
// машину статусов, поэтому просроченные окна видны сразу, без ожидания обхода.
func (s *TournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	return s.engine.EvaluateStatus(ctx, id)
}

func (s *TournamentService) List(ctx context.Context, limit, offset int) ([]models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tournaments, err := s.tournaments.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	// Отдаём вычисленный статус и в списке; персист — забота ленивой
	// оценки и обхода.
	now := s.clock.Now()
	for i := range tournaments {
		tournaments[i].Status = NextStatus(&tournaments[i], now)
	}
	return tournaments, nil
}

// Cancel — ручной терминальный статус; движок из него не выходит.
func (s *TournamentService) Cancel(ctx context.Context, id int) error {
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if err := ValidateStatus(t.GameType, models.StatusCancelled); err != nil {
		return err
	}
	if t.IsTerminal() {
		return ErrInvalidTransition
	}
	return s.tournaments.SetStatus(ctx, id, models.StatusCancelled)
}

// SetServerStatus переключает cs2-сервер (online/offline). Для остальных игр
// и любых иных статусов — нелегальная операция.
func (s *TournamentService) SetServerStatus(ctx context.Context, id int, status models.TournamentStatus) error {
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if t.GameType.UsesRegistration() {
		return ErrIllegalStatusForGameType
	}
	if err := ValidateStatus(t.GameType, status); err != nil {
		return err
	}
	if err := s.tournaments.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.serverStatus.Set(id, status)
	return nil
}

// GetServerStatus отдаёт статус cs2-сервера через TTL-кэш: статусные опросы
// идут с игровых клиентов чаще, чем меняется сам статус.
func (s *TournamentService) GetServerStatus(ctx context.Context, id int) (models.TournamentStatus, error) {
	if status, ok := s.serverStatus.Get(id); ok {
		return status, nil
	}
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return "", mapTournamentRepoError(err)
	}
	if t.GameType.UsesRegistration() {
		return "", ErrIllegalStatusForGameType
	}
	s.serverStatus.Set(id, t.Status)
	return t.Status, nil
}

// Delete отказывается удалять турнир с активными заявками, пока не запрошен
// принудительный вариант.
func (s *TournamentService) Delete(ctx context.Context, id int, force bool) error {
	if !force {
		active, err := s.registrations.CountActive(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrTournamentHasRegistrations
		}
	}
	err := s.tournaments.Delete(ctx, id)
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentHasRegistrations):
		return ErrTournamentHasRegistrations
	}
	return err
}
