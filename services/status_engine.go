package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/repositories"
)

const sweepConcurrency = 8

// StatusEngine двигает турнир по временной машине статусов. Вся логика
// переходов сосредоточена в чистой функции NextStatus; движок лишь загружает,
// вычисляет и сохраняет результат compare-and-swap'ом, поэтому ленивую оценку
// на чтении и периодический обход можно запускать одновременно.
type StatusEngine struct {
	tournaments repositories.TournamentRepository
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewStatusEngine(tournaments repositories.TournamentRepository, clock clockwork.Clock, logger *slog.Logger) *StatusEngine {
	return &StatusEngine{
		tournaments: tournaments,
		clock:       clock,
		logger:      logger,
	}
}

// NextStatus — чистая функция переходов: (турнир, now) -> статус.
// Идемпотентна и монотонна: повторный вызов с тем же now даёт тот же результат,
// статус никогда не откатывается назад по прогрессии, даже если now выглядит
// раньше предыдущей оценки.
func NextStatus(t *models.Tournament, now time.Time) models.TournamentStatus {
	// cs2-серверы переключаются только админом.
	if !t.GameType.UsesRegistration() {
		return t.Status
	}

	// cancelled — терминальный ручной статус, движок его не покидает.
	currentRank, inProgression := models.StatusRank(t.Status)
	if !inProgression {
		return t.Status
	}

	target := t.Status
	switch {
	case t.EndDate != nil && !now.Before(*t.EndDate):
		target = models.StatusCompleted
	case t.StartDate != nil && !now.Before(*t.StartDate):
		target = models.StatusActive
	case t.RegistrationDeadline != nil && !now.Before(*t.RegistrationDeadline):
		target = models.StatusRegistrationClosed
	case t.RegistrationDeadline != nil && now.Before(*t.RegistrationDeadline):
		target = models.StatusRegistrationOpen
	}

	targetRank, ok := models.StatusRank(target)
	if !ok || targetRank <= currentRank {
		return t.Status
	}
	return target
}

// IsRegistrationOpen — предикат открытой регистрации, используемый
// жизненным циклом заявок.
func IsRegistrationOpen(t *models.Tournament, now time.Time) bool {
	if !t.GameType.UsesRegistration() {
		return t.Status == models.StatusActive
	}
	if t.Status != models.StatusUpcoming && t.Status != models.StatusRegistrationOpen {
		return false
	}
	if t.RegistrationDeadline == nil || !now.Before(*t.RegistrationDeadline) {
		return false
	}
	return t.CurrentParticipants < t.MaxParticipants
}

// ValidateStatus проверяет легальность статуса для типа игры на записи.
// Нелегальный статус — ошибка, а не молчаливая коэрция.
func ValidateStatus(gameType models.GameType, status models.TournamentStatus) error {
	if !gameType.StatusAllowed(status) {
		return fmt.Errorf("%w: %s for %s", ErrIllegalStatusForGameType, status, gameType)
	}
	return nil
}

// EvaluateStatus — ленивая оценка на чтении: загрузить, вычислить, сохранить
// только при отличии. Проигранный CAS значит, что кто-то оценил раньше нас
// с тем же результатом — перечитываем и отдаём свежую строку.
func (e *StatusEngine) EvaluateStatus(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	t, err := e.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return e.evaluate(ctx, t)
}

func (e *StatusEngine) evaluate(ctx context.Context, t *models.Tournament) (*models.Tournament, error) {
	next := NextStatus(t, e.clock.Now())
	if next == t.Status {
		return t, nil
	}

	swapped, err := e.tournaments.CompareAndSwapStatus(ctx, t.ID, t.Status, next)
	if err != nil {
		return nil, err
	}
	if !swapped {
		fresh, err := e.tournaments.GetByID(ctx, t.ID)
		if err != nil {
			return nil, mapTournamentRepoError(err)
		}
		return fresh, nil
	}

	e.logger.Info("tournament status advanced",
		slog.Int("tournament_id", t.ID),
		slog.String("from", string(t.Status)),
		slog.String("to", string(next)),
	)
	t.Status = next
	return t, nil
}

// SweepStatuses — пакетный обход всех незавершённых турниров. Идемпотентен
// и безопасен рядом с ленивой оценкой: оба пути зовут NextStatus и сохраняют
// через CAS.
func (e *StatusEngine) SweepStatuses(ctx context.Context) (int, error) {
	tournaments, err := e.tournaments.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}

	var updated atomic.Int64
	g, ctx := errgroupWithLimit(ctx, sweepConcurrency)
	for i := range tournaments {
		t := tournaments[i]
		g.Go(func() error {
			next := NextStatus(&t, e.clock.Now())
			if next == t.Status {
				return nil
			}
			swapped, err := e.tournaments.CompareAndSwapStatus(ctx, t.ID, t.Status, next)
			if err != nil {
				return err
			}
			if swapped {
				updated.Add(1)
				e.logger.Info("sweep: tournament status advanced",
					slog.Int("tournament_id", t.ID),
					slog.String("from", string(t.Status)),
					slog.String("to", string(next)),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(updated.Load()), err
	}
	return int(updated.Load()), nil
}

func mapTournamentRepoError(err error) error {
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return err
}
