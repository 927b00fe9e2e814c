package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/repositories"
	"github.com/playforge/esports-platform/storage"
)

const (
	requiredMainPlayers = 3

	TemplateRegistrationSubmitted = "registration_submitted"
	TemplateRegistrationVerified  = "registration_verified"
	TemplateRegistrationRejected  = "registration_rejected"
)

// TeamSubmission — входные данные подачи заявки.
type TeamSubmission struct {
	TeamName   string             `json:"team_name"`
	Leader     models.TeamMember  `json:"leader"`
	Members    []models.TeamMember `json:"members"`
	Substitute *models.TeamMember `json:"substitute,omitempty"`
}

// RegistrationService владеет машиной состояний заявки:
// pending -> images_uploaded -> (verified | rejected). Побочные эффекты —
// пересчёт счётчика, раскладка групп, событие для подписчиков — выполняются
// явной цепочкой после записи, а не коллбэками слоя хранения, чтобы
// причинную цепочку можно было видеть и тестировать по отдельности.
type RegistrationService struct {
	registrations repositories.RegistrationRepository
	engine        *StatusEngine
	counter       *CounterService
	groups        *GroupService
	uploader      storage.FileUploader
	publisher     EventPublisher
	clock         clockwork.Clock
	logger        *slog.Logger
}

func NewRegistrationService(
	registrations repositories.RegistrationRepository,
	engine *StatusEngine,
	counter *CounterService,
	groups *GroupService,
	uploader storage.FileUploader,
	publisher EventPublisher,
	clock clockwork.Clock,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		engine:        engine,
		counter:       counter,
		groups:        groups,
		uploader:      uploader,
		publisher:     publisher,
		clock:         clock,
		logger:        logger,
	}
}

func validateTeam(team TeamSubmission) error {
	if strings.TrimSpace(team.TeamName) == "" {
		return ErrTeamNameRequired
	}
	if len(team.Members) != requiredMainPlayers {
		return ErrInvalidTeamSize
	}

	players := make([]models.TeamMember, 0, 5)
	players = append(players, team.Leader)
	players = append(players, team.Members...)
	if team.Substitute != nil {
		players = append(players, *team.Substitute)
	}

	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.InGameID) == "" {
			return ErrValidationFailed
		}
		if _, dup := seen[p.InGameID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, p.InGameID)
		}
		seen[p.InGameID] = struct{}{}
	}
	return nil
}

// Submit создаёт заявку. Окно регистрации проверяется по актуальному
// (лениво оценённому) статусу турнира; вместимость обеспечивается атомарной
// вставкой под блокировкой строки турнира, так что два конкурирующих Submit
// не могут вдвоём занять последний слот.
func (s *RegistrationService) Submit(ctx context.Context, tournamentID, userID int, team TeamSubmission) (*models.Registration, error) {
	if err := validateTeam(team); err != nil {
		return nil, err
	}

	t, err := s.engine.EvaluateStatus(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !IsRegistrationOpen(t, now) {
		if t.GameType.UsesRegistration() && t.CurrentParticipants >= t.MaxParticipants {
			return nil, ErrCapacityExceeded
		}
		return nil, ErrRegistrationClosed
	}

	if _, err := s.registrations.FindByUserAndTournament(ctx, userID, tournamentID); err == nil {
		return nil, ErrDuplicateRegistration
	} else if !errors.Is(err, repositories.ErrRegistrationNotFound) {
		return nil, err
	}

	reg := &models.Registration{
		TournamentID: tournamentID,
		UserID:       userID,
		TeamName:     team.TeamName,
		Leader:       team.Leader,
		Members:      team.Members,
		Substitute:   team.Substitute,
		Status:       models.RegistrationPending,
	}

	if err := s.registrations.CreateWithinCapacity(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationCapacityFull):
			return nil, ErrCapacityExceeded
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return nil, ErrDuplicateRegistration
		case errors.Is(err, repositories.ErrTournamentNotFound):
			return nil, ErrTournamentNotFound
		default:
			return nil, err
		}
	}

	s.afterMembershipChange(ctx, t)
	s.publisher.Publish(LifecycleEvent{
		Type:           models.EventRegistrationSubmitted,
		TournamentID:   t.ID,
		TournamentName: t.Name,
		RegistrationID: reg.ID,
		TeamName:       reg.TeamName,
		Recipient:      reg.Leader.Email,
	})
	return reg, nil
}

// afterMembershipChange — явная цепочка побочных эффектов после изменения
// активного множества: пересчёт счётчика, затем раскладка групп. Заявка уже
// зафиксирована, поэтому сбои здесь логируются, но не отменяют операцию.
func (s *RegistrationService) afterMembershipChange(ctx context.Context, t *models.Tournament) {
	if err := s.counter.Recompute(ctx, t.ID); err != nil {
		s.logger.Warn("participant counter recompute failed",
			slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
	if t.Grouping.Enabled {
		if _, _, err := s.groups.Recompute(ctx, t.ID); err != nil {
			s.logger.Warn("group recompute failed",
				slog.Int("tournament_id", t.ID), slog.Any("error", err))
		}
	}
}

func (s *RegistrationService) Get(ctx context.Context, id int) (*models.Registration, error) {
	reg, err := s.registrations.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrRegistrationNotFound) {
		return nil, ErrRegistrationNotFound
	}
	return reg, err
}

func (s *RegistrationService) mutableRegistration(ctx context.Context, id int) (*models.Registration, error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// Фото можно трогать только до решения админа.
	if reg.Status != models.RegistrationPending && reg.Status != models.RegistrationImagesUploaded {
		return nil, ErrInvalidTransition
	}
	return reg, nil
}

// AttachImage — идемпотентный upsert по ключу (slot, image_number): повторная
// загрузка заменяет снимок и освобождает вытесненный блоб. При достижении
// полной квоты статус переходит в images_uploaded.
func (s *RegistrationService) AttachImage(ctx context.Context, registrationID int, slot models.PlayerSlot, imageNumber int, contentType string, data io.Reader) (*models.VerificationImage, error) {
	if !slot.Valid() {
		return nil, ErrInvalidPlayerSlot
	}
	if imageNumber != 1 && imageNumber != 2 {
		return nil, ErrInvalidImageNumber
	}

	reg, err := s.mutableRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("registrations/%d/%s-%d-%s", reg.ID, slot, imageNumber, uuid.NewString())
	uploaded, err := s.uploader.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload verification image: %w", err)
	}

	img := &models.VerificationImage{
		RegistrationID: reg.ID,
		Slot:           slot,
		ImageNumber:    imageNumber,
		Key:            uploaded.Key,
		URL:            uploaded.Location,
		UploadedAt:     s.clock.Now(),
	}
	replacedKey, err := s.registrations.UpsertImage(ctx, img)
	if err != nil {
		// Запись не состоялась — убираем осиротевший блоб.
		if delErr := s.uploader.Delete(ctx, uploaded.Key); delErr != nil {
			s.logger.Warn("failed to delete orphaned blob", slog.String("key", uploaded.Key), slog.Any("error", delErr))
		}
		return nil, err
	}
	if replacedKey != "" {
		if err := s.uploader.Delete(ctx, replacedKey); err != nil {
			s.logger.Warn("failed to delete replaced blob", slog.String("key", replacedKey), slog.Any("error", err))
		}
	}

	if err := s.reconcileImageStatus(ctx, reg); err != nil {
		return nil, err
	}
	return img, nil
}

// DetachImage удаляет снимок; падение ниже квоты возвращает заявку в pending.
func (s *RegistrationService) DetachImage(ctx context.Context, registrationID, imageID int) error {
	reg, err := s.mutableRegistration(ctx, registrationID)
	if err != nil {
		return err
	}

	key, err := s.registrations.DeleteImage(ctx, registrationID, imageID)
	if err != nil {
		if errors.Is(err, repositories.ErrImageNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	if err := s.uploader.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete blob", slog.String("key", key), slog.Any("error", err))
	}

	return s.reconcileImageStatus(ctx, reg)
}

// reconcileImageStatus выравнивает статус по квоте:
// status = images_uploaded <=> все снимки на месте.
func (s *RegistrationService) reconcileImageStatus(ctx context.Context, reg *models.Registration) error {
	count, err := s.registrations.CountImages(ctx, reg.ID)
	if err != nil {
		return err
	}

	switch {
	case count == models.RequiredImageCount && reg.Status == models.RegistrationPending:
		return s.registrations.SetStatus(ctx, reg.ID, models.RegistrationImagesUploaded)
	case count < models.RequiredImageCount && reg.Status == models.RegistrationImagesUploaded:
		return s.registrations.SetStatus(ctx, reg.ID, models.RegistrationPending)
	}
	return nil
}

// Verify — решение админа. Повторная верификация идемпотентна; возврат
// из rejected требует явного override, иначе это нелегальный переход.
func (s *RegistrationService) Verify(ctx context.Context, registrationID, adminID int, override bool) error {
	reg, err := s.Get(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.Status == models.RegistrationVerified {
		return nil
	}
	if reg.Status == models.RegistrationRejected && !override {
		return ErrInvalidTransition
	}

	if err := s.registrations.SetVerified(ctx, registrationID, adminID, s.clock.Now()); err != nil {
		return err
	}

	// Возврат из rejected добавляет заявку обратно в активное множество.
	if !reg.Status.Active() {
		if t, err := s.engine.EvaluateStatus(ctx, reg.TournamentID); err == nil {
			s.afterMembershipChange(ctx, t)
		}
	}

	s.publisher.Publish(LifecycleEvent{
		Type:           models.EventRegistrationVerified,
		TournamentID:   reg.TournamentID,
		RegistrationID: reg.ID,
		TeamName:       reg.TeamName,
		Recipient:      reg.Leader.Email,
	})
	return nil
}

// Reject — решение админа, обязательна непустая причина.
func (s *RegistrationService) Reject(ctx context.Context, registrationID, adminID int, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrRejectionReasonRequired
	}

	reg, err := s.Get(ctx, registrationID)
	if err != nil {
		return err
	}

	if err := s.registrations.SetRejected(ctx, registrationID, adminID, reason, s.clock.Now()); err != nil {
		return err
	}

	// Отклонение выводит заявку из активного множества.
	if reg.Status.Active() {
		if t, err := s.engine.EvaluateStatus(ctx, reg.TournamentID); err == nil {
			s.afterMembershipChange(ctx, t)
		}
	}

	s.publisher.Publish(LifecycleEvent{
		Type:           models.EventRegistrationRejected,
		TournamentID:   reg.TournamentID,
		RegistrationID: reg.ID,
		TeamName:       reg.TeamName,
		Recipient:      reg.Leader.Email,
		Reason:         reason,
	})
	return nil
}

// Cancel — самостоятельная отмена владельцем, только пока заявка pending.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, userID int) error {
	reg, err := s.Get(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg.UserID != userID {
		return ErrForbiddenOperation
	}
	if reg.Status != models.RegistrationPending {
		return ErrInvalidTransition
	}
	return s.delete(ctx, reg)
}

// ForceDelete — принудительное удаление админом в любом статусе.
func (s *RegistrationService) ForceDelete(ctx context.Context, registrationID int) error {
	reg, err := s.Get(ctx, registrationID)
	if err != nil {
		return err
	}
	return s.delete(ctx, reg)
}

func (s *RegistrationService) delete(ctx context.Context, reg *models.Registration) error {
	if err := s.registrations.Delete(ctx, reg.ID); err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return ErrRegistrationNotFound
		}
		return err
	}

	// Строки снимков удаляет каскад БД; блобы освобождаем сами.
	for _, img := range reg.Images {
		if err := s.uploader.Delete(ctx, img.Key); err != nil {
			s.logger.Warn("failed to delete blob", slog.String("key", img.Key), slog.Any("error", err))
		}
	}

	if t, err := s.engine.EvaluateStatus(ctx, reg.TournamentID); err == nil {
		s.afterMembershipChange(ctx, t)
	}
	return nil
}
