package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/repositories"
	"github.com/playforge/esports-platform/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTournamentRepo — потокобезопасная in-memory реализация
// repositories.TournamentRepository для тестов.
type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	stored := *t
	r.tournaments[t.ID] = &stored
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, limit, offset int) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.tournaments {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTournamentRepo) ListNonTerminal(_ context.Context) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.tournaments {
		if !t.IsTerminal() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) CompareAndSwapStatus(_ context.Context, id int, from, to models.TournamentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (r *fakeTournamentRepo) SetStatus(_ context.Context, id int, to models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = to
	return nil
}

func (r *fakeTournamentRepo) UpdateParticipantCount(_ context.Context, id, count int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.CurrentParticipants == count {
		return false, nil
	}
	t.CurrentParticipants = count
	return true, nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

type imageKey struct {
	slot   models.PlayerSlot
	number int
}

// fakeRegistrationRepo — in-memory реализация repositories.RegistrationRepository.
// Атомарная вставка с проверкой вместимости сериализуется общим мьютексом —
// аналог блокировки строки турнира.
type fakeRegistrationRepo struct {
	mu            sync.Mutex
	tournaments   *fakeTournamentRepo
	registrations map[int]*models.Registration
	images        map[int]map[imageKey]*models.VerificationImage
	nextID        int
	nextImageID   int
	groupWrites   int
	submittedAt   time.Time
}

func newFakeRegistrationRepo(tournaments *fakeTournamentRepo) *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		tournaments:   tournaments,
		registrations: make(map[int]*models.Registration),
		images:        make(map[int]map[imageKey]*models.VerificationImage),
		nextID:        1,
		nextImageID:   1,
		submittedAt:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRegistrationRepo) activeCountLocked(tournamentID int) int {
	count := 0
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.Status.Active() {
			count++
		}
	}
	return count
}

func (r *fakeRegistrationRepo) CreateWithinCapacity(_ context.Context, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tournaments.mu.Lock()
	t, ok := r.tournaments.tournaments[reg.TournamentID]
	if !ok {
		r.tournaments.mu.Unlock()
		return repositories.ErrTournamentNotFound
	}
	maxParticipants := t.MaxParticipants
	r.tournaments.mu.Unlock()

	for _, existing := range r.registrations {
		if existing.TournamentID == reg.TournamentID && existing.UserID == reg.UserID {
			return repositories.ErrRegistrationConflict
		}
	}
	active := r.activeCountLocked(reg.TournamentID)
	if active >= maxParticipants {
		return repositories.ErrRegistrationCapacityFull
	}

	reg.ID = r.nextID
	r.nextID++
	r.submittedAt = r.submittedAt.Add(time.Second)
	reg.CreatedAt = r.submittedAt

	stored := *reg
	r.registrations[reg.ID] = &stored

	r.tournaments.mu.Lock()
	r.tournaments.tournaments[reg.TournamentID].CurrentParticipants = active + 1
	r.tournaments.mu.Unlock()
	return nil
}

func (r *fakeRegistrationRepo) copyLocked(reg *models.Registration) *models.Registration {
	copied := *reg
	copied.Images = nil
	for _, img := range r.images[reg.ID] {
		copied.Images = append(copied.Images, *img)
	}
	sort.Slice(copied.Images, func(i, j int) bool { return copied.Images[i].ID < copied.Images[j].ID })
	return &copied
}

func (r *fakeRegistrationRepo) FindByID(_ context.Context, id int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	return r.copyLocked(reg), nil
}

func (r *fakeRegistrationRepo) FindByUserAndTournament(_ context.Context, userID, tournamentID int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.registrations {
		if reg.UserID == userID && reg.TournamentID == tournamentID {
			return r.copyLocked(reg), nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (r *fakeRegistrationRepo) ListActiveByTournament(_ context.Context, tournamentID int) ([]*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Registration
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.Status.Active() {
			out = append(out, r.copyLocked(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeRegistrationRepo) CountActive(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCountLocked(tournamentID), nil
}

func (r *fakeRegistrationRepo) SetStatus(_ context.Context, id int, status models.RegistrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	return nil
}

func (r *fakeRegistrationRepo) SetVerified(_ context.Context, id, adminID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = models.RegistrationVerified
	reg.VerifiedBy = &adminID
	reg.VerifiedAt = &at
	reg.RejectionReason = nil
	return nil
}

func (r *fakeRegistrationRepo) SetRejected(_ context.Context, id, adminID int, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = models.RegistrationRejected
	reg.VerifiedBy = &adminID
	reg.VerifiedAt = &at
	reg.RejectionReason = &reason
	return nil
}

func (r *fakeRegistrationRepo) SetGroup(_ context.Context, id int, label *string, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Group = label
	reg.GroupPinned = pinned
	r.groupWrites++
	return nil
}

func (r *fakeRegistrationRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.registrations[id]; !ok {
		return repositories.ErrRegistrationNotFound
	}
	delete(r.registrations, id)
	delete(r.images, id)
	return nil
}

func (r *fakeRegistrationRepo) UpsertImage(_ context.Context, img *models.VerificationImage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.images[img.RegistrationID] == nil {
		r.images[img.RegistrationID] = make(map[imageKey]*models.VerificationImage)
	}
	key := imageKey{slot: img.Slot, number: img.ImageNumber}

	replaced := ""
	if existing, ok := r.images[img.RegistrationID][key]; ok {
		replaced = existing.Key
		img.ID = existing.ID
	} else {
		img.ID = r.nextImageID
		r.nextImageID++
	}
	stored := *img
	r.images[img.RegistrationID][key] = &stored
	return replaced, nil
}

func (r *fakeRegistrationRepo) DeleteImage(_ context.Context, registrationID, imageID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, img := range r.images[registrationID] {
		if img.ID == imageID {
			delete(r.images[registrationID], key)
			return img.Key, nil
		}
	}
	return "", repositories.ErrImageNotFound
}

func (r *fakeRegistrationRepo) CountImages(_ context.Context, registrationID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.images[registrationID]), nil
}

// fakeUploader записывает загрузки и освобождения блобов.
type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	_, _ = io.Copy(io.Discard, reader)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deletes = append(u.deletes, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// capturePublisher накапливает опубликованные события.
type capturePublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (p *capturePublisher) Publish(event LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) byType(t models.EventType) []LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []LifecycleEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv собирает движок целиком поверх fake-репозиториев.
type testEnv struct {
	clock         *clockwork.FakeClock
	tournaments   *fakeTournamentRepo
	registrations *fakeRegistrationRepo
	uploader      *fakeUploader
	published     *capturePublisher
	engine        *StatusEngine
	counter       *CounterService
	groups        *GroupService
	service       *RegistrationService
	tournamentSvc *TournamentService
}

func newTestEnv(at time.Time) *testEnv {
	logger := testLogger()
	clock := clockwork.NewFakeClockAt(at)
	tournaments := newFakeTournamentRepo()
	registrations := newFakeRegistrationRepo(tournaments)
	uploader := &fakeUploader{}
	published := &capturePublisher{}

	engine := NewStatusEngine(tournaments, clock, logger)
	counter := NewCounterService(registrations, tournaments, logger)
	groups := NewGroupService(registrations, tournaments, logger)
	cache := NewServerStatusCache(10*time.Second, 16, clock)

	return &testEnv{
		clock:         clock,
		tournaments:   tournaments,
		registrations: registrations,
		uploader:      uploader,
		published:     published,
		engine:        engine,
		counter:       counter,
		groups:        groups,
		service:       NewRegistrationService(registrations, engine, counter, groups, uploader, published, clock, logger),
		tournamentSvc: NewTournamentService(tournaments, registrations, engine, cache, clock, logger),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func testTeam(n int) TeamSubmission {
	return TeamSubmission{
		TeamName: fmt.Sprintf("Team %d", n),
		Leader:   models.TeamMember{Name: fmt.Sprintf("leader-%d", n), InGameID: fmt.Sprintf("L%d", n), Email: fmt.Sprintf("leader%d@example.com", n)},
		Members: []models.TeamMember{
			{Name: fmt.Sprintf("p%d-1", n), InGameID: fmt.Sprintf("M%d-1", n)},
			{Name: fmt.Sprintf("p%d-2", n), InGameID: fmt.Sprintf("M%d-2", n)},
			{Name: fmt.Sprintf("p%d-3", n), InGameID: fmt.Sprintf("M%d-3", n)},
		},
	}
}

// openTournament создаёт турнир с открытой регистрацией.
func (e *testEnv) openTournament(maxParticipants int, grouping models.GroupingConfig) *models.Tournament {
	now := e.clock.Now()
	t := &models.Tournament{
		Name:                 fmt.Sprintf("Cup %d", e.tournaments.nextID),
		GameType:             models.GameBGMI,
		OrganizerID:          1,
		Status:               models.StatusRegistrationOpen,
		RegistrationDeadline: timePtr(now.Add(24 * time.Hour)),
		StartDate:            timePtr(now.Add(48 * time.Hour)),
		EndDate:              timePtr(now.Add(72 * time.Hour)),
		MaxParticipants:      maxParticipants,
		Grouping:             grouping,
	}
	if err := e.tournaments.Create(context.Background(), t); err != nil {
		panic(err)
	}
	return t
}
