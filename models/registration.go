package models

import "time"

// RegistrationStatus представляет статусы заявки команды, соответствующие ENUM в БД.
type RegistrationStatus string

const (
	RegistrationPending        RegistrationStatus = "pending"
	RegistrationImagesUploaded RegistrationStatus = "images_uploaded"
	RegistrationVerified       RegistrationStatus = "verified"
	RegistrationRejected       RegistrationStatus = "rejected"
)

// ActiveRegistrationStatuses — статусы, учитываемые в счётчике участников и группах.
// Rejected и удалённые заявки место в турнире не занимают.
var ActiveRegistrationStatuses = []RegistrationStatus{
	RegistrationPending,
	RegistrationImagesUploaded,
	RegistrationVerified,
}

func (s RegistrationStatus) Active() bool {
	for _, a := range ActiveRegistrationStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationVerified || s == RegistrationRejected
}

// PlayerSlot идентифицирует игрока внутри заявки для фото-верификации.
// Запасной игрок верификацию не проходит.
type PlayerSlot string

const (
	SlotLeader  PlayerSlot = "leader"
	SlotMember1 PlayerSlot = "member1"
	SlotMember2 PlayerSlot = "member2"
	SlotMember3 PlayerSlot = "member3"
)

var VerificationSlots = []PlayerSlot{SlotLeader, SlotMember1, SlotMember2, SlotMember3}

func (p PlayerSlot) Valid() bool {
	for _, s := range VerificationSlots {
		if p == s {
			return true
		}
	}
	return false
}

// RequiredImageCount — по два скриншота на каждый из четырёх слотов.
var RequiredImageCount = len(VerificationSlots) * 2

// TeamMember — игрок в составе команды. InGameID должен быть уникален
// в пределах команды (per-game идентификатор игрока).
type TeamMember struct {
	Name     string `json:"name"`
	InGameID string `json:"in_game_id"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// VerificationImage — один скриншот верификации, ключ (slot, image_number).
type VerificationImage struct {
	ID             int        `json:"id" db:"id"`
	RegistrationID int        `json:"registration_id" db:"registration_id"`
	Slot           PlayerSlot `json:"slot" db:"slot"`
	ImageNumber    int        `json:"image_number" db:"image_number"`
	Key            string     `json:"-" db:"object_key"`
	URL            string     `json:"url" db:"url"`
	UploadedAt     time.Time  `json:"uploaded_at" db:"uploaded_at"`
}

// Registration представляет заявку команды на турнир.
// Уникальна по паре (tournament_id, user_id).
type Registration struct {
	ID              int                `json:"id" db:"id"`
	TournamentID    int                `json:"tournament_id" db:"tournament_id"`
	UserID          int                `json:"user_id" db:"user_id"`
	TeamName        string             `json:"team_name" db:"team_name"`
	Leader          TeamMember         `json:"leader"`
	Members         []TeamMember       `json:"members"`    // 3 основных
	Substitute      *TeamMember        `json:"substitute,omitempty"` // опциональный запасной
	Status          RegistrationStatus `json:"status" db:"status"`
	Group           *string            `json:"group,omitempty" db:"group_label"`
	GroupPinned     bool               `json:"group_pinned" db:"group_pinned"`
	RejectionReason *string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	VerifiedBy      *int               `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt      *time.Time         `json:"verified_at,omitempty" db:"verified_at"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`

	Images []VerificationImage `json:"images,omitempty" db:"-"`
}

// AllPlayers возвращает весь состав, включая запасного.
func (r *Registration) AllPlayers() []TeamMember {
	players := make([]TeamMember, 0, 5)
	players = append(players, r.Leader)
	players = append(players, r.Members...)
	if r.Substitute != nil {
		players = append(players, *r.Substitute)
	}
	return players
}
