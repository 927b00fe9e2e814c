package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusUpcoming           TournamentStatus = "upcoming"
	StatusRegistrationOpen   TournamentStatus = "registration_open"
	StatusRegistrationClosed TournamentStatus = "registration_closed"
	StatusActive             TournamentStatus = "active"
	StatusCompleted          TournamentStatus = "completed"
	StatusCancelled          TournamentStatus = "cancelled"
	StatusInactive           TournamentStatus = "inactive"
)

// statusRank задаёт порядок прогрессии для не-cs2 игр. Движок статусов
// никогда не понижает ранг (защита от рассинхронизации часов).
var statusRank = map[TournamentStatus]int{
	StatusUpcoming:           0,
	StatusRegistrationOpen:   1,
	StatusRegistrationClosed: 2,
	StatusActive:             3,
	StatusCompleted:          4,
}

// StatusRank возвращает позицию статуса в прогрессии и false для
// терминальных/внепрогрессионных статусов (cancelled, inactive).
func StatusRank(s TournamentStatus) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// GroupingConfig описывает разбиение активных заявок на группы фиксированного размера.
type GroupingConfig struct {
	Enabled   bool `json:"enabled" db:"grouping_enabled"`
	GroupSize int  `json:"group_size" db:"group_size"`
}

// Tournament представляет турнир (или игровой сервер для cs2).
type Tournament struct {
	ID                  int              `json:"id" db:"id"`
	Name                string           `json:"name" db:"name"`
	Description         *string          `json:"description,omitempty" db:"description"`
	GameType            GameType         `json:"game_type" db:"game_type"`
	OrganizerID         int              `json:"organizer_id" db:"organizer_id"`
	Status              TournamentStatus `json:"status" db:"status"`
	RegistrationDeadline *time.Time      `json:"registration_deadline,omitempty" db:"registration_deadline"`
	StartDate           *time.Time       `json:"start_date,omitempty" db:"start_date"`
	EndDate             *time.Time       `json:"end_date,omitempty" db:"end_date"`
	MaxParticipants     int              `json:"max_participants" db:"max_participants"`
	CurrentParticipants int              `json:"current_participants" db:"current_participants"`
	Grouping            GroupingConfig   `json:"grouping"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Registrations []Registration `json:"registrations,omitempty" db:"-"`
}

// IsTerminal — турнир завершён или отменён и больше не двигается движком.
func (t *Tournament) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}
