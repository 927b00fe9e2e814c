package models

// GameType определяет, какая политика статусов и регистрации применяется к турниру.
type GameType string

const (
	GameBGMI     GameType = "bgmi"
	GameCS2      GameType = "cs2"
	GameValorant GameType = "valorant"
	GameFreeFire GameType = "freefire"
)

var allGameTypes = map[GameType]struct{}{
	GameBGMI:     {},
	GameCS2:      {},
	GameValorant: {},
	GameFreeFire: {},
}

func (g GameType) Valid() bool {
	_, ok := allGameTypes[g]
	return ok
}

// UsesRegistration сообщает, ведёт ли игра командные заявки.
// cs2-турниры — это игровые серверы: у них нет регистраций, дедлайнов и групп.
func (g GameType) UsesRegistration() bool {
	return g != GameCS2
}

// AllowedStatuses возвращает легальное множество статусов для игры.
func (g GameType) AllowedStatuses() []TournamentStatus {
	if g == GameCS2 {
		return []TournamentStatus{StatusActive, StatusInactive}
	}
	return []TournamentStatus{
		StatusUpcoming,
		StatusRegistrationOpen,
		StatusRegistrationClosed,
		StatusActive,
		StatusCompleted,
		StatusCancelled,
	}
}

func (g GameType) StatusAllowed(s TournamentStatus) bool {
	for _, allowed := range g.AllowedStatuses() {
		if s == allowed {
			return true
		}
	}
	return false
}

// InitialStatus — статус нового турнира: cs2-сервер создаётся выключенным,
// остальные игры стартуют как "upcoming" и открываются движком статусов.
func (g GameType) InitialStatus() TournamentStatus {
	if g == GameCS2 {
		return StatusInactive
	}
	return StatusUpcoming
}
