package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrImageNotFound        = errors.New("verification image not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed         = errors.New("validation failed")
	ErrTeamNameRequired         = errors.New("team name is required")
	ErrInvalidTeamSize          = errors.New("team must have a leader, three main players and at most one substitute")
	ErrDuplicateIdentifier      = errors.New("in-game player id is not unique within the team")
	ErrRejectionReasonRequired  = errors.New("rejection reason is required")
	ErrInvalidPlayerSlot        = errors.New("invalid player slot")
	ErrInvalidImageNumber       = errors.New("image number must be 1 or 2")
	ErrIllegalStatusForGameType = errors.New("status is not allowed for this game type")
	ErrInvalidTransition        = errors.New("registration status transition is not allowed")
	ErrTournamentInvalidDates   = errors.New("tournament dates must satisfy registration_deadline <= start_date < end_date")
	ErrTournamentInvalidCapacity = errors.New("tournament max participants must be at least 2")
	ErrInvalidGroupSize         = errors.New("group size must be at least 5")

	// Ошибки конфликтов
	ErrDuplicateRegistration = errors.New("user is already registered for this tournament")
	ErrRegistrationClosed    = errors.New("tournament registration is not open")
	ErrCapacityExceeded      = errors.New("tournament registration is full")
	ErrConcurrencyConflict   = errors.New("concurrent update lost, retry the operation")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Ошибки авторизации операций
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Удаление турнира
	ErrTournamentHasRegistrations = errors.New("tournament still has active registrations; use force delete")
)

// ErrorCode возвращает стабильный машинный код для типизированной ошибки сервиса.
// Коды — контракт API, их нельзя переименовывать.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrTournamentNotFound):
		return "TOURNAMENT_NOT_FOUND"
	case errors.Is(err, ErrRegistrationNotFound):
		return "REGISTRATION_NOT_FOUND"
	case errors.Is(err, ErrImageNotFound):
		return "IMAGE_NOT_FOUND"
	case errors.Is(err, ErrDuplicateRegistration):
		return "DUPLICATE_REGISTRATION"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "DUPLICATE_IDENTIFIER"
	case errors.Is(err, ErrRegistrationClosed):
		return "REGISTRATION_CLOSED"
	case errors.Is(err, ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, ErrIllegalStatusForGameType):
		return "ILLEGAL_STATUS_FOR_GAME_TYPE"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrConcurrencyConflict):
		return "CONCURRENCY_CONFLICT"
	case errors.Is(err, ErrForbiddenOperation):
		return "FORBIDDEN"
	case errors.Is(err, ErrTournamentHasRegistrations):
		return "TOURNAMENT_HAS_REGISTRATIONS"
	case errors.Is(err, ErrTournamentNameConflict):
		return "TOURNAMENT_NAME_CONFLICT"
	case errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrTeamNameRequired),
		errors.Is(err, ErrInvalidTeamSize),
		errors.Is(err, ErrRejectionReasonRequired),
		errors.Is(err, ErrInvalidPlayerSlot),
		errors.Is(err, ErrInvalidImageNumber),
		errors.Is(err, ErrTournamentInvalidDates),
		errors.Is(err, ErrTournamentInvalidCapacity),
		errors.Is(err, ErrInvalidGroupSize):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
