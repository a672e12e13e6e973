package debates

import "errors"

// Ошибки живых сессий. Валидация никогда не меняет состояние сессии:
// все проверки выполняются до мутации.
var (
	ErrDebateNotFound  = errors.New("debate not found")
	ErrNotParticipant  = errors.New("user is not a participant of this debate")
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrArgumentEmpty   = errors.New("argument must not be empty")
	ErrArgumentTooLong = errors.New("argument is too long (max 1000 characters)")
	ErrDebateNotActive = errors.New("debate is not in the active phase")
	ErrDebateFinished  = errors.New("debate has already ended")
)
