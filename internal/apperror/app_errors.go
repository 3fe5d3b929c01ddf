package apperror

import "errors"

var (
	ErrInvalidName        = errors.New("invalid username")
	ErrNotFound           = errors.New("session not found")
	ErrInvalidState       = errors.New("operation not allowed in current session state")
	ErrPlayerNotInSession = errors.New("player not in this session")
	ErrWrongTurn          = errors.New("it's not your turn")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrOutOfRange         = errors.New("invalid cell index")
	ErrGameFinished       = errors.New("game is already finished")
	ErrNotSubscribed      = errors.New("not subscribed")
	ErrInvalidBinding     = errors.New("invalid session binding")
)
