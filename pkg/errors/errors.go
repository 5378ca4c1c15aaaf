package errors

import (
	"errors"
	"net/http"
)

// Table / seat directory
var (
	ErrTableNotFound      = errors.New("table not found")
	ErrSeatNotFound       = errors.New("seat not found")
	ErrSeatOccupied       = errors.New("seat occupied")
	ErrSeatEmpty          = errors.New("seat empty")
	ErrInsufficientStack  = errors.New("insufficient stack")
	ErrHandInProgress     = errors.New("hand in progress")
	ErrInvalidTableConfig = errors.New("invalid table config")
)

// Hand engine
var (
	ErrHandNotFound         = errors.New("hand not found")
	ErrHandEnded            = errors.New("hand already ended")
	ErrNeedMorePlayers      = errors.New("need more players")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrCannotCheckFacingBet = errors.New("cannot check facing a bet")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrRoundNotSettled      = errors.New("betting round not settled")
	ErrDeckExhausted        = errors.New("deck exhausted")
	ErrBoardIncomplete      = errors.New("board incomplete")
)

// HTTPStatus maps an error onto the status the API answers with.
// Anything not listed here is a 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrHandNotFound),
		errors.Is(err, ErrTableNotFound),
		errors.Is(err, ErrSeatNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrHandEnded),
		errors.Is(err, ErrRoundNotSettled),
		errors.Is(err, ErrSeatOccupied),
		errors.Is(err, ErrSeatEmpty),
		errors.Is(err, ErrHandInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrCannotCheckFacingBet),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientStack),
		errors.Is(err, ErrInvalidTableConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrNeedMorePlayers):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
