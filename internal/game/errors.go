// internal/game/errors.go
package game

import "errors"

// Turn-violation and not-found errors surfaced to the acting connection.
// Handlers convert these into the outbound error event; they never escape
// to other rooms or crash the process.
var (
	ErrNotStarted    = errors.New("the game has not started yet")
	ErrMatchOver     = errors.New("the game is already over")
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrCardNotInHand = errors.New("that card is not in your hand")
	ErrIllegalPlay   = errors.New("that card cannot be played right now")
	ErrBadColor      = errors.New("a wild card needs a valid chosen color")
)
