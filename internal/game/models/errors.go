package models

import "errors"

// Errors shared across the manager, engine and sync layers. Handlers
// map them to HTTP status codes, the engine returns them verbatim so
// callers can errors.Is on them.
var (
	ErrInvalidGameCode    = errors.New("no game with that code")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameFull           = errors.New("game is full")
	ErrNotInLobby         = errors.New("game is not in lobby")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrWrongPhase         = errors.New("action does not fit the turn phase")
	ErrStoreUnavailable   = errors.New("state store unavailable")
	ErrNotOwner           = errors.New("player does not own this property")
	ErrHouseAlreadyBuilt  = errors.New("property already has a house")
)
