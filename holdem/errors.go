package holdem

import "errors"

// ValidationError marks malformed input. Callers should not retry it.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// StateError marks a request that is well formed but not allowed in the
// current state of the hand.
type StateError string

func (e StateError) Error() string { return string(e) }

// NotFoundError marks an unknown game, player or persisted record.
type NotFoundError string

func (e NotFoundError) Error() string { return string(e) }

var (
	ErrInvalidCardCount   = ValidationError("hand evaluation needs 5 to 7 cards")
	ErrDuplicateCard      = ValidationError("duplicate card")
	ErrMalformedCard      = ValidationError("malformed card")
	ErrInvalidRaise       = ValidationError("raise must exceed the current bet")
	ErrMissingAmount      = ValidationError("raise requires an amount")
	ErrUnknownAction      = ValidationError("unknown action")
	ErrInvalidPlayerCount = ValidationError("invalid player count")
	ErrInvalidPlayer      = ValidationError("invalid player")

	ErrNotPlayersTurn      = StateError("not player's turn")
	ErrInvalidPhase        = StateError("action not allowed in this phase")
	ErrCheckNotAllowed     = StateError("cannot check facing a bet")
	ErrHandNotComplete     = StateError("hand not complete")
	ErrInsufficientPlayers = StateError("at least two players with chips are required")

	ErrPlayerNotFound = NotFoundError("player not found")
)

// InvalidStateError reports a state that breaks an engine invariant, e.g. a
// corrupted snapshot handed to Restore.
type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsState(err error) bool {
	var v StateError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v NotFoundError
	return errors.As(err, &v)
}
