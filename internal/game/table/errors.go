package table

import "errors"

// ErrorKind groups rule violations so callers can map them to responses.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotYourTurn
	KindInvalidPhaseAction
	KindAmount
	KindInsufficientChips
	KindTableNotFound
	KindPlayerNotFound
	KindNotEnoughCards
	KindTransactionConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotYourTurn:
		return "not_your_turn"
	case KindInvalidPhaseAction:
		return "invalid_phase_action"
	case KindAmount:
		return "amount_error"
	case KindInsufficientChips:
		return "insufficient_chips"
	case KindTableNotFound:
		return "table_not_found"
	case KindPlayerNotFound:
		return "player_not_found"
	case KindNotEnoughCards:
		return "not_enough_cards"
	case KindTransactionConflict:
		return "transaction_conflict"
	}
	return "unknown"
}

// Error is a rule violation detected before any state mutation.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrNotYourTurn = newError(KindNotYourTurn, "not your turn")

	ErrCannotCheck      = newError(KindInvalidPhaseAction, "cannot check: a bet is outstanding")
	ErrAlreadyBet       = newError(KindInvalidPhaseAction, "cannot bet: there is already a bet, raise instead")
	ErrNoBetToRaise     = newError(KindInvalidPhaseAction, "cannot raise: there is no bet, bet instead")
	ErrWrongPhase       = newError(KindInvalidPhaseAction, "action not allowed in the current phase")
	ErrNotEnoughPlayers = newError(KindInvalidPhaseAction, "at least two players with chips are required")
	ErrTableFull        = newError(KindInvalidPhaseAction, "table is full")
	ErrAlreadySeated    = newError(KindInvalidPhaseAction, "player is already seated")
	ErrUnknownAction    = newError(KindInvalidPhaseAction, "unknown action")
	ErrPlayerFolded     = newError(KindInvalidPhaseAction, "player has folded")
	ErrRaiseNotReopened = newError(KindInvalidPhaseAction, "cannot raise: nobody made a full raise since your last action")

	ErrBetTooSmall    = newError(KindAmount, "bet is smaller than the big blind")
	ErrRaiseTooSmall  = newError(KindAmount, "raise is smaller than the minimum raise")
	ErrAmountTooLarge = newError(KindAmount, "amount exceeds available chips")
	ErrInvalidAmount  = newError(KindAmount, "amount must be positive")

	ErrInsufficientChips = newError(KindInsufficientChips, "insufficient chips")

	ErrTableNotFound  = newError(KindTableNotFound, "table not found")
	ErrPlayerNotFound = newError(KindPlayerNotFound, "player not found")

	ErrNotEnoughCards = newError(KindNotEnoughCards, "at least five cards are required")

	ErrTransactionConflict = newError(KindTransactionConflict, "concurrent update conflict")
)

// KindOf reports the kind of a (possibly wrapped) rule error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
