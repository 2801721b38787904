// Package apperr provides the error taxonomy shared by the hunt services and
// the HTTP layer.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeHuntNegativeStartAmount Code = "HUNT_NEGATIVE_START_AMOUNT"
	CodeSlotEmptyName           Code = "SLOT_EMPTY_NAME"
	CodeSlotInvalidBetSize      Code = "SLOT_INVALID_BET_SIZE"
	CodeSlotNegativeResult      Code = "SLOT_NEGATIVE_RESULT"
	CodeAmountOutOfRange        Code = "AMOUNT_OUT_OF_RANGE"
	CodeInvalidID               Code = "INVALID_ID"
	CodeInvalidRequest          Code = "INVALID_REQUEST"

	// Transition errors
	CodeActiveHuntExists       Code = "ACTIVE_HUNT_EXISTS"
	CodeHuntNotCollecting      Code = "HUNT_NOT_COLLECTING"
	CodeHuntHasNoSlots         Code = "HUNT_HAS_NO_SLOTS"
	CodeHuntCompleted          Code = "HUNT_COMPLETED"
	CodeSlotAdditionNotAllowed Code = "SLOT_ADDITION_NOT_ALLOWED"
	CodeSlotAlreadyOpened      Code = "SLOT_ALREADY_OPENED"

	// Lookup errors
	CodeHuntNotFound Code = "HUNT_NOT_FOUND"
	CodeSlotNotFound Code = "SLOT_NOT_FOUND"

	// Storage errors
	CodeStoreFailure Code = "STORE_FAILURE"
)

// Kind groups codes into the four failure families callers react to.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidTransition
	KindNotFound
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNotFound:
		return "not_found"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Kind maps a code to its failure family.
func (c Code) Kind() Kind {
	switch c {
	case CodeHuntNegativeStartAmount,
		CodeSlotEmptyName,
		CodeSlotInvalidBetSize,
		CodeSlotNegativeResult,
		CodeAmountOutOfRange,
		CodeInvalidID,
		CodeInvalidRequest:
		return KindValidation

	case CodeActiveHuntExists,
		CodeHuntNotCollecting,
		CodeHuntHasNoSlots,
		CodeHuntCompleted,
		CodeSlotAdditionNotAllowed,
		CodeSlotAlreadyOpened:
		return KindInvalidTransition

	case CodeHuntNotFound,
		CodeSlotNotFound:
		return KindNotFound

	case CodeStoreFailure:
		return KindStoreFailure

	default:
		return KindUnknown
	}
}

// HTTPStatus maps a code to the status the REST layer answers with.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidTransition:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
