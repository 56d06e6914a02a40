package protocol

import (
	"errors"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// ErrorCode is the machine-readable reason on an ERROR frame
type ErrorCode string

const (
	CodeRoomNotFound      ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomFull          ErrorCode = "ROOM_FULL"
	CodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	CodeNotRoomOwner      ErrorCode = "NOT_ROOM_OWNER"
	CodeNotInRoom         ErrorCode = "NOT_IN_ROOM"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

var codeErrors = map[ErrorCode]error{
	CodeRoomNotFound:      model.ErrRoomNotFound,
	CodeRoomFull:          model.ErrRoomFull,
	CodeProtocolViolation: model.ErrProtocolViolation,
	CodeNotRoomOwner:      model.ErrNotRoomOwner,
	CodeNotInRoom:         model.ErrNotInRoom,
}

// NewError builds an ERROR frame for a relay failure
func NewError(err error) *Error {
	return &Error{Code: CodeFor(err), Message: err.Error()}
}

// CodeFor maps an error onto its wire code
func CodeFor(err error) ErrorCode {
	for code, target := range codeErrors {
		if errors.Is(err, target) {
			return code
		}
	}
	if errors.Is(err, model.ErrUnknownMessage) {
		return CodeProtocolViolation
	}
	return CodeInternal
}

// Err converts an ERROR frame back into the matching sentinel error
func (e *Error) Err() error {
	if target, ok := codeErrors[e.Code]; ok {
		return target
	}
	return errors.New(e.Message)
}
