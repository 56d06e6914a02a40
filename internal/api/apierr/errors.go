package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/guessnumber-go/internal/model"
)

// APIError is the body of every error the API returns
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CodeRoomFull            = "ROOM_FULL"
	CodeInternalError       = "INTERNAL_ERROR"
)

// Error is an APIError paired with the HTTP status it is sent with
type Error struct {
	Status int
	APIError
}

func (e *Error) Error() string {
	return e.Message
}

// Domain errors the API knows how to report. Anything else is internal.
var known = []struct {
	target error
	err    Error
}{
	{model.ErrRoomNotFound, Error{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}},
	{model.ErrParticipantNotFound, Error{http.StatusNotFound, APIError{CodeParticipantNotFound, "Participant not found"}}},
	{model.ErrRoomFull, Error{http.StatusConflict, APIError{CodeRoomFull, "Room is full"}}},
}

// From maps err onto the API error it is reported as
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for _, k := range known {
		if errors.Is(err, k.target) {
			mapped := k.err
			return &mapped
		}
	}
	return &Error{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// WriteError writes err as a JSON error response
func WriteError(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: e.APIError})
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &Error{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewNotFoundError reports an unknown API route
func NewNotFoundError() error {
	return &Error{http.StatusNotFound, APIError{CodeNotFound, "No such endpoint"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &Error{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
