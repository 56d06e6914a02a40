package model

import "errors"

// Common errors used across the application
var (
	// Relay errors
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotInRoom           = errors.New("participant is not in room")
	ErrNotRoomOwner        = errors.New("participant does not own the room")

	// Connection errors
	ErrConnectTimeout   = errors.New("timed out connecting to relay")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrKicked           = errors.New("removed from room by host")
	ErrChannelClosed    = errors.New("channel closed")

	// Protocol errors
	ErrProtocolViolation = errors.New("protocol violation")
	ErrUnknownMessage    = errors.New("unknown message type")

	// Session errors
	ErrNotHost                = errors.New("participant is not the host")
	ErrNotYourTurn            = errors.New("not this participant's turn")
	ErrWrongPhase             = errors.New("action not allowed in current phase")
	ErrInsufficientPlayers    = errors.New("insufficient players to start game")
	ErrDuelRequiresTwoPlayers = errors.New("duel requires exactly two players")
	ErrSecretAlreadySet       = errors.New("secret has already been set")

	// Guess errors
	ErrInvalidGuess  = errors.New("invalid guess")
	ErrInvalidDigits = errors.New("digit count out of range")
)
