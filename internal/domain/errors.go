package domain

import "errors"

// Domain errors - use these for consistent error handling
var (
	// Auth errors
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")
	ErrUnauthorized    = errors.New("unauthorized")

	// Room errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNameTaken    = errors.New("room with same name already exists")
	ErrAlreadyConnected = errors.New("user is already connected to a room")
	ErrRoomStopped      = errors.New("room has stopped")

	// Problem errors
	ErrProblemNotFound = errors.New("problem not found")
	ErrNotAuthor       = errors.New("user is not the author of this problem")
)
