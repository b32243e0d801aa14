package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Tournament errors. Every one of them leaves stored state untouched.
var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrTournamentFull          = errors.New("tournament is full")
	ErrAlreadyRegistered       = errors.New("player already registered")
	ErrPlayerNotFound          = errors.New("player not registered in tournament")
	ErrScoreMismatch           = errors.New("opponents do not have equal scores")
	ErrInvalidWinner           = errors.New("winner must be one of the two players")
	ErrPlayerAlreadyEliminated = errors.New("player already eliminated")
	ErrTournamentEnded         = errors.New("tournament ended")
	ErrTournamentNotStarted    = errors.New("tournament not started")
	ErrTournamentNotEnded      = errors.New("tournament not ended")
	ErrTransferFailed          = errors.New("reward transfer failed")

	ErrAlreadyClaimed     = errors.New("reward already claimed")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrSelfMatch          = errors.New("a player cannot be matched against themselves")
	ErrInvalidCapacity    = errors.New("capacity must be > 0")
)
