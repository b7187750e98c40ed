package domain

import "errors"

var (
	// ErrInvalidJoin is returned when a join is missing its name, session id or a known role.
	ErrInvalidJoin = errors.New("invalid join request")
	// ErrParticipantNotFound is returned when a session id is not registered.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrInvalidPoll is returned when a poll draft fails validation.
	ErrInvalidPoll = errors.New("invalid poll")
	// ErrDuplicatePoll is returned when a draft reuses the id of an active poll.
	ErrDuplicatePoll = errors.New("poll already active")
	// ErrPollNotFound is returned when a poll id is not active.
	ErrPollNotFound = errors.New("poll not found")
	// ErrAlreadyAnswered is returned when a voter answers the same poll twice.
	ErrAlreadyAnswered = errors.New("voter already answered")
	// ErrUnknownOption is returned when an answer is not one of the poll's options.
	ErrUnknownOption = errors.New("option not found")
	// ErrInvalidChat is returned for an empty chat message.
	ErrInvalidChat = errors.New("invalid chat message")
	// ErrHistoryNotFound is returned by blob stores that have nothing persisted yet.
	ErrHistoryNotFound = errors.New("poll history not found")
)
