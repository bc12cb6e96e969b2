package memory

import "errors"

var (
	// ErrDuplicate is returned when creating a case whose id is taken
	ErrDuplicate = errors.New("case already exists")

	// ErrUnknownSequence is returned when marking an outbox row that does not exist
	ErrUnknownSequence = errors.New("unknown outbox sequence")
)
