package relay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrRoomAlreadyOpen   = errors.New("room already open")
	ErrRoomNotFound      = errors.New("room not found")
	ErrOutboundSaturated = errors.New("outbound queue saturated")
	ErrServerNotAllowed  = errors.New("server id not allowed")
)

// RoomError records the registry operation and room that failed.
type RoomError struct {
	Op     string
	RoomID uuid.UUID
	Err    error
}

func (e *RoomError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.RoomID, e.Err)
}

func (e *RoomError) Unwrap() error {
	return e.Err
}

func newRoomError(op string, roomID uuid.UUID, err error) *RoomError {
	return &RoomError{Op: op, RoomID: roomID, Err: err}
}
