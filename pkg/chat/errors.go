package chat

import "fmt"

const (
	InvalidTitleError    = "title must be a non-empty string"
	InvalidMemberError   = "member must have a non-empty user id"
	InvalidBodyError     = "body must be a non-empty string"
	SenderNotInRoomError = "from user must be in this chat room"
	RoomNotFoundError    = "room not found"
	MessageNotFoundError = "message not found"
	UserNotIndexedError  = "user has no room membership record"
	RoomRemovedError     = "room has already been removed"
	RoomPrivateError     = "room is private"
)

// ValidationError reported synchronously on malformed input,
// before any store operation
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reported when a referenced room, user or message is absent
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string {
	return e.Reason
}

// AlreadyRemovedError reported on any transition against a removed room
type AlreadyRemovedError struct{}

func (e *AlreadyRemovedError) Error() string {
	return RoomRemovedError
}

// PrivateRoomError reported when a room has already been claimed
// by a second member
type PrivateRoomError struct{}

func (e *PrivateRoomError) Error() string {
	return RoomPrivateError
}

// StoreError wraps a failed document store operation
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsValidation will return true when err is a ValidationError
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// IsNotFound will return true when err is a NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAlreadyRemoved will return true when err is an AlreadyRemovedError
func IsAlreadyRemoved(err error) bool {
	_, ok := err.(*AlreadyRemovedError)
	return ok
}

// IsPrivateRoom will return true when err is a PrivateRoomError
func IsPrivateRoom(err error) bool {
	_, ok := err.(*PrivateRoomError)
	return ok
}

// IsStore will return true when err wraps a store failure
func IsStore(err error) bool {
	_, ok := err.(*StoreError)
	return ok
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
