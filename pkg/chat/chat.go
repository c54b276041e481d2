package chat

import (
	"context"
	"time"
)

const (
	// RoomCreated emitted when new room created
	RoomCreated = "chat.room.created"
	// RoomJoined emitted when second member claimed an open room
	RoomJoined = "chat.room.joined"
	// RoomTitleUpdated emitted when room title changed
	RoomTitleUpdated = "chat.room.title-updated"
	// RoomRemoved emitted when room removed, soft or hard
	RoomRemoved = "chat.room.removed"
	// MessageSent emitted when new message persisted on a room
	MessageSent = "chat.message.sent"
	// MessageUpdated emitted when message body edited
	MessageUpdated = "chat.message.updated"
	// MessageRemoved emitted when message deleted from a room
	MessageRemoved = "chat.message.removed"
)

// ChatEvent contain data emitted by events channel
type ChatEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Time    time.Time   `json:"time"`
}

// RoomEventPayload is payload emitted on room instance related events
type RoomEventPayload struct {
	RoomID    string   `json:"room_id"`
	Title     string   `json:"title"`
	MemberIDs []string `json:"member_ids"`
	IsOpen    bool     `json:"is_open"`
	IsRemoved bool     `json:"is_removed"`
}

// MessageEventPayload is payload emitted on message related events
type MessageEventPayload struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Body      string `json:"body"`
}

// MemberParam carry a participant identity supplied by a caller
type MemberParam struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Photo    string `json:"photo"`
}

// NewRoomParam is parameter to create a new room
type NewRoomParam struct {
	Title   string        `json:"title"`
	Members []MemberParam `json:"members"`
}

// JoinRoomParam is parameter to claim an open room
type JoinRoomParam struct {
	RoomID string      `json:"room_id"`
	Member MemberParam `json:"member"`
}

// SetTitleParam is parameter to rename a room
type SetTitleParam struct {
	RoomID string `json:"room_id"`
	Title  string `json:"title"`
}

// RemoveRoomParam is parameter to remove a room.
// Soft keeps the document and marks it removed.
type RemoveRoomParam struct {
	RoomID string `json:"room_id"`
	Soft   bool   `json:"soft"`
}

// SendMessageParam is parameter to append a message to a room
type SendMessageParam struct {
	RoomID     string `json:"room_id"`
	FromUserID string `json:"from_user_id"`
	Body       string `json:"body"`
}

// UpdateMessageParam is parameter to edit a message body
type UpdateMessageParam struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
}

// RemoveMessageParam is parameter to delete a message
type RemoveMessageParam struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

// MutualRoomsParam is parameter to remove every room two users share
type MutualRoomsParam struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
	Soft  bool   `json:"soft"`
}

// IChatAPI is service managing two-party rooms, their message logs
// and the per-user room index
type IChatAPI interface {
	GetEvents() chan *ChatEvent
	SetEvents(chan *ChatEvent)
	Create(ctx context.Context, param NewRoomParam) (*RoomModel, error)
	Join(ctx context.Context, param JoinRoomParam) (*RoomModel, error)
	SetTitle(ctx context.Context, param SetTitleParam) (*RoomModel, error)
	Remove(ctx context.Context, param RemoveRoomParam) error
	GetByID(ctx context.Context, roomID string) (*RoomModel, error)
	GetForUser(ctx context.Context, userID string) ([]*RoomModel, error)
	RecordMembership(ctx context.Context, userID, roomID string) error
	ListMemberships(ctx context.Context, userID string) ([]string, error)
	RetractMembership(ctx context.Context, userID, roomID string) error
	Send(ctx context.Context, param SendMessageParam) (*MessageModel, error)
	UpdateMessage(ctx context.Context, param UpdateMessageParam) (*MessageModel, error)
	RemoveMessage(ctx context.Context, param RemoveMessageParam) error
	SubscribeMessages(ctx context.Context, roomID string, onMessage func(*MessageModel)) (*MessageSubscription, error)
	RemoveMutualRooms(ctx context.Context, param MutualRoomsParam) ([]string, error)
}
