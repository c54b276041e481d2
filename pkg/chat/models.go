package chat

import (
	"time"

	"go.sirus.dev/p2p-comm/duochat/pkg/store"
)

// Collections used by the chat core.
// Messages live in a subcollection scoped under their room key;
// the room exclusively owns them.
const (
	RoomCollection    = "rooms"
	IndexCollection   = "roomusers"
	MessageCollection = "messages"
)

// MessagesOf will return the message collection path of a room
func MessagesOf(roomID string) string {
	return store.ScopedCollection(MessageCollection, roomID)
}

// MemberModel define a participant identity attached to a room
type MemberModel struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Photo    string `json:"photo"`
}

// RoomModel define a two-party chat room and its lifecycle state
type RoomModel struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Members   []*MemberModel `json:"members"`
	CreatedAt time.Time      `json:"createdAt"`
	IsOpen    bool           `json:"isOpen"`
	IsRemoved bool           `json:"isRemoved"`
}

// MemberIDs will return user ids of room members, in member order
func (r *RoomModel) MemberIDs() []string {
	ids := []string{}
	for _, m := range r.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// MessageModel define a timestamped text entry scoped to a room
type MessageModel struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"roomId"`
	Body      string     `json:"body"`
	From      string     `json:"from"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Document will encode a member for persistence
func (m *MemberModel) Document() store.Document {
	return store.Document{
		"userId":   m.UserID,
		"username": m.Username,
		"photo":    m.Photo,
	}
}

// Document will encode a room for persistence; the key is kept
// outside the document
func (r *RoomModel) Document() store.Document {
	return store.Document{
		"title":     r.Title,
		"members":   membersDocument(r.Members),
		"createdAt": r.CreatedAt,
		"isOpen":    r.IsOpen,
		"isRemoved": r.IsRemoved,
	}
}

// Document will encode a message for persistence
func (m *MessageModel) Document() store.Document {
	doc := store.Document{
		"body":      m.Body,
		"from":      m.From,
		"createdAt": m.CreatedAt,
	}
	if m.UpdatedAt != nil {
		doc["updatedAt"] = *m.UpdatedAt
	}
	return doc
}

func membersDocument(members []*MemberModel) []interface{} {
	docs := make([]interface{}, len(members))
	for i, m := range members {
		docs[i] = map[string]interface{}(m.Document())
	}
	return docs
}

// MemberFromDocument will construct a member from its stored document
func MemberFromDocument(doc store.Document) *MemberModel {
	return &MemberModel{
		UserID:   stringField(doc, "userId"),
		Username: stringField(doc, "username"),
		Photo:    stringField(doc, "photo"),
	}
}

// RoomFromDocument will construct a room from its stored document
func RoomFromDocument(id string, doc store.Document) *RoomModel {
	room := &RoomModel{
		ID:        id,
		Title:     stringField(doc, "title"),
		CreatedAt: timeField(doc, "createdAt"),
		IsOpen:    boolField(doc, "isOpen"),
		IsRemoved: boolField(doc, "isRemoved"),
		Members:   []*MemberModel{},
	}
	items, _ := doc["members"].([]interface{})
	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		room.Members = append(room.Members, MemberFromDocument(fields))
	}
	return room
}

// MessageFromDocument will construct a message from its stored document
func MessageFromDocument(id, roomID string, doc store.Document) *MessageModel {
	msg := &MessageModel{
		ID:        id,
		RoomID:    roomID,
		Body:      stringField(doc, "body"),
		From:      stringField(doc, "from"),
		CreatedAt: timeField(doc, "createdAt"),
	}
	if _, ok := doc["updatedAt"]; ok {
		updatedAt := timeField(doc, "updatedAt")
		msg.UpdatedAt = &updatedAt
	}
	return msg
}

func stringField(doc store.Document, key string) string {
	val, _ := doc[key].(string)
	return val
}

func boolField(doc store.Document, key string) bool {
	val, _ := doc[key].(bool)
	return val
}

func timeField(doc store.Document, key string) time.Time {
	val, _ := doc[key].(time.Time)
	return val
}
