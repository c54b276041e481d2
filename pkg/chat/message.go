package chat

import (
	"context"
	"sync"
	"time"

	"go.sirus.dev/p2p-comm/duochat/pkg/store"
	"go.sirus.dev/p2p-comm/duochat/pkg/utils"
)

// Send will append a message to a room's log. The sender must be one
// of the room's members; the store generates the entry key, so
// concurrent sends never collide.
func (a *API) Send(ctx context.Context, param SendMessageParam) (*MessageModel, error) {
	if param.Body == "" {
		return nil, &ValidationError{Reason: InvalidBodyError}
	}
	// get room detail to validate the sender
	room, err := a.GetByID(ctx, param.RoomID)
	if err != nil {
		return nil, err
	}
	if !utils.ContainString(room.MemberIDs(), param.FromUserID) {
		return nil, &ValidationError{Reason: SenderNotInRoomError}
	}
	// save message instance
	msg := &MessageModel{
		RoomID:    param.RoomID,
		Body:      param.Body,
		From:      param.FromUserID,
		CreatedAt: time.Now(),
	}
	key, err := a.Store.Set(ctx, MessagesOf(param.RoomID), "", msg.Document())
	if err != nil {
		return nil, storeErr("send message", err)
	}
	msg.ID = key
	// publish message sent events
	a.emit(MessageSent, &MessageEventPayload{
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		From:      msg.From,
		Body:      msg.Body,
	})
	return msg, nil
}

// UpdateMessage will edit a message body and stamp updatedAt.
// Whether the caller is the original sender is not checked.
func (a *API) UpdateMessage(ctx context.Context, param UpdateMessageParam) (*MessageModel, error) {
	if param.Body == "" {
		return nil, &ValidationError{Reason: InvalidBodyError}
	}
	collection := MessagesOf(param.RoomID)
	err := a.Store.Update(ctx, collection, param.MessageID, store.Document{
		"body":      param.Body,
		"updatedAt": time.Now(),
	})
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: MessageNotFoundError}
		}
		return nil, storeErr("update message", err)
	}
	// get updated message data
	doc, err := a.Store.Get(ctx, collection, param.MessageID)
	if err != nil {
		return nil, storeErr("load message", err)
	}
	msg := MessageFromDocument(param.MessageID, param.RoomID, doc)
	// publish message updated events
	a.emit(MessageUpdated, &MessageEventPayload{
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		From:      msg.From,
		Body:      msg.Body,
	})
	return msg, nil
}

// RemoveMessage will delete a message from a room's log.
// Removing an absent message is a no-op.
func (a *API) RemoveMessage(ctx context.Context, param RemoveMessageParam) error {
	err := a.Store.Delete(ctx, MessagesOf(param.RoomID), param.MessageID)
	if err != nil {
		return storeErr("remove message", err)
	}
	// publish message removed events
	a.emit(MessageRemoved, &MessageEventPayload{
		RoomID:    param.RoomID,
		MessageID: param.MessageID,
	})
	return nil
}

// SubscribeMessages will open a live feed on a room's message log and
// invoke onMessage exactly once for every entry added after the call,
// in feed order. Feed order is not createdAt order when writers race;
// callers that need creation order must sort on their side.
//
// The subscription holds the underlying feed until Cancel; a caller
// that never cancels leaks the feed for the life of the process.
func (a *API) SubscribeMessages(
	ctx context.Context,
	roomID string,
	onMessage func(*MessageModel),
) (*MessageSubscription, error) {
	feed, err := a.Store.Subscribe(ctx, MessagesOf(roomID))
	if err != nil {
		return nil, storeErr("subscribe messages", err)
	}
	sub := &MessageSubscription{
		feed: feed,
		done: make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		seen := map[string]bool{}
		for change := range feed.Changes() {
			if change.Kind != store.Added {
				continue
			}
			// feeds may replay an entry after a resume; deliver once
			if seen[change.Key] {
				continue
			}
			seen[change.Key] = true
			onMessage(MessageFromDocument(change.Key, roomID, change.Doc))
		}
	}()
	return sub, nil
}

// MessageSubscription is a live message feed on one room
type MessageSubscription struct {
	feed store.Subscription
	done chan struct{}
	once sync.Once
}

// Cancel will release the underlying feed. When Cancel returns no
// further onMessage invocation happens.
func (s *MessageSubscription) Cancel() {
	s.once.Do(func() {
		s.feed.Cancel()
		<-s.done
	})
}
