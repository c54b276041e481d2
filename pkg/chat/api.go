package chat

import (
	"context"
	"sync"
	"time"

	"go.sirus.dev/p2p-comm/duochat/pkg/store"
	"go.uber.org/zap"
)

// NewAPI will create new instance of chat API
func NewAPI(
	db store.Store,
	logger *zap.SugaredLogger,
) *API {
	return &API{
		Store:  db,
		Logger: logger,
	}
}

// API to manage two-party rooms and messages in them
type API struct {
	Store  store.Store
	Logger *zap.SugaredLogger
	Events chan *ChatEvent
}

// GetEvents will return channel use to publish events
func (a *API) GetEvents() chan *ChatEvent {
	return a.Events
}

// SetEvents will set channel use to publish events
func (a *API) SetEvents(events chan *ChatEvent) {
	a.Events = events
}

func (a *API) emit(event string, payload interface{}) {
	if a.Events == nil {
		return
	}
	a.Events <- &ChatEvent{
		Time:    time.Now(),
		Event:   event,
		Payload: payload,
	}
}

func roomPayload(room *RoomModel) *RoomEventPayload {
	return &RoomEventPayload{
		RoomID:    room.ID,
		Title:     room.Title,
		MemberIDs: room.MemberIDs(),
		IsOpen:    room.IsOpen,
		IsRemoved: room.IsRemoved,
	}
}

// Create will create a new open room for the supplied members.
// Validation runs before any write: no partial state on bad input.
func (a *API) Create(ctx context.Context, param NewRoomParam) (*RoomModel, error) {
	if param.Title == "" {
		return nil, &ValidationError{Reason: InvalidTitleError}
	}
	members := []*MemberModel{}
	for _, m := range param.Members {
		if m.UserID == "" {
			return nil, &ValidationError{Reason: InvalidMemberError}
		}
		members = append(members, &MemberModel{
			UserID:   m.UserID,
			Username: m.Username,
			Photo:    m.Photo,
		})
	}
	// save room instance
	room := &RoomModel{
		Title:     param.Title,
		Members:   members,
		CreatedAt: time.Now(),
		IsOpen:    true,
		IsRemoved: false,
	}
	key, err := a.Store.Set(ctx, RoomCollection, "", room.Document())
	if err != nil {
		return nil, storeErr("create room", err)
	}
	room.ID = key
	// index the room for every member
	for _, m := range members {
		err = a.RecordMembership(ctx, m.UserID, room.ID)
		if err != nil {
			return nil, err
		}
	}
	// publish room created events
	a.emit(RoomCreated, roomPayload(room))
	return room, nil
}

// Join will claim an open room for a new member and close it.
// The write is conditioned on the isOpen and isRemoved values read in
// this call, so of two concurrent joins exactly one wins and a removal
// landing after the read still blocks the join; the losing joiner gets
// PrivateRoomError, a removed room AlreadyRemovedError.
func (a *API) Join(ctx context.Context, param JoinRoomParam) (*RoomModel, error) {
	if param.Member.UserID == "" {
		return nil, &ValidationError{Reason: InvalidMemberError}
	}
	// get room detail
	doc, err := a.Store.Get(ctx, RoomCollection, param.RoomID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: RoomNotFoundError}
		}
		return nil, storeErr("load room", err)
	}
	room := RoomFromDocument(param.RoomID, doc)
	if room.IsRemoved {
		return nil, &AlreadyRemovedError{}
	}
	if !room.IsOpen {
		return nil, &PrivateRoomError{}
	}
	// append member and close the room in one conditioned write
	member := &MemberModel{
		UserID:   param.Member.UserID,
		Username: param.Member.Username,
		Photo:    param.Member.Photo,
	}
	room.Members = append(room.Members, member)
	room.IsOpen = false
	err = a.Store.UpdateIf(ctx, RoomCollection, room.ID,
		store.Document{
			"members": membersDocument(room.Members),
			"isOpen":  false,
		},
		store.Document{"isOpen": true, "isRemoved": false},
	)
	if err != nil {
		if store.IsConditionFailed(err) {
			// tell a claimed room apart from one removed since the read
			current, gerr := a.Store.Get(ctx, RoomCollection, room.ID)
			if store.IsKeyNotFound(gerr) {
				return nil, &NotFoundError{Reason: RoomNotFoundError}
			}
			if gerr == nil && RoomFromDocument(room.ID, current).IsRemoved {
				return nil, &AlreadyRemovedError{}
			}
			return nil, &PrivateRoomError{}
		}
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: RoomNotFoundError}
		}
		return nil, storeErr("join room", err)
	}
	// index the room for the new member
	err = a.RecordMembership(ctx, member.UserID, room.ID)
	if err != nil {
		return nil, err
	}
	// publish room joined events
	a.emit(RoomJoined, roomPayload(room))
	return room, nil
}

// SetTitle will rename a room
func (a *API) SetTitle(ctx context.Context, param SetTitleParam) (*RoomModel, error) {
	if param.Title == "" {
		return nil, &ValidationError{Reason: InvalidTitleError}
	}
	// get room detail
	doc, err := a.Store.Get(ctx, RoomCollection, param.RoomID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: RoomNotFoundError}
		}
		return nil, storeErr("load room", err)
	}
	room := RoomFromDocument(param.RoomID, doc)
	if room.IsRemoved {
		return nil, &AlreadyRemovedError{}
	}
	room.Title = param.Title
	// conditioned on isRemoved so a removal after the read blocks the rename
	err = a.Store.UpdateIf(ctx, RoomCollection, room.ID,
		store.Document{"title": param.Title},
		store.Document{"isRemoved": false})
	if err != nil {
		if store.IsConditionFailed(err) {
			return nil, &AlreadyRemovedError{}
		}
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: RoomNotFoundError}
		}
		return nil, storeErr("update room title", err)
	}
	// publish title updated events
	a.emit(RoomTitleUpdated, roomPayload(room))
	return room, nil
}

// Remove will remove a room: soft marks it removed and keeps the
// document, hard deletes it. Soft removal of a removed room and hard
// removal of an absent room are no-ops. Index records of every member
// are retracted best-effort.
func (a *API) Remove(ctx context.Context, param RemoveRoomParam) error {
	// get room detail
	doc, err := a.Store.Get(ctx, RoomCollection, param.RoomID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			if !param.Soft {
				return nil
			}
			return &NotFoundError{Reason: RoomNotFoundError}
		}
		return storeErr("load room", err)
	}
	room := RoomFromDocument(param.RoomID, doc)
	if param.Soft {
		if room.IsRemoved {
			return nil
		}
		err = a.Store.Update(ctx, RoomCollection, room.ID,
			store.Document{"isRemoved": true})
		if err != nil {
			return storeErr("remove room", err)
		}
		room.IsRemoved = true
	} else {
		err = a.Store.Delete(ctx, RoomCollection, room.ID)
		if err != nil {
			return storeErr("remove room", err)
		}
	}
	// retract index entries; failure here must not fail the removal
	for _, m := range room.Members {
		err = a.RetractMembership(ctx, m.UserID, room.ID)
		if err != nil {
			a.Logger.Warnw("failed to retract room membership",
				"room", room.ID, "user", m.UserID, "error", err)
		}
	}
	// publish room removed events
	room.IsRemoved = true
	a.emit(RoomRemoved, roomPayload(room))
	return nil
}

// GetByID will return a room and its members by its id
func (a *API) GetByID(ctx context.Context, roomID string) (*RoomModel, error) {
	doc, err := a.Store.Get(ctx, RoomCollection, roomID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: RoomNotFoundError}
		}
		return nil, storeErr("load room", err)
	}
	return RoomFromDocument(roomID, doc), nil
}

// GetForUser will resolve a user's memberships and load every room in
// parallel. Room ids that no longer resolve to a document are skipped:
// index retraction is best-effort, dangling references are expected.
func (a *API) GetForUser(ctx context.Context, userID string) ([]*RoomModel, error) {
	ids, err := a.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	loaded := make([]*RoomModel, len(ids))
	wg := sync.WaitGroup{}
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			room, err := a.GetByID(ctx, id)
			if err != nil {
				if !IsNotFound(err) {
					a.Logger.Warnw("failed to load room for user",
						"room", id, "user", userID, "error", err)
				}
				return
			}
			loaded[i] = room
		}(i, id)
	}
	wg.Wait()
	rooms := []*RoomModel{}
	for _, room := range loaded {
		if room != nil {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}
