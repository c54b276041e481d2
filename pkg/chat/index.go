package chat

import (
	"context"
	"sort"

	"go.sirus.dev/p2p-comm/duochat/pkg/store"
)

// The room index answers "which rooms does this user belong to"
// without scanning all rooms. One document per user, keyed by user id,
// holding room ids as self-keyed fields (set semantics). Records ride
// the store's atomic upsert, so concurrent records for disjoint room
// ids on the same user all survive, first record included.

// RecordMembership will upsert a room id into a user's index record
func (a *API) RecordMembership(ctx context.Context, userID, roomID string) error {
	err := a.Store.Upsert(ctx, IndexCollection, userID,
		store.Document{roomID: roomID})
	if err != nil {
		return storeErr("record membership", err)
	}
	return nil
}

// ListMemberships will return room ids of a user's index record.
// A user without a record reports NotFoundError: "never chatted" is
// distinct from "record exists but every room was removed".
func (a *API) ListMemberships(ctx context.Context, userID string) ([]string, error) {
	doc, err := a.Store.Get(ctx, IndexCollection, userID)
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil, &NotFoundError{Reason: UserNotIndexedError}
		}
		return nil, storeErr("load membership record", err)
	}
	ids := []string{}
	for roomID := range doc {
		ids = append(ids, roomID)
	}
	sort.Strings(ids)
	return ids, nil
}

// RetractMembership will drop a room id from a user's index record.
// Retracting from an absent record is a no-op.
func (a *API) RetractMembership(ctx context.Context, userID, roomID string) error {
	err := a.Store.Update(ctx, IndexCollection, userID,
		store.Document{roomID: nil})
	if err != nil {
		if store.IsKeyNotFound(err) {
			return nil
		}
		return storeErr("retract membership", err)
	}
	return nil
}
