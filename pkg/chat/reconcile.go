package chat

import (
	"context"

	"go.sirus.dev/p2p-comm/duochat/pkg/utils"
)

// RemoveMutualRooms will remove every room both users share.
// Missing index records propagate as the lookup reports them. Removal
// fans out best-effort: one room's failure is logged and remembered
// but does not stop the remaining rooms. Returns the ids actually
// removed and the first failure, if any.
func (a *API) RemoveMutualRooms(ctx context.Context, param MutualRoomsParam) ([]string, error) {
	roomsA, err := a.ListMemberships(ctx, param.UserA)
	if err != nil {
		return nil, err
	}
	roomsB, err := a.ListMemberships(ctx, param.UserB)
	if err != nil {
		return nil, err
	}
	mutual := utils.IntersectString(roomsA, roomsB)
	removed := []string{}
	var firstErr error
	for _, roomID := range mutual {
		err := a.Remove(ctx, RemoveRoomParam{RoomID: roomID, Soft: param.Soft})
		if err != nil {
			a.Logger.Errorw("failed to remove mutual room",
				"room", roomID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, roomID)
	}
	return removed, firstErr
}
