package http

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/pkg/httputil"
)

// GET /chat/groups/{userId}
func (h *Handler) GetUserRooms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := self(r)
	if err != nil {
		writeError(ctx, w, "GetUserRooms", err)
		return
	}
	pageIndex, pageSize := page(r)
	res, err := h.roomSvc.GetUserRooms(ctx, userID, pageIndex, pageSize)
	if err != nil {
		writeError(ctx, w, "GetUserRooms", err)
		return
	}
	httputil.OK(ctx, w, res)
}

// GET /chatrooms/{id}?pageIndex=&pageSize=
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID, err := pathUUID(r, "id")
	if err != nil {
		writeError(ctx, w, "GetRoom", err)
		return
	}
	pageIndex, pageSize := page(r)
	res, err := h.roomSvc.GetRoom(ctx, roomID, pageIndex, pageSize)
	if err != nil {
		writeError(ctx, w, "GetRoom", err)
		return
	}
	httputil.OK(ctx, w, res)
}

// POST /chatrooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.CreateRoomRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, "CreateRoom", err)
		return
	}
	room, err := h.roomSvc.CreateRoom(ctx, in)
	if err != nil {
		writeError(ctx, w, "CreateRoom", err)
		return
	}
	httputil.Created(ctx, w, room)
}

// PUT /chatrooms
func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.UpdateRoomRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, "UpdateRoom", err)
		return
	}
	room, err := h.roomSvc.UpdateRoom(ctx, in)
	if err != nil {
		writeError(ctx, w, "UpdateRoom", err)
		return
	}
	httputil.OK(ctx, w, room)
}

// DELETE /chatrooms/{id}
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID, err := pathUUID(r, "id")
	if err != nil {
		writeError(ctx, w, "DeleteRoom", err)
		return
	}
	if err := h.roomSvc.DeleteRoom(ctx, roomID); err != nil {
		writeError(ctx, w, "DeleteRoom", err)
		return
	}
	httputil.NoContent(w)
}

// POST /chatrooms/add-users
func (h *Handler) AddUsersToRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.AddUsersRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, "AddUsersToRoom", err)
		return
	}
	if _, err := h.memberSvc.AddUsersToRoom(ctx, in); err != nil {
		writeError(ctx, w, "AddUsersToRoom", err)
		return
	}
	httputil.NoContent(w)
}

// POST /chatrooms/kick-user?chatRoomId=&userIdToKick=
func (h *Handler) KickUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID, err := queryUUID(r, "chatRoomId")
	if err != nil {
		writeError(ctx, w, "KickUser", err)
		return
	}
	userID, err := queryUUID(r, "userIdToKick")
	if err != nil {
		writeError(ctx, w, "KickUser", err)
		return
	}
	if err := h.memberSvc.KickUser(ctx, roomID, userID); err != nil {
		writeError(ctx, w, "KickUser", err)
		return
	}
	httputil.NoContent(w)
}

// POST /chatrooms/leave?chatRoomId=
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID, err := queryUUID(r, "chatRoomId")
	if err != nil {
		writeError(ctx, w, "LeaveRoom", err)
		return
	}
	if err := h.memberSvc.LeaveRoom(ctx, roomID, security.UserIDFromCtx(ctx)); err != nil {
		writeError(ctx, w, "LeaveRoom", err)
		return
	}
	httputil.NoContent(w)
}
