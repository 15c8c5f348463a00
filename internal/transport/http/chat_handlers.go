package http

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/pkg/httputil"
)

// GET /chat/private?user1=&user2=&pageIndex=&pageSize=
func (h *Handler) GetPrivateMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user1, err := queryUUID(r, "user1")
	if err != nil {
		writeError(ctx, w, "GetPrivateMessages", err)
		return
	}
	user2, err := queryUUID(r, "user2")
	if err != nil {
		writeError(ctx, w, "GetPrivateMessages", err)
		return
	}

	reader, partner := security.UserIDFromCtx(ctx), user2
	switch reader {
	case user1:
	case user2:
		partner = user1
	default:
		writeError(ctx, w, "GetPrivateMessages", errForbidden)
		return
	}

	pageIndex, pageSize := page(r)
	res, err := h.chatSvc.GetPrivateMessages(ctx, reader, partner, pageIndex, pageSize)
	if err != nil {
		writeError(ctx, w, "GetPrivateMessages", err)
		return
	}
	httputil.OK(ctx, w, res)
}

// GET /chat/partners/{userId}
func (h *Handler) GetChatPartners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := self(r)
	if err != nil {
		writeError(ctx, w, "GetChatPartners", err)
		return
	}
	pageIndex, pageSize := page(r)
	res, err := h.chatSvc.GetChatPartners(ctx, userID, pageIndex, pageSize)
	if err != nil {
		writeError(ctx, w, "GetChatPartners", err)
		return
	}
	httputil.OK(ctx, w, res)
}

// GET /chat/unread-count?partnerId=&roomId=
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partnerID, err := optionalQueryUUID(r, "partnerId")
	if err != nil {
		writeError(ctx, w, "GetUnreadCount", err)
		return
	}
	roomID, err := optionalQueryUUID(r, "roomId")
	if err != nil {
		writeError(ctx, w, "GetUnreadCount", err)
		return
	}

	n, err := h.chatSvc.CountUnread(ctx, security.UserIDFromCtx(ctx), partnerID, roomID)
	if err != nil {
		writeError(ctx, w, "GetUnreadCount", err)
		return
	}
	httputil.OK(ctx, w, UnreadCountResponse{Count: n})
}

// GET /chat/conversations/{userId}
func (h *Handler) GetUserConversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := self(r)
	if err != nil {
		writeError(ctx, w, "GetUserConversations", err)
		return
	}
	pageIndex, pageSize := page(r)
	res, err := h.chatSvc.GetUserConversations(ctx, userID, pageIndex, pageSize)
	if err != nil {
		writeError(ctx, w, "GetUserConversations", err)
		return
	}
	httputil.OK(ctx, w, res)
}

// POST /chat/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in SendMessageBody
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, "SendMessage", err)
		return
	}

	view, err := h.chatSvc.SendMessage(ctx, service.SendMessageRequest{
		SenderID:   security.UserIDFromCtx(ctx),
		ReceiverID: in.ReceiverID,
		ChatRoomID: in.ChatRoomID,
		Content:    in.Content,
	})
	if err != nil {
		writeError(ctx, w, "SendMessage", err)
		return
	}
	httputil.Created(ctx, w, view)
}
