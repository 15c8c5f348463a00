package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	chatSvc   *service.ChatService
	roomSvc   *service.RoomService
	memberSvc *service.MemberService
}

func NewHandler(chat *service.ChatService, room *service.RoomService, member *service.MemberService) *Handler {
	return &Handler{
		chatSvc:   chat,
		roomSvc:   room,
		memberSvc: member,
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badParam("body", "invalid json")
	}
	return nil
}

// page pageIndex/pageSize из query; нечисловые значения заменяются значениями по умолчанию.
func page(r *http.Request) (int, int) {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(r.URL.Query().Get(key))
		return n
	}
	return atoi("pageIndex"), atoi("pageSize")
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.URL.Query().Get(key))
	if err != nil {
		return uuid.Nil, badParam(key, "must be a UUID")
	}
	return id, nil
}

// optionalQueryUUID nil, если параметр не передан.
func optionalQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	if r.URL.Query().Get(key) == "" {
		return nil, nil
	}
	id, err := queryUUID(r, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, badParam(key, "must be a UUID")
	}
	return id, nil
}

// self {userId} из пути должен совпадать с вызывающим.
func self(r *http.Request) (uuid.UUID, error) {
	id, err := pathUUID(r, "userId")
	if err != nil {
		return uuid.Nil, err
	}
	if id != security.UserIDFromCtx(r.Context()) {
		return uuid.Nil, errForbidden
	}
	return id, nil
}
