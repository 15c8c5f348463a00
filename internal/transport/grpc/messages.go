package grpcx

import "github.com/cwrk-planet/chat-service/internal/domain"

type Page struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

type GetPrivateMessagesRequest struct {
	PartnerID string `json:"partnerId"`
	Page
}

type GetChatPartnersRequest struct {
	Page
}

type GetUserRoomsRequest struct {
	Page
}

type CountUnreadRequest struct {
	PartnerID string `json:"partnerId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}

type CountUnreadResponse struct {
	Count int `json:"count"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
	Page
}

type (
	MessagesPage = domain.PagedResult[domain.MessageView]
	PartnersPage = domain.PagedResult[domain.ChatPartner]
	RoomsPage    = domain.PagedResult[domain.RoomView]
	RoomDetails  = domain.RoomDetails
)
