package grpcx

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	chatSvc *service.ChatService
	roomSvc *service.RoomService
}

var _ ChatQueryServer = (*Server)(nil)

func NewServer(chatSvc *service.ChatService, roomSvc *service.RoomService) *Server {
	return &Server{
		chatSvc: chatSvc,
		roomSvc: roomSvc,
	}
}

// NewGRPCServer сервер с цепочкой interceptors и зарегистрированным ChatQuery.
func NewGRPCServer(s *Server, auth security.Authenticator, timeout time.Duration, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		UnaryServerInterceptor(timeout),
		AuthUnaryInterceptor(auth),
	))
	gs := grpc.NewServer(opts...)
	RegisterChatQueryServer(gs, s)
	return gs
}

// -------- helpers --------

func caller(ctx context.Context) (uuid.UUID, error) {
	id := security.UserIDFromCtx(ctx)
	if id == uuid.Nil {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing identity")
	}
	return id, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s must be a UUID", field)
	}
	return id, nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// -------- methods --------

func (s *Server) GetPrivateMessages(ctx context.Context, in *GetPrivateMessagesRequest) (*MessagesPage, error) {
	reader, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	partner, err := parseID("partnerId", in.PartnerID)
	if err != nil {
		return nil, err
	}
	page, err := s.chatSvc.GetPrivateMessages(ctx, reader, partner, in.PageIndex, in.PageSize)
	if err != nil {
		return nil, mapErr(err)
	}
	return &page, nil
}

func (s *Server) GetChatPartners(ctx context.Context, in *GetChatPartnersRequest) (*PartnersPage, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.chatSvc.GetChatPartners(ctx, userID, in.PageIndex, in.PageSize)
	if err != nil {
		return nil, mapErr(err)
	}
	return &page, nil
}

func (s *Server) GetUserRooms(ctx context.Context, in *GetUserRoomsRequest) (*RoomsPage, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.roomSvc.GetUserRooms(ctx, userID, in.PageIndex, in.PageSize)
	if err != nil {
		return nil, mapErr(err)
	}
	return &page, nil
}

func (s *Server) CountUnread(ctx context.Context, in *CountUnreadRequest) (*CountUnreadResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	partnerID, err := parseOptionalID("partnerId", in.PartnerID)
	if err != nil {
		return nil, err
	}
	roomID, err := parseOptionalID("roomId", in.RoomID)
	if err != nil {
		return nil, err
	}
	n, err := s.chatSvc.CountUnread(ctx, userID, partnerID, roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	return &CountUnreadResponse{Count: n}, nil
}

func (s *Server) GetRoom(ctx context.Context, in *GetRoomRequest) (*RoomDetails, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	roomID, err := parseID("roomId", in.RoomID)
	if err != nil {
		return nil, err
	}
	details, err := s.roomSvc.GetRoom(ctx, roomID, in.PageIndex, in.PageSize)
	if err != nil {
		return nil, mapErr(err)
	}
	return &details, nil
}
