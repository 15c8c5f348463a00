package service

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/google/uuid"
)

type AddUsersRequest struct {
	ChatRoomID uuid.UUID   `json:"chatRoomId" validate:"required"`
	UserIDs    []uuid.UUID `json:"userIds" validate:"required,min=1,dive,required"`
}

// MemberService состав комнат.
type MemberService struct {
	repo     *repository.Repository
	notifier Notifier
}

func NewMemberService(repo *repository.Repository, notifier Notifier) *MemberService {
	return &MemberService{repo: repo, notifier: notifier}
}

// AddUsersToRoom добавляет только тех, кого ещё нет в комнате, и возвращает их.
// Если добавлять некого, событие не рассылается.
func (s *MemberService) AddUsersToRoom(ctx context.Context, req AddUsersRequest) ([]uuid.UUID, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var (
		room  domain.Room
		added []uuid.UUID
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.repo.LockRoom(ctx, req.ChatRoomID)
		if err != nil {
			return err
		}
		added = room.AddMembers(req.UserIDs...)
		if len(added) == 0 {
			return nil
		}
		return s.repo.UpdateRoom(ctx, room)
	})
	if err != nil {
		return nil, fmt.Errorf("add users to room %s: %w", req.ChatRoomID, err)
	}
	if len(added) == 0 {
		return []uuid.UUID{}, nil
	}

	s.notifier.SendToGroup(room.ID, hub.UserAddedToRoom{
		Message: fmt.Sprintf("%d user(s) added to %s", len(added), room.Name),
		UserIDs: added,
		RoomID:  room.ID,
	})
	return added, nil
}

// KickUser исключает участника. Не участник: ничего не происходит.
func (s *MemberService) KickUser(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.removeMember(ctx, roomID, userID, true)
}

// LeaveRoom добровольный выход. Не участник: ничего не происходит.
func (s *MemberService) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	return s.removeMember(ctx, roomID, userID, false)
}

// IsMember проверка перед вступлением соединения в группу комнаты.
func (s *MemberService) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	ok, err := s.repo.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("repo.IsMember: %w", err)
	}
	return ok, nil
}

// RoomIDs все комнаты пользователя.
func (s *MemberService) RoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rooms, err := s.repo.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("repo.ListUserRooms: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rooms))
	for _, ra := range rooms {
		ids = append(ids, ra.Room.ID)
	}
	return ids, nil
}

func (s *MemberService) removeMember(ctx context.Context, roomID, userID uuid.UUID, kicked bool) error {
	var removed bool
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		room, err := s.repo.LockRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if removed = room.RemoveMember(userID); !removed {
			return nil
		}
		return s.repo.UpdateRoom(ctx, room)
	})
	if err != nil {
		return fmt.Errorf("remove member %s from room %s: %w", userID, roomID, err)
	}
	if !removed {
		return nil
	}

	// событие видят и соединения уходящего, затем они выводятся из группы
	s.notifier.SendToGroup(roomID, hub.UserLeftRoom{UserID: userID, RoomID: roomID, IsKicked: kicked})
	s.notifier.RemoveUserFromGroup(userID, roomID)
	return nil
}
