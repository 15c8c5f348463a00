package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type CreateRoomRequest struct {
	Name    string      `json:"name" validate:"required,max=100"`
	UserIDs []uuid.UUID `json:"userIds"`
}

type UpdateRoomRequest struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Name string    `json:"name" validate:"required,max=100"`
}

type RoomService struct {
	repo     *repository.Repository
	notifier Notifier

	now func() time.Time
}

func NewRoomService(repo *repository.Repository, notifier Notifier) *RoomService {
	return &RoomService{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *RoomService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateRoom создаёт комнату; участники = переданный список без повторов.
func (s *RoomService) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.RoomView, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return domain.RoomView{}, err
	}

	room := domain.NewRoom(req.Name, lo.Uniq(req.UserIDs), s.now())
	saved, err := s.repo.CreateRoom(ctx, room)
	if err != nil {
		return domain.RoomView{}, fmt.Errorf("repo.CreateRoom: %w", err)
	}
	return domain.NewRoomView(saved), nil
}

// GetRoom комната и страница её сообщений от новых к старым.
func (s *RoomService) GetRoom(ctx context.Context, roomID uuid.UUID, pageIndex, pageSize int) (domain.RoomDetails, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return domain.RoomDetails{}, fmt.Errorf("repo.GetRoom: %w", err)
	}
	history, err := s.repo.GetRoomHistory(ctx, roomID, pageIndex, pageSize)
	if err != nil {
		return domain.RoomDetails{}, fmt.Errorf("repo.GetRoomHistory: %w", err)
	}
	last, err := s.repo.LastRoomMessage(ctx, roomID)
	if err != nil {
		return domain.RoomDetails{}, fmt.Errorf("repo.LastRoomMessage: %w", err)
	}

	render := func(m domain.Message) domain.MessageView { return domain.NewMessageView(m, room.Name) }
	details := domain.RoomDetails{
		RoomView: domain.NewRoomView(room),
		Messages: domain.MapPage(history, render),
	}
	if last != nil {
		view := render(*last)
		details.LastMessage = &view
	}
	return details, nil
}

// GetUserRooms комнаты пользователя, сначала с самой свежей активностью.
func (s *RoomService) GetUserRooms(ctx context.Context, userID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.RoomView], error) {
	page, err := s.repo.GetUserRooms(ctx, userID, pageIndex, pageSize)
	if err != nil {
		return domain.PagedResult[domain.RoomView]{}, fmt.Errorf("repo.GetUserRooms: %w", err)
	}
	return domain.MapPage(page, func(ra repository.RoomActivity) domain.RoomView {
		view := domain.NewRoomView(ra.Room)
		if ra.LastMessage != nil {
			last := domain.NewMessageView(*ra.LastMessage, ra.Room.Name)
			view.LastMessage = &last
		}
		return view
	}), nil
}

// UpdateRoom меняет имя комнаты и рассылает ChatRoomUpdated её группе.
func (s *RoomService) UpdateRoom(ctx context.Context, req UpdateRoomRequest) (domain.RoomView, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return domain.RoomView{}, err
	}

	var room domain.Room
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.repo.LockRoom(ctx, req.ID)
		if err != nil {
			return err
		}
		room.Name = req.Name
		// состав не трогаем
		return s.repo.UpdateRoom(ctx, domain.Room{ID: room.ID, Name: room.Name, CreatedAt: room.CreatedAt})
	})
	if err != nil {
		return domain.RoomView{}, fmt.Errorf("update room %s: %w", req.ID, err)
	}

	view := domain.NewRoomView(room)
	s.notifier.SendToGroup(room.ID, hub.ChatRoomUpdated{RoomView: view})
	return view, nil
}

// DeleteRoom удаляет комнату вместе с сообщениями, уведомляет группу и распускает её.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	if err := s.repo.DeleteRoom(ctx, roomID); err != nil {
		return fmt.Errorf("repo.DeleteRoom: %w", err)
	}
	s.notifier.SendToGroup(roomID, hub.ChatRoomDeleted{RoomID: roomID})
	s.notifier.DropGroup(roomID)
	return nil
}
