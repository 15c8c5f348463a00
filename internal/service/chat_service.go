package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/repository"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	SenderID   uuid.UUID  `json:"senderId" validate:"required"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	ChatRoomID *uuid.UUID `json:"chatRoomId,omitempty"`
	Content    string     `json:"content" validate:"required,max=1000"`
}

// normalize нулевой UUID адресата считается отсутствующим.
func (r SendMessageRequest) normalize() SendMessageRequest {
	r.Content = strings.TrimSpace(r.Content)
	if r.ReceiverID != nil && *r.ReceiverID == uuid.Nil {
		r.ReceiverID = nil
	}
	if r.ChatRoomID != nil && *r.ChatRoomID == uuid.Nil {
		r.ChatRoomID = nil
	}
	return r
}

func (r SendMessageRequest) hasReceiver() bool {
	return r.ReceiverID != nil && *r.ReceiverID != uuid.Nil
}

func (r SendMessageRequest) hasRoom() bool {
	return r.ChatRoomID != nil && *r.ChatRoomID != uuid.Nil
}

type ChatService struct {
	repo     *repository.Repository
	notifier Notifier

	now func() time.Time
}

func NewChatService(repo *repository.Repository, notifier Notifier) *ChatService {
	return &ChatService{
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *ChatService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SendMessage сохраняет сообщение и только после этого доставляет его
// либо группе комнаты, либо соединениям получателя.
func (s *ChatService) SendMessage(ctx context.Context, req SendMessageRequest) (domain.MessageView, error) {
	req = req.normalize()
	if err := validateStruct(req); err != nil {
		return domain.MessageView{}, err
	}

	var (
		saved    domain.Message
		roomName string
	)
	// проверка комнаты и запись в одной транзакции: удаление комнаты не оставит сирот
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var msg domain.Message
		if req.hasRoom() {
			room, err := s.repo.GetRoom(ctx, *req.ChatRoomID)
			if err != nil {
				return fmt.Errorf("repo.GetRoom: %w", err)
			}
			roomName = room.Name
			msg = domain.NewRoomMessage(req.SenderID, room.ID, req.Content, s.now())
		} else {
			msg = domain.NewDirectMessage(req.SenderID, *req.ReceiverID, req.Content, s.now())
		}
		if err := msg.Validate(); err != nil {
			return err
		}

		var err error
		if saved, err = s.repo.SaveMessage(ctx, msg); err != nil {
			return fmt.Errorf("repo.SaveMessage: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.MessageView{}, err
	}

	view := domain.NewMessageView(saved, roomName)
	ev := hub.ReceiveMessage{MessageView: view}
	var delivered int
	if saved.IsRoom() {
		delivered = s.notifier.SendToGroup(*saved.ChatRoomID, ev)
	} else {
		delivered = s.notifier.SendToUser(*saved.ReceiverID, ev)
	}
	slog.DebugContext(ctx, "chat.send delivered",
		slog.String("message_id", saved.ID.String()),
		slog.Int("connections", delivered))

	return view, nil
}

// GetPrivateMessages переписка reader с partner; адресованные reader сообщения становятся прочитанными.
func (s *ChatService) GetPrivateMessages(ctx context.Context, reader, partner uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.MessageView], error) {
	page, err := s.repo.GetPrivateMessages(ctx, reader, partner, pageIndex, pageSize)
	if err != nil {
		return domain.PagedResult[domain.MessageView]{}, fmt.Errorf("repo.GetPrivateMessages: %w", err)
	}
	return domain.MapPage(page, directView), nil
}

func (s *ChatService) GetChatPartners(ctx context.Context, userID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.ChatPartner], error) {
	page, err := s.repo.GetChatPartners(ctx, userID, pageIndex, pageSize)
	if err != nil {
		return domain.PagedResult[domain.ChatPartner]{}, fmt.Errorf("repo.GetChatPartners: %w", err)
	}
	return page, nil
}

// CountUnread roomID важнее partnerID; без обоих считаются все личные непрочитанные.
func (s *ChatService) CountUnread(ctx context.Context, userID uuid.UUID, partnerID, roomID *uuid.UUID) (int, error) {
	n, err := s.repo.CountUnread(ctx, userID, repository.UnreadScope{PartnerID: partnerID, RoomID: roomID})
	if err != nil {
		return 0, fmt.Errorf("repo.CountUnread: %w", err)
	}
	return n, nil
}

// GetUserConversations общая лента собеседников и комнат по убыванию времени последней активности.
// Обе ленты материализуются целиком, страница режется из объединения.
func (s *ChatService) GetUserConversations(ctx context.Context, userID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.Conversation], error) {
	partners, err := s.repo.ListChatPartners(ctx, userID)
	if err != nil {
		return domain.PagedResult[domain.Conversation]{}, fmt.Errorf("repo.ListChatPartners: %w", err)
	}
	rooms, err := s.repo.ListUserRooms(ctx, userID)
	if err != nil {
		return domain.PagedResult[domain.Conversation]{}, fmt.Errorf("repo.ListUserRooms: %w", err)
	}

	feed := make([]domain.Conversation, 0, len(partners)+len(rooms))
	for _, p := range partners {
		last := p.LastMessage
		feed = append(feed, domain.Conversation{
			Type:        domain.ConversationDirect,
			ID:          p.PartnerID,
			Name:        p.PartnerID.String(),
			LastMessage: &last,
			Timestamp:   p.Timestamp,
			UnreadCount: p.UnreadCount,
		})
	}
	for _, ra := range rooms {
		roomID := ra.Room.ID
		unread, err := s.repo.CountUnread(ctx, userID, repository.UnreadScope{RoomID: &roomID})
		if err != nil {
			return domain.PagedResult[domain.Conversation]{}, fmt.Errorf("repo.CountUnread: %w", err)
		}
		c := domain.Conversation{
			Type:        domain.ConversationRoom,
			ID:          roomID,
			Name:        ra.Room.Name,
			Timestamp:   ra.Room.CreatedAt,
			UnreadCount: unread,
		}
		if ra.LastMessage != nil {
			view := domain.NewMessageView(*ra.LastMessage, ra.Room.Name)
			c.LastMessage = &view
			c.Timestamp = ra.LastMessage.Timestamp
		}
		feed = append(feed, c)
	}

	slices.SortStableFunc(feed, func(a, b domain.Conversation) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return domain.SlicePage(feed, pageIndex, pageSize), nil
}

func directView(m domain.Message) domain.MessageView {
	return domain.NewMessageView(m, "")
}
