package postgres

const (
	tableMessages = "chat_messages"
	tableRooms    = "chat_rooms"
	tableMembers  = "chat_room_members"
)

var (
	messageColumns = []string{"id", "sender_id", "receiver_id", "chat_room_id", "content", "sent_at", "is_read"}
	roomColumns    = []string{"id", "name", "created_at"}
)

const queryMemberExists = `EXISTS (SELECT 1 FROM chat_room_members m WHERE m.room_id = chat_rooms.id AND m.user_id = ?)`
