package domain

import "time"

// Message is one persisted unit of room conversation. The store assigns
// ID and CreatedAt on append; the value is immutable afterwards.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"-"`
	AuthorID  UserID    `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Author is the denormalized user summary embedded in outbound chat
// events and history pages.
type Author struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HistoryMessage is a stored message joined with its author summary,
// as served by the history endpoint.
type HistoryMessage struct {
	Message
	Author Author
}
