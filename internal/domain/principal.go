// Package domain contains entity without logic, just meta-data
package domain

type (
	UserID int64
	RoomID int64
)

// Principal is the resolved identity of a connection's caller.
// Resolved once during the handshake and immutable afterwards.
type Principal struct {
	ID            UserID `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Authenticated bool   `json:"-"`
}

// Anonymous is what every failed or absent credential resolves to.
func Anonymous() Principal {
	return Principal{}
}
