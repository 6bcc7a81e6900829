package domain

import "fmt"

// RoomRef is a read-only view of a room owned by the external room
// directory. The gateway looks it up once per handshake and never
// mutates it.
type RoomRef struct {
	ID       RoomID
	IsActive bool
}

// GroupKey derives the broadcast group for a room. For the Redis bus
// this doubles as the pub/sub channel name.
func (r RoomRef) GroupKey() string {
	return GroupKey(r.ID)
}

func GroupKey(id RoomID) string {
	return fmt.Sprintf("room_%d", id)
}
