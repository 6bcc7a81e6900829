package core

import "errors"

var (
	// ErrAuthentication covers bad, expired and missing credentials.
	// The gateway maps it to an anonymous principal and close code 4401.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRoomNotFound is returned by RoomDirectory.Lookup for unknown
	// room ids. Inactive rooms are reported via RoomRef.IsActive.
	ErrRoomNotFound = errors.New("room not found")

	// ErrBusJoin means the fan-out transport is unreachable. Fatal to
	// the connection attempt, close code 1011.
	ErrBusJoin = errors.New("group join failed")

	// ErrPersistence is a failed message append. Never fatal to the
	// connection; the frame is dropped and logged.
	ErrPersistence = errors.New("message persistence failed")
)

// Websocket close codes used by the handshake.
const (
	CloseUnauthorized  = 4401
	CloseRoomNotFound  = 4404
	CloseInternalError = 1011
)
