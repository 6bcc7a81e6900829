// Package core holds the contracts between the gateway and its
// collaborators. No transport or storage code lives here.
package core

import (
	"context"
	"time"

	"github.com/nclime/roomcast/internal/domain"
)

// Authenticator resolves a Principal from an opaque bearer credential
// carried on the upgrade request. Validation may block (key lookup,
// user record fetch); callers run it on the connection's own goroutine
// so it cannot stall other connections.
//
// A bad, expired or missing credential is reported as ErrAuthentication;
// the Authenticator never decides whether a connection is rejected.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.Principal, error)
}

// RoomDirectory is the external room catalog. Lookup returns
// ErrRoomNotFound for ids that do not exist.
type RoomDirectory interface {
	Lookup(ctx context.Context, id domain.RoomID) (domain.RoomRef, error)
}

// UserDirectory resolves user records for token subjects and history
// author summaries.
type UserDirectory interface {
	User(ctx context.Context, id domain.UserID) (domain.Author, error)
}

// MessageStore is the append-only persistence collaborator. Append is
// atomic and assigns id and created_at; rows read back later are
// ordered by created_at ascending within a room. Failures surface as
// ErrPersistence; the caller never retries.
type MessageStore interface {
	Append(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, content string) (domain.Message, error)
	List(ctx context.Context, roomID domain.RoomID, limit int, before *time.Time) ([]domain.HistoryMessage, error)
}

// GroupBus is the distributed fan-out transport. Publish delivers an
// event to every member currently joined to the group across all
// processes; members receive their own publishes back like everyone
// else.
//
// Join is idempotent and fatal on failure (ErrBusJoin). Leave is
// best-effort; its error must never block teardown. No ordering is
// guaranteed across publishers, and single-publisher ordering is
// best-effort only (it can be violated across transport reconnects).
type GroupBus interface {
	Join(ctx context.Context, group string, m GroupMember) error
	Leave(ctx context.Context, group string, m GroupMember) error
	Publish(ctx context.Context, group string, ev Event) error
}

// GroupMember is a bus delivery target, one per live connection.
// Deliver must not block; slow receivers drop.
type GroupMember interface {
	ID() string
	Deliver(Event)
}

// Conn is the transport capability the gateway composes instead of
// inheriting a connection base type. Owned by exactly one gateway
// actor.
type Conn interface {
	// ReadFrame blocks for the next inbound text frame.
	ReadFrame() ([]byte, error)
	// TrySend queues an outbound frame, dropping on backpressure.
	TrySend(data []byte) error
	// Close terminates the connection with a websocket close code.
	Close(code int, reason string)
}
