package bus

import (
	"context"

	"github.com/nclime/roomcast/internal/core"
)

// Local is the single-process core.GroupBus: publishes are delivered
// synchronously to every joined member, including the publisher's own
// connection.
type Local struct {
	members *membership
}

func NewLocal() *Local {
	return &Local{members: newMembership()}
}

func (b *Local) Join(_ context.Context, group string, m core.GroupMember) error {
	b.members.add(group, m)
	return nil
}

func (b *Local) Leave(_ context.Context, group string, m core.GroupMember) error {
	b.members.remove(group, m)
	return nil
}

func (b *Local) Publish(_ context.Context, group string, ev core.Event) error {
	b.members.dispatch(group, ev)
	return nil
}

// Ping satisfies the health probe; an in-process bus is always up.
func (b *Local) Ping(context.Context) error { return nil }
