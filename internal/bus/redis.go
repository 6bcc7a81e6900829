package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/core"
)

// Redis is the multi-process core.GroupBus. Group keys map 1:1 to
// pub/sub channels; each process keeps one shared PubSub subscription
// and fans received events out to its local members.
//
// Delivery is at-most-once per connected subscriber (Redis pub/sub has
// no replay). Chat events are durable before they are published, so a
// missed live event is recoverable through history; signals are
// best-effort by nature. Single-publisher ordering can be violated
// across reconnects of the reader.
type Redis struct {
	client *redis.Client
	sub    *redis.PubSub
	groups *subscriptions
}

// NewRedis connects, verifies the transport with a ping and starts the
// subscription reader. The reader stops when ctx is cancelled.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	sub := client.Subscribe(ctx)
	b := &Redis{
		client: client,
		sub:    sub,
		groups: newSubscriptions(sub),
	}
	go b.read(ctx)
	return b, nil
}

func (b *Redis) Join(ctx context.Context, group string, m core.GroupMember) error {
	return b.groups.join(ctx, group, m)
}

func (b *Redis) Leave(ctx context.Context, group string, m core.GroupMember) error {
	return b.groups.leave(ctx, group, m)
}

// channelSubscriber is the slice of *redis.PubSub the bus drives for
// channel state.
type channelSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
}

// subscriptions ties local membership to pub/sub channel state: the
// first join of a group subscribes its channel, the last leave
// unsubscribes it. The membership mutation and the channel call run
// under that group's transition lock. Without the lock a last-leave
// racing a first-join can land its Unsubscribe after the joiner's
// Subscribe, stranding the new member on a dead channel, and a join
// overlapping a failing first-join can return success with no
// subscription behind it.
type subscriptions struct {
	members *membership
	locks   groupLocks
	channel channelSubscriber
}

func newSubscriptions(channel channelSubscriber) *subscriptions {
	return &subscriptions{members: newMembership(), channel: channel}
}

func (s *subscriptions) join(ctx context.Context, group string, m core.GroupMember) error {
	unlock := s.locks.lock(group)
	defer unlock()

	if first := s.members.add(group, m); !first {
		return nil
	}
	if err := s.channel.Subscribe(ctx, group); err != nil {
		s.members.remove(group, m)
		return fmt.Errorf("%w: subscribe %s: %v", core.ErrBusJoin, group, err)
	}
	log.Debug().Str("module", "bus").Str("group", group).Msg("channel subscribed")
	return nil
}

func (s *subscriptions) leave(ctx context.Context, group string, m core.GroupMember) error {
	unlock := s.locks.lock(group)
	defer unlock()

	if last := s.members.remove(group, m); !last {
		return nil
	}
	if err := s.channel.Unsubscribe(ctx, group); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", group, err)
	}
	return nil
}

func (s *subscriptions) dispatch(group string, ev core.Event) int {
	return s.members.dispatch(group, ev)
}

// Publish sends the event through Redis; delivery to this process's
// own members happens on the subscription round-trip like everyone
// else's.
func (b *Redis) Publish(ctx context.Context, group string, ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, group, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", group, err)
	}
	return nil
}

func (b *Redis) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Redis) Close() error {
	_ = b.sub.Close()
	return b.client.Close()
}

// read pumps the shared subscription, backing off on transport errors
// until the connection recovers or ctx ends.
func (b *Redis) read(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0

	for {
		msg, err := b.sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			log.Error().Err(err).Str("module", "bus").Dur("retry_in", wait).Msg("subscription read error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		var ev core.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Error().Err(err).Str("module", "bus").Str("group", msg.Channel).Msg("malformed bus event")
			continue
		}
		b.groups.dispatch(msg.Channel, ev)
	}
}
