package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nclime/roomcast/internal/core"
)

// fakeChannel stands in for the pub/sub channel-state calls. It records
// the call sequence, can fail the next Subscribe, and can hold an
// Unsubscribe open so the test controls when it completes.
type fakeChannel struct {
	mu           sync.Mutex
	subscribed   map[string]bool
	calls        []string
	subscribeErr error

	unsubEntered chan struct{}
	unsubRelease chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subscribed: make(map[string]bool)}
}

func (f *fakeChannel) Subscribe(_ context.Context, channels ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "subscribe "+channels[0])
	if f.subscribeErr != nil {
		err := f.subscribeErr
		f.subscribeErr = nil
		return err
	}
	for _, ch := range channels {
		f.subscribed[ch] = true
	}
	return nil
}

func (f *fakeChannel) Unsubscribe(_ context.Context, channels ...string) error {
	if f.unsubEntered != nil {
		close(f.unsubEntered)
		f.unsubEntered = nil
		<-f.unsubRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "unsubscribe "+channels[0])
	for _, ch := range channels {
		delete(f.subscribed, ch)
	}
	return nil
}

func (f *fakeChannel) isSubscribed(ch string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[ch]
}

func (f *fakeChannel) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestSubscriptionsFirstJoinLastLeave(t *testing.T) {
	ch := newFakeChannel()
	s := newSubscriptions(ch)
	ctx := context.Background()

	a, bb := newRecorder("a"), newRecorder("b")
	require.NoError(t, s.join(ctx, "room_3", a))
	require.NoError(t, s.join(ctx, "room_3", bb))
	assert.Equal(t, []string{"subscribe room_3"}, ch.callLog(), "only the first join touches the channel")

	require.NoError(t, s.leave(ctx, "room_3", a))
	assert.True(t, ch.isSubscribed("room_3"))

	require.NoError(t, s.leave(ctx, "room_3", bb))
	assert.False(t, ch.isSubscribed("room_3"), "last leave drops the channel")
}

// A last-member leave and a new first-member join on the same group
// must not interleave their channel calls: if the join's subscribe
// could land before the leave's unsubscribe, the new member would sit
// registered on an unsubscribed channel and receive nothing.
func TestSubscriptionsLeaveJoinTransitionSerialized(t *testing.T) {
	ch := newFakeChannel()
	entered := make(chan struct{})
	release := make(chan struct{})
	ch.unsubEntered = entered
	ch.unsubRelease = release

	s := newSubscriptions(ch)
	ctx := context.Background()

	a, bb := newRecorder("a"), newRecorder("b")
	require.NoError(t, s.join(ctx, "room_3", a))

	leaveDone := make(chan struct{})
	go func() {
		defer close(leaveDone)
		assert.NoError(t, s.leave(ctx, "room_3", a))
	}()
	<-entered // leave is inside its unsubscribe call

	joinDone := make(chan struct{})
	go func() {
		defer close(joinDone)
		assert.NoError(t, s.join(ctx, "room_3", bb))
	}()

	select {
	case <-joinDone:
		t.Fatal("join completed while the leave transition was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-leaveDone
	<-joinDone

	assert.Equal(t, []string{"subscribe room_3", "unsubscribe room_3", "subscribe room_3"}, ch.callLog())
	assert.True(t, ch.isSubscribed("room_3"))
	assert.Equal(t, 1, s.dispatch("room_3", ev(`{}`)))
	assert.Equal(t, 1, bb.count())
}

// When the first join's subscribe fails, a following join of the same
// group must perform the subscribe itself rather than piggyback on a
// subscription that never happened.
func TestSubscriptionsFailedSubscribeDoesNotStrandNextJoin(t *testing.T) {
	ch := newFakeChannel()
	ch.subscribeErr = errors.New("transport down")

	s := newSubscriptions(ch)
	ctx := context.Background()

	a, bb := newRecorder("a"), newRecorder("b")
	err := s.join(ctx, "room_3", a)
	require.ErrorIs(t, err, core.ErrBusJoin)

	require.NoError(t, s.join(ctx, "room_3", bb))
	assert.True(t, ch.isSubscribed("room_3"))

	s.dispatch("room_3", ev(`{}`))
	assert.Equal(t, 0, a.count(), "failed joiner was rolled back")
	assert.Equal(t, 1, bb.count())
}

func TestSubscriptionsConcurrentChurnStaysConsistent(t *testing.T) {
	ch := newFakeChannel()
	s := newSubscriptions(ch)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := newRecorder(fmt.Sprintf("m%d", i))
			for j := 0; j < 25; j++ {
				assert.NoError(t, s.join(ctx, "room_3", m))
				assert.NoError(t, s.leave(ctx, "room_3", m))
			}
		}(i)
	}
	wg.Wait()

	assert.False(t, ch.isSubscribed("room_3"), "empty group must end unsubscribed")
	calls := ch.callLog()
	for i, call := range calls {
		want := "subscribe room_3"
		if i%2 == 1 {
			want = "unsubscribe room_3"
		}
		assert.Equal(t, want, call, "channel calls must strictly alternate")
	}
	assert.Equal(t, 0, len(calls)%2)
}
