package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
)

// Memory keeps everything in process memory. It is the second store
// implementation behind the same interfaces: tests and single-process
// dev runs use it in place of Postgres.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	messages map[domain.RoomID][]domain.Message
	rooms    map[domain.RoomID]domain.RoomRef
	users    map[domain.UserID]domain.Author

	failAppends bool
}

func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		messages: make(map[domain.RoomID][]domain.Message),
		rooms:    make(map[domain.RoomID]domain.RoomRef),
		users:    make(map[domain.UserID]domain.Author),
	}
}

// AddRoom and AddUser seed directory fixtures.
func (s *Memory) AddRoom(ref domain.RoomRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[ref.ID] = ref
}

func (s *Memory) AddUser(a domain.Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[a.ID] = a
}

// SetFailAppends makes every Append return core.ErrPersistence, for
// exercising the drop-on-persistence-failure path.
func (s *Memory) SetFailAppends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppends = fail
}

func (s *Memory) Append(_ context.Context, roomID domain.RoomID, authorID domain.UserID, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppends {
		return domain.Message{}, fmt.Errorf("%w: store unavailable", core.ErrPersistence)
	}
	msg := domain.Message{
		ID:        s.nextID,
		RoomID:    roomID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

func (s *Memory) List(_ context.Context, roomID domain.RoomID, limit int, before *time.Time) ([]domain.HistoryMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[roomID]
	eligible := make([]domain.Message, 0, len(all))
	for _, m := range all {
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		eligible = append(eligible, m)
	}
	if len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}

	page := make([]domain.HistoryMessage, 0, len(eligible))
	for _, m := range eligible {
		page = append(page, domain.HistoryMessage{Message: m, Author: s.users[m.AuthorID]})
	}
	return page, nil
}

func (s *Memory) Lookup(_ context.Context, id domain.RoomID) (domain.RoomRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.rooms[id]
	if !ok {
		return domain.RoomRef{}, fmt.Errorf("%w: room %d", core.ErrRoomNotFound, id)
	}
	return ref, nil
}

func (s *Memory) User(_ context.Context, id domain.UserID) (domain.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[id]
	if !ok {
		return domain.Author{}, fmt.Errorf("unknown user %d", id)
	}
	return a, nil
}

func (s *Memory) Ping(context.Context) error { return nil }
