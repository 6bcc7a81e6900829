// Package store implements the persistence collaborators: an
// append-only message store plus the room and user directories. The
// Postgres implementation targets the existing backend schema; Memory
// backs tests and single-process runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
)

// Postgres serves messages, rooms and users from the shared backend
// database. It owns nothing but the pool handle; schema migrations
// belong to the external backend.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info().Str("module", "store").Msg("postgres connected")
	return &Postgres{db: db}, nil
}

func (s *Postgres) Close() error { return s.db.Close() }

func (s *Postgres) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Append inserts one message and returns it with the assigned id and
// timestamp. Atomic: a failed insert leaves nothing visible.
func (s *Postgres) Append(ctx context.Context, roomID domain.RoomID, authorID domain.UserID, content string) (domain.Message, error) {
	const q = `INSERT INTO chat_message (room_id, user_id, content, created_at)
	           VALUES ($1, $2, $3, now()) RETURNING id, created_at`

	msg := domain.Message{RoomID: roomID, AuthorID: authorID, Content: content}
	err := s.db.QueryRowContext(ctx, q, int64(roomID), int64(authorID), content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return msg, nil
}

// List returns up to limit messages of a room ordered by created_at
// ascending; before, when set, is an exclusive upper bound.
func (s *Postgres) List(ctx context.Context, roomID domain.RoomID, limit int, before *time.Time) ([]domain.HistoryMessage, error) {
	const q = `SELECT m.id, m.content, m.created_at, u.id, u.email, u.name
	           FROM chat_message m JOIN users_user u ON u.id = m.user_id
	           WHERE m.room_id = $1 AND ($2::timestamptz IS NULL OR m.created_at < $2)
	           ORDER BY m.created_at DESC LIMIT $3`

	var cutoff sql.NullTime
	if before != nil {
		cutoff = sql.NullTime{Time: *before, Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, q, int64(roomID), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var page []domain.HistoryMessage
	for rows.Next() {
		var m domain.HistoryMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedAt, &m.Author.ID, &m.Author.Email, &m.Author.Name); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.RoomID = roomID
		m.AuthorID = m.Author.ID
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Query is newest-first to honor the cursor; page is served oldest-first.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// Lookup resolves a room reference, reporting core.ErrRoomNotFound for
// unknown ids. Activity filtering is the caller's decision.
func (s *Postgres) Lookup(ctx context.Context, id domain.RoomID) (domain.RoomRef, error) {
	const q = `SELECT is_active FROM rooms_room WHERE id = $1`

	ref := domain.RoomRef{ID: id}
	err := s.db.QueryRowContext(ctx, q, int64(id)).Scan(&ref.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomRef{}, fmt.Errorf("%w: room %d", core.ErrRoomNotFound, id)
	}
	if err != nil {
		return domain.RoomRef{}, fmt.Errorf("lookup room %d: %w", id, err)
	}
	return ref, nil
}

func (s *Postgres) User(ctx context.Context, id domain.UserID) (domain.Author, error) {
	const q = `SELECT email, name FROM users_user WHERE id = $1`

	a := domain.Author{ID: id}
	if err := s.db.QueryRowContext(ctx, q, int64(id)).Scan(&a.Email, &a.Name); err != nil {
		return domain.Author{}, fmt.Errorf("lookup user %d: %w", id, err)
	}
	return a, nil
}
