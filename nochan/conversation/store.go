package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store persists conversations in libsql. Safe for concurrent use by
// different conversation keys; per-key write ordering is the orchestrator's
// busy-rejection invariant, not a storage guarantee.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a conversation store on an already-migrated database.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "conversation").Logger(),
	}
}

// GetActive returns the most recently created active conversation for the
// key, or nil if none exists.
func (s *Store) GetActive(ctx context.Context, key string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_key, COALESCE(continuation_token, ''), status, created_at, updated_at
		 FROM conversations
		 WHERE conversation_key = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		key, StatusActive,
	)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get active for %s: %v", ErrStorage, key, err)
	}
	return conv, nil
}

// Create inserts a new active conversation for the key. It does not archive
// an existing active row; callers archive first when single-active semantics
// are required.
func (s *Store) Create(ctx context.Context, key string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Key:       key,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, conversation_key, continuation_token, status, created_at, updated_at)
		 VALUES (?, ?, NULL, ?, ?, ?)`,
		conv.ID, key, StatusActive, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create for %s: %v", ErrStorage, key, err)
	}

	s.logger.Info().Str("conversation_id", conv.ID).Str("key", key).Msg("Created conversation")
	return conv, nil
}

// ArchiveActive marks every active conversation for the key as archived.
// Returns whether any row was changed.
func (s *Store) ArchiveActive(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = ?
		 WHERE conversation_key = ? AND status = ?`,
		StatusArchived, formatTime(time.Now().UTC()), key, StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("%w: archive active for %s: %v", ErrStorage, key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: archive active for %s: %v", ErrStorage, key, err)
	}

	if affected > 0 {
		s.logger.Info().Str("key", key).Int64("rows", affected).Msg("Archived active conversation")
	}
	return affected > 0, nil
}

// SetContinuationToken records the agent session id on an existing row.
// A nonexistent id updates nothing and is not an error; callers pass ids they
// just created or fetched.
func (s *Store) SetContinuationToken(ctx context.Context, id, token string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET continuation_token = ?, updated_at = ? WHERE id = ?`,
		token, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("%w: set continuation token for %s: %v", ErrStorage, id, err)
	}

	s.logger.Debug().Str("conversation_id", id).Str("token", token).Msg("Stored continuation token")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var createdAt, updatedAt string
	if err := row.Scan(&conv.ID, &conv.Key, &conv.ContinuationToken, &conv.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// timeLayout is RFC 3339 with fixed nanosecond width so stored timestamps
// sort lexicographically; ORDER BY created_at relies on this.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
