package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/sharkchat/internal/domain"
)

// SQLiteStore implements ConversationStore on a SQLite database.
type SQLiteStore struct {
	db *DB
}

var _ ConversationStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a conversation store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create records a new conversation.
func (s *SQLiteStore) Create(ctx context.Context, sess domain.Session) error {
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO conversations (id, key_str, channel_id, chat_id, sender_id, state,
			captured_zip, captured_phone, captured_name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Key.String(), sess.Key.ChannelID, sess.Key.ChatID, sess.Key.SenderID,
		string(sess.State), sess.Context.CapturedZip, sess.Context.CapturedPhone, sess.Context.CapturedName,
		formatTime(created), formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("creating conversation %s: %w", sess.ID, err)
	}
	return nil
}

// Append adds messages to a conversation transcript in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, msg := range msgs {
		var action sql.NullString
		if msg.Action != nil {
			data, err := json.Marshal(msg.Action)
			if err != nil {
				return fmt.Errorf("encoding action: %w", err)
			}
			action = sql.NullString{String: string(data), Valid: true}
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, origin, text, action, timestamp) VALUES (?, ?, ?, ?, ?)`,
			sessionID, string(msg.Origin), msg.Text, action, formatTime(ts),
		); err != nil {
			return fmt.Errorf("appending to %s: %w", sessionID, err)
		}
	}

	if err := touch(ctx, tx, sessionID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveState records the conversation's state and captured context.
func (s *SQLiteStore) SaveState(ctx context.Context, sessionID string, state domain.State, sc domain.SessionContext) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE conversations SET state = ?, captured_zip = ?, captured_phone = ?, captured_name = ?, updated_at = ?
		 WHERE id = ?`,
		string(state), sc.CapturedZip, sc.CapturedPhone, sc.CapturedName, formatTime(time.Now()), sessionID,
	)
	if err != nil {
		return fmt.Errorf("saving state of %s: %w", sessionID, err)
	}
	return requireRow(res)
}

// End marks a conversation closed. Ending twice keeps the first close time.
func (s *SQLiteStore) End(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE conversations SET closed_at = COALESCE(closed_at, ?), updated_at = ? WHERE id = ?`,
		formatTime(at), formatTime(at), sessionID,
	)
	if err != nil {
		return fmt.Errorf("ending %s: %w", sessionID, err)
	}
	return requireRow(res)
}

const conversationColumns = `id, channel_id, chat_id, sender_id, state, captured_zip, captured_phone,
	captured_name, created_at, updated_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (domain.Session, error) {
	var (
		sess             domain.Session
		state            string
		created, updated string
		closed           sql.NullString
	)
	err := row.Scan(
		&sess.ID, &sess.Key.ChannelID, &sess.Key.ChatID, &sess.Key.SenderID, &state,
		&sess.Context.CapturedZip, &sess.Context.CapturedPhone, &sess.Context.CapturedName,
		&created, &updated, &closed,
	)
	if err != nil {
		return sess, err
	}
	sess.State = domain.State(state)
	sess.Context.SessionID = sess.ID
	sess.CreatedAt = parseTime(created)
	sess.UpdatedAt = parseTime(updated)
	if closed.Valid {
		t := parseTime(closed.String)
		sess.ClosedAt = &t
	}
	return sess, nil
}

// Get returns a conversation with its transcript.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.sql.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, sessionID)
	sess, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", sessionID, err)
	}

	msgs, err := s.loadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs
	return &sess, nil
}

// List returns conversations ordered by most recent activity.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// StartCall records a new connecting call attempt.
func (s *SQLiteStore) StartCall(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO call_attempts (conversation_id, status, started_at) VALUES (?, ?, ?)`,
		sessionID, string(domain.CallConnecting), formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("recording call for %s: %w", sessionID, err)
	}
	return res.LastInsertId()
}

// FinishCall records a call attempt's outcome. Connected is not terminal, so
// it updates the status without setting ended_at.
func (s *SQLiteStore) FinishCall(ctx context.Context, callID int64, status domain.CallStatus, reason string, at time.Time) error {
	var ended sql.NullString
	if !status.Active() {
		ended = sql.NullString{String: formatTime(at), Valid: true}
	}
	res, err := s.db.sql.ExecContext(ctx,
		`UPDATE call_attempts SET status = ?, reason = ?, ended_at = ? WHERE id = ?`,
		string(status), reason, ended, callID,
	)
	if err != nil {
		return fmt.Errorf("updating call %d: %w", callID, err)
	}
	return requireRow(res)
}

// Calls returns a conversation's call attempts in start order.
func (s *SQLiteStore) Calls(ctx context.Context, sessionID string) ([]domain.CallAttempt, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, conversation_id, status, reason, started_at, ended_at
		 FROM call_attempts WHERE conversation_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing calls for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []domain.CallAttempt
	for rows.Next() {
		var (
			c       domain.CallAttempt
			status  string
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &status, &c.Reason, &started, &ended); err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		c.Status = domain.CallStatus(status)
		c.StartedAt = parseTime(started)
		if ended.Valid {
			t := parseTime(ended.String)
			c.EndedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Prune deletes conversations (with their messages and calls) last updated
// before the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	cutoff := formatTime(before)
	stale := `SELECT id FROM conversations WHERE updated_at < ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id IN (`+stale+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("pruning messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM call_attempts WHERE conversation_id IN (`+stale+`)`, cutoff); err != nil {
		return 0, fmt.Errorf("pruning calls: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	if n > 0 {
		s.db.log.Info().Int64("conversations", n).Time("before", before).Msg("pruned conversations")
	}
	return int(n), nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT origin, text, action, timestamp FROM messages WHERE conversation_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			msg    domain.Message
			origin string
			action sql.NullString
			ts     string
		)
		if err := rows.Scan(&origin, &msg.Text, &action, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Origin = domain.Origin(origin)
		msg.Timestamp = parseTime(ts)
		if action.Valid && action.String != "" {
			var a domain.Action
			if err := json.Unmarshal([]byte(action.String), &a); err == nil {
				msg.Action = &a
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func touch(ctx context.Context, tx *sql.Tx, sessionID string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, formatTime(at), sessionID)
	if err != nil {
		return fmt.Errorf("touching %s: %w", sessionID, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
