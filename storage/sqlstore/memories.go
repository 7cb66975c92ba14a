package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Yaaesthetic/agno/memory"
)

func encodeTopics(topics []string) (string, error) {
	if len(topics) == 0 {
		return "", nil
	}

	data, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}

	return string(data), nil
}

func decodeTopics(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}

	return topics, nil
}

// UpsertUserMemory implements memory.DB. A replaced memory keeps its
// position in the recency order.
func (s *Store) UpsertUserMemory(ctx context.Context, m memory.UserMemory) error {
	topics, err := encodeTopics(m.Topics)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seq, err := s.nextSeq(ctx, tx, s.table("memories"), "user_id", m.UserID)
	if err != nil {
		return fmt.Errorf("next memory sequence: %w", err)
	}

	q := s.upsert(s.table("memories"),
		[]string{"id", "user_id", "memory", "topics", "seq", "created_at"},
		[]string{"id"},
		[]string{"memory", "topics"})

	if _, err := s.exec(ctx, tx, q, m.ID, m.UserID, m.Memory, topics, seq, unixNano(m.CreatedAt)); err != nil {
		return fmt.Errorf("upsert memory %s: %w", m.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// UserMemories implements memory.DB.
func (s *Store) UserMemories(ctx context.Context, userID string) ([]memory.UserMemory, error) {
	q := fmt.Sprintf("SELECT id, user_id, memory, topics, created_at FROM %s WHERE user_id = ? ORDER BY seq DESC", s.table("memories"))

	rows, err := s.db.QueryContext(ctx, s.rebind(q), userID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	out := []memory.UserMemory{}

	for rows.Next() {
		var (
			m       memory.UserMemory
			topics  sql.NullString
			created int64
		)

		if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &topics, &created); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}

		if m.Topics, err = decodeTopics(topics.String); err != nil {
			return nil, err
		}

		m.CreatedAt = fromUnixNano(created)
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	return out, nil
}

// DeleteUserMemory implements memory.DB.
func (s *Store) DeleteUserMemory(ctx context.Context, userID, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND id = ?", s.table("memories"))

	res, err := s.exec(ctx, s.db, q, userID, id)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return memory.ErrMemoryNotFound
	}

	return nil
}

// UpsertSummary implements memory.DB.
func (s *Store) UpsertSummary(ctx context.Context, sum memory.SessionSummary) error {
	topics, err := encodeTopics(sum.Topics)
	if err != nil {
		return err
	}

	q := s.upsert(s.table("summaries"),
		[]string{"user_id", "session_id", "summary", "topics", "updated_at"},
		[]string{"user_id", "session_id"},
		[]string{"summary", "topics", "updated_at"})

	if _, err := s.exec(ctx, s.db, q, sum.UserID, sum.SessionID, sum.Summary, topics, unixNano(sum.UpdatedAt)); err != nil {
		return fmt.Errorf("upsert summary of session %s: %w", sum.SessionID, err)
	}

	return nil
}

// Summary implements memory.DB.
func (s *Store) Summary(ctx context.Context, userID, sessionID string) (memory.SessionSummary, bool, error) {
	q := fmt.Sprintf("SELECT summary, topics, updated_at FROM %s WHERE user_id = ? AND session_id = ?", s.table("summaries"))

	var (
		sum     = memory.SessionSummary{UserID: userID, SessionID: sessionID}
		topics  sql.NullString
		updated int64
	)

	err := s.queryRow(ctx, s.db, q, userID, sessionID).Scan(&sum.Summary, &topics, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.SessionSummary{}, false, nil
	}

	if err != nil {
		return memory.SessionSummary{}, false, fmt.Errorf("query summary: %w", err)
	}

	if sum.Topics, err = decodeTopics(topics.String); err != nil {
		return memory.SessionSummary{}, false, err
	}

	sum.UpdatedAt = fromUnixNano(updated)

	return sum, true, nil
}

// ClearUser implements memory.DB.
func (s *Store) ClearUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range []string{"memories", "summaries"} {
		if _, err := s.exec(ctx, tx, fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", s.table(t)), userID); err != nil {
			return fmt.Errorf("clear %s of user %s: %w", t, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
