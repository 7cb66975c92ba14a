package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/Yaaesthetic/agno/storage"
)

const runColumns = "id, session_id, user_id, owner, mode, input, output, tool_calls, created_at"

// AppendRun implements storage.Store. Runs of a session are numbered in
// append order inside a transaction.
func (s *Store) AppendRun(ctx context.Context, run storage.Run) error {
	calls, err := json.Marshal(run.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	seq, err := s.nextSeq(ctx, tx, s.table("runs"), "session_id", run.SessionID)
	if err != nil {
		return fmt.Errorf("next run sequence: %w", err)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s, seq) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table("runs"), runColumns)
	if _, err := s.exec(ctx, tx, q,
		run.ID, run.SessionID, run.UserID, run.Owner, run.Mode, run.Input, run.Output, string(calls),
		unixNano(run.CreatedAt), seq); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Runs implements storage.Store.
func (s *Store) Runs(ctx context.Context, sessionID string, limit int) ([]storage.Run, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE session_id = ? ORDER BY seq DESC", runColumns, s.table("runs"))
	args := []any{sessionID}

	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []storage.Run{}

	for rows.Next() {
		var (
			r       storage.Run
			calls   string
			created int64
		)

		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Owner, &r.Mode, &r.Input, &r.Output, &calls, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if calls != "" && calls != "null" {
			if err := json.Unmarshal([]byte(calls), &r.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls of run %s: %w", r.ID, err)
			}
		}

		r.CreatedAt = fromUnixNano(created)
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	slices.Reverse(runs)

	return runs, nil
}

// Sessions implements storage.Store.
func (s *Store) Sessions(ctx context.Context, userID string) ([]storage.SessionInfo, error) {
	q := fmt.Sprintf("SELECT session_id, owner, created_at FROM %s WHERE user_id = ? ORDER BY session_id, seq", s.table("runs"))

	rows, err := s.db.QueryContext(ctx, s.rebind(q), userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	byID := map[string]*storage.SessionInfo{}
	infos := []storage.SessionInfo{}
	order := []string{}

	for rows.Next() {
		var (
			sessionID, owner string
			created          int64
		)

		if err := rows.Scan(&sessionID, &owner, &created); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		info, ok := byID[sessionID]
		if !ok {
			info = &storage.SessionInfo{SessionID: sessionID, UserID: userID}
			byID[sessionID] = info
			order = append(order, sessionID)
		}

		info.Owner = owner
		info.Runs++
		info.UpdatedAt = fromUnixNano(created)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for _, id := range order {
		infos = append(infos, *byID[id])
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].SessionID < infos[j].SessionID
		}

		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	return infos, nil
}

// DeleteSession implements storage.Store.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.exec(ctx, s.db, fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", s.table("runs")), sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}

// PruneRuns deletes runs created before cutoff and reports how many went.
func (s *Store) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, s.db, fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", s.table("runs")), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	s.logger.Info("sqlstore.runs.pruned", "count", n, "before", cutoff.Format(time.RFC3339))

	return n, nil
}
