package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Yaaesthetic/agno/state"
)

// SaveState implements state.Persister.
func (s *Store) SaveState(ctx context.Context, name string, data []byte) error {
	q := s.upsert(s.table("state"), []string{"name", "data", "updated_at"}, []string{"name"}, []string{"data", "updated_at"})

	if _, err := s.exec(ctx, s.db, q, name, string(data), time.Now().UnixNano()); err != nil {
		return fmt.Errorf("save state %s: %w", name, err)
	}

	return nil
}

// LoadState implements state.Persister.
func (s *Store) LoadState(ctx context.Context, name string) ([]byte, error) {
	var data string

	err := s.queryRow(ctx, s.db, fmt.Sprintf("SELECT data FROM %s WHERE name = ?", s.table("state")), name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("state %s: %w", name, state.ErrSnapshotNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", name, err)
	}

	return []byte(data), nil
}
