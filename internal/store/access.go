package store

import (
	"context"
	"fmt"
	"time"
)

// AddMember inserts userID. It reports false when the user was already present.
func (s *PersistentStore) AddMember(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO access_members (user_id, added_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`),
		userID, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add member %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveMember deletes userID. It reports false when the user was not present.
func (s *PersistentStore) RemoveMember(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM access_members WHERE user_id = ?`), userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PersistentStore) HasMember(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(1) FROM access_members WHERE user_id = ?`), userID).Scan(&one)
	if err != nil {
		return false, fmt.Errorf("failed to check member %d: %w", userID, err)
	}
	return one > 0, nil
}

func (s *PersistentStore) ListMembers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM access_members ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
