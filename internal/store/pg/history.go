package pg

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/oklog/ulid/v2"
)

// AppendLoginHistory inserts one row. Rows get a ULID so they sort by
// insertion time.
func (s *Store) AppendLoginHistory(ctx context.Context, entry authcore.LoginHistoryEntry) error {
	if s.db == nil {
		return errNoDB
	}
	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into login_history (id, user_id, ts, ip_address, location, user_agent)
		values ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Timestamp, entry.IPAddress, entry.Location, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// LoginHistory returns the newest entries first.
func (s *Store) LoginHistory(ctx context.Context, userID string, limit int) ([]authcore.LoginHistoryEntry, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, ts, ip_address, location, user_agent
		from login_history
		where user_id = $1
		order by ts desc, id desc
		limit $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]authcore.LoginHistoryEntry, 0, limit)
	for rows.Next() {
		var e authcore.LoginHistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &e.IPAddress, &e.Location, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
