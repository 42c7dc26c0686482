package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/google/uuid"
)

// NewUser is the input to CreateUser. PasswordHash must already be an
// encoded hash (see authcore.Engine.HashPassword).
type NewUser struct {
	Email        string
	PasswordHash string
	Superuser    bool
	Verified     bool
}

// CreateUser inserts an active user. A taken email returns
// authcore.ErrDuplicateName.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (authcore.User, error) {
	if s.db == nil {
		return authcore.User{}, errNoDB
	}
	email := normalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" {
		return authcore.User{}, errors.New("email and password hash are required")
	}

	u := authcore.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: in.PasswordHash,
		Active:       true,
		Superuser:    in.Superuser,
		Verified:     in.Verified,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, active, superuser, verified)
		values ($1, $2, $3, true, $4, $5)
		returning registered_at
	`, u.ID, u.Email, u.PasswordHash, u.Superuser, u.Verified).Scan(&u.RegisteredAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return authcore.User{}, fmt.Errorf("%w: email %q", authcore.ErrDuplicateName, email)
		}
		return authcore.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (authcore.User, error) {
	if s.db == nil {
		return authcore.User{}, errNoDB
	}
	if _, err := uuid.Parse(userID); err != nil {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, active, superuser, verified, registered_at
		from users
		where id = $1
	`, userID))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (authcore.User, error) {
	if s.db == nil {
		return authcore.User{}, errNoDB
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, active, superuser, verified, registered_at
		from users
		where email = $1
	`, normalizeEmail(email)))
}

func (s *Store) scanUser(row *sql.Row) (authcore.User, error) {
	var u authcore.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &u.Superuser, &u.Verified, &u.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.User{}, authcore.ErrUserNotFound
	}
	if err != nil {
		return authcore.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// SetActive flips the active flag. Deactivating a user makes their live
// access tokens fail authentication and their next refresh revoke the
// session.
func (s *Store) SetActive(ctx context.Context, userID string, active bool) error {
	if s.db == nil {
		return errNoDB
	}
	if _, err := uuid.Parse(userID); err != nil {
		return authcore.ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, `update users set active = $2 where id = $1`, userID, active)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) GetRolesForUser(ctx context.Context, userID string) ([]string, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select role_name
		from user_roles
		where user_id = $1
		order by role_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}
