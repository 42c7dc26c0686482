package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
)

func (s *Store) CreatePermission(ctx context.Context, name string) error {
	if s.db == nil {
		return errNoDB
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("permission name empty")
	}
	if _, err := s.db.ExecContext(ctx, `insert into permissions (name) values ($1)`, name); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: permission %q", authcore.ErrDuplicateName, name)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CreateRole inserts a role and its grants in one transaction.
func (s *Store) CreateRole(ctx context.Context, name string, permissions []string) error {
	if s.db == nil {
		return errNoDB
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("role name empty")
	}
	return withTx(ctx, s.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `insert into roles (name) values ($1)`, name); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return fmt.Errorf("%w: role %q", authcore.ErrDuplicateName, name)
			}
			return fmt.Errorf("db error: %w", err)
		}
		for _, perm := range permissions {
			if err := grant(ctx, tx, name, perm); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GrantPermission(ctx context.Context, role, perm string) error {
	if s.db == nil {
		return errNoDB
	}
	return grant(ctx, s.db, role, perm)
}

func grant(ctx context.Context, db DBTX, role, perm string) error {
	_, err := db.ExecContext(ctx, `
		insert into role_permissions (role_name, permission_name)
		values ($1, $2)
		on conflict do nothing
	`, role, perm)
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		if strings.Contains(pgErr.ConstraintName, "role_name") {
			return fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		return fmt.Errorf("%w: %s", authcore.ErrUnknownPermission, perm)
	}
	return fmt.Errorf("db error: %w", err)
}

// AssignRole gives userID the role. Assigning a held role is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, role string) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_name)
		values ($1, $2)
		on conflict do nothing
	`, userID, role)
	if err == nil {
		return nil
	}
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		if strings.Contains(pgErr.ConstraintName, "user_id") {
			return authcore.ErrUserNotFound
		}
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return fmt.Errorf("db error: %w", err)
}

// ListRoles returns the permission catalogue and every role with its
// grants, in the shape permission.Load and Engine.ReloadRoles accept.
func (s *Store) ListRoles(ctx context.Context) ([]string, []permission.RoleDef, error) {
	if s.db == nil {
		return nil, nil, errNoDB
	}

	permRows, err := s.db.QueryContext(ctx, `select name from permissions order by name`)
	if err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	defer permRows.Close()

	var perms []string
	for permRows.Next() {
		var name string
		if err := permRows.Scan(&name); err != nil {
			return nil, nil, fmt.Errorf("db error: %w", err)
		}
		perms = append(perms, name)
	}
	if err := permRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		select r.name, coalesce(rp.permission_name, '')
		from roles r
		left join role_permissions rp on rp.role_name = r.name
		order by r.name, rp.permission_name
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var roles []permission.RoleDef
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, nil, fmt.Errorf("db error: %w", err)
		}
		if n := len(roles); n == 0 || roles[n-1].Name != role {
			roles = append(roles, permission.RoleDef{Name: role})
		}
		if perm != "" {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("db error: %w", err)
	}
	return perms, roles, nil
}
