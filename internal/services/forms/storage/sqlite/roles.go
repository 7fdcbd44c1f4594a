package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

// GetRole returns a company role by name.
func (s *Store) GetRole(ctx context.Context, companyID int64, name string) (domain.Role, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Role{}, err
	}
	var role domain.Role
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, company_id, name FROM roles WHERE company_id = ? AND name = ?`,
		companyID, strings.TrimSpace(name),
	).Scan(&role.ID, &role.CompanyID, &role.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Role{}, storage.ErrNotFound
		}
		return domain.Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// EnsureRole returns the named company role, creating it when missing.
func (s *Store) EnsureRole(ctx context.Context, companyID int64, name string) (domain.Role, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Role{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, fmt.Errorf("role name is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO roles (company_id, name) VALUES (?, ?) ON CONFLICT (company_id, name) DO NOTHING`,
		companyID, name,
	); err != nil {
		return domain.Role{}, fmt.Errorf("ensure role: %w", err)
	}
	return s.GetRole(ctx, companyID, name)
}
