package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mw/forms/internal/services/forms/domain"
	"github.com/mw/forms/internal/services/forms/storage"
)

// FetchResourcePermission returns the grant stored under key.
func (s *Store) FetchResourcePermission(ctx context.Context, key domain.PermissionKey) (domain.PermissionGrant, error) {
	if err := s.ready(ctx); err != nil {
		return domain.PermissionGrant{}, err
	}
	var (
		grant   domain.PermissionGrant
		scope   int
		actions string
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, company_id, resource_name, scope, primary_key, role_id, actions
		FROM resource_permissions
		WHERE company_id = ? AND resource_name = ? AND scope = ? AND primary_key = ? AND role_id = ?`,
		key.CompanyID, key.ResourceName, int(key.Scope), key.PrimaryKey, key.RoleID,
	).Scan(&grant.ID, &grant.CompanyID, &grant.ResourceName, &scope, &grant.PrimaryKey, &grant.RoleID, &actions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PermissionGrant{}, storage.ErrNotFound
		}
		return domain.PermissionGrant{}, fmt.Errorf("get resource permission: %w", err)
	}
	grant.Scope = domain.ResourceScope(scope)
	grant.Actions = splitActions(actions)
	return grant, nil
}

// SaveResourcePermission upserts a grant by its key and returns the stored row.
func (s *Store) SaveResourcePermission(ctx context.Context, grant domain.PermissionGrant) (domain.PermissionGrant, error) {
	if err := s.ready(ctx); err != nil {
		return domain.PermissionGrant{}, err
	}
	if strings.TrimSpace(grant.ResourceName) == "" || strings.TrimSpace(grant.PrimaryKey) == "" {
		return domain.PermissionGrant{}, fmt.Errorf("permission resource is required")
	}
	if grant.RoleID <= 0 {
		return domain.PermissionGrant{}, fmt.Errorf("permission role is required")
	}
	actions := joinActions(grant.Actions)
	var id int64
	err := s.sqlDB.QueryRowContext(ctx, `
		INSERT INTO resource_permissions (company_id, resource_name, scope, primary_key, role_id, actions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, resource_name, scope, primary_key, role_id)
		DO UPDATE SET actions = excluded.actions
		RETURNING id`,
		grant.CompanyID, grant.ResourceName, int(grant.Scope), grant.PrimaryKey, grant.RoleID, actions,
	).Scan(&id)
	if err != nil {
		return domain.PermissionGrant{}, fmt.Errorf("save resource permission: %w", err)
	}
	grant.ID = id
	grant.Actions = splitActions(actions)
	return grant, nil
}

func joinActions(actions []string) string {
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		action = strings.ToUpper(strings.TrimSpace(action))
		if action != "" {
			out = append(out, action)
		}
	}
	slices.Sort(out)
	return strings.Join(slices.Compact(out), ",")
}

func splitActions(raw string) []string {
	out := []string{}
	for _, action := range strings.Split(raw, ",") {
		if action = strings.TrimSpace(action); action != "" {
			out = append(out, action)
		}
	}
	return out
}
