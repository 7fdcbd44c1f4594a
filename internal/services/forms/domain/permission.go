package domain

import (
	"slices"
	"strings"
)

// Action keys grantable on a form instance.
const (
	ActionView                  = "VIEW"
	ActionUpdate                = "UPDATE"
	ActionDelete                = "DELETE"
	ActionPermissions           = "PERMISSIONS"
	ActionAddFormInstanceRecord = "ADD_FORM_INSTANCE_RECORD"
)

// ResourceScope is the breadth a permission grant applies to.
type ResourceScope int

const (
	ScopeCompany       ResourceScope = 1
	ScopeGroup         ResourceScope = 2
	ScopeGroupTemplate ResourceScope = 3
	ScopeIndividual    ResourceScope = 4
)

// PermissionKey identifies one grant row.
type PermissionKey struct {
	CompanyID    int64
	ResourceName string
	Scope        ResourceScope
	PrimaryKey   string
	RoleID       int64
}

// PermissionGrant associates a role with the actions it may perform on a
// resource. An action missing from Actions is denied.
type PermissionGrant struct {
	ID int64
	PermissionKey
	Actions []string
}

// HasAction reports whether action is granted.
func (g PermissionGrant) HasAction(action string) bool {
	return slices.Contains(g.Actions, normalizeAction(action))
}

// AddAction grants action and reports whether the set changed.
func (g *PermissionGrant) AddAction(action string) bool {
	action = normalizeAction(action)
	if action == "" || slices.Contains(g.Actions, action) {
		return false
	}
	g.Actions = append(g.Actions, action)
	slices.Sort(g.Actions)
	return true
}

// RemoveAction revokes action and reports whether the set changed.
func (g *PermissionGrant) RemoveAction(action string) bool {
	action = normalizeAction(action)
	idx := slices.Index(g.Actions, action)
	if idx < 0 {
		return false
	}
	g.Actions = slices.Delete(slices.Clone(g.Actions), idx, idx+1)
	return true
}

func normalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
