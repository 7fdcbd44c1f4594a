package domain

// Standard role names every company carries.
const (
	RoleAdministrator = "Administrator"
	RoleGuest         = "Guest"
	RoleOwner         = "Owner"
	RoleUser          = "User"
)

// StandardRoles lists the roles ensured for a company on first use.
var StandardRoles = []string{RoleAdministrator, RoleGuest, RoleOwner, RoleUser}

// Role is a company-scoped role.
type Role struct {
	ID        int64
	CompanyID int64
	Name      string
}
