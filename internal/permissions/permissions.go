package permissions

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrForbidden   = errors.New("permission denied")
	ErrUnknownRole = errors.New("unknown role")
)

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleEstateManager   Role = "estate_manager"
	RoleFacilityManager Role = "facility_manager"
	RoleSecurity        Role = "security"
	RoleStaff           Role = "staff"
	RoleResident        Role = "resident"
)

type Permission string

const (
	ViewsRead   Permission = "views:read"
	ViewsWrite  Permission = "views:write"
	ViewsDelete Permission = "views:delete"

	AnnouncementsRead   Permission = "announcements:read"
	AnnouncementsManage Permission = "announcements:manage"
	BillingRead         Permission = "billing:read"
	BillingManage       Permission = "billing:manage"
	ChatUse             Permission = "chat:use"
	EmergencyTrigger    Permission = "emergency:trigger"
	EmergencyManage     Permission = "emergency:manage"
	HelpdeskCreate      Permission = "helpdesk:create"
	HelpdeskManage      Permission = "helpdesk:manage"
	MaintenanceRead     Permission = "maintenance:read"
	MaintenanceManage   Permission = "maintenance:manage"
	ShiftsRead          Permission = "shifts:read"
	ShiftsManage        Permission = "shifts:manage"
	VisitorsRegister    Permission = "visitors:register"
	VisitorsVerify      Permission = "visitors:verify"
	UsersRead           Permission = "users:read"
	UsersManage         Permission = "users:manage"
)

var roles = map[Role][]Permission{
	RoleAdmin: All(),
	RoleEstateManager: {
		ViewsRead, ViewsWrite, ViewsDelete,
		AnnouncementsRead, AnnouncementsManage,
		BillingRead, BillingManage,
		ChatUse, EmergencyTrigger, EmergencyManage,
		HelpdeskCreate, HelpdeskManage,
		MaintenanceRead, MaintenanceManage,
		ShiftsRead, ShiftsManage,
		VisitorsRegister, VisitorsVerify,
		UsersRead, UsersManage,
	},
	RoleFacilityManager: {
		ViewsRead, ViewsWrite, ViewsDelete,
		AnnouncementsRead, AnnouncementsManage,
		ChatUse, EmergencyTrigger,
		HelpdeskCreate, HelpdeskManage,
		MaintenanceRead, MaintenanceManage,
		ShiftsRead, ShiftsManage,
		UsersRead,
	},
	RoleSecurity: {
		ViewsRead, ViewsWrite,
		AnnouncementsRead,
		ChatUse, EmergencyTrigger, EmergencyManage,
		ShiftsRead,
		VisitorsVerify,
	},
	RoleStaff: {
		ViewsRead, ViewsWrite,
		AnnouncementsRead,
		ChatUse, EmergencyTrigger,
		HelpdeskCreate,
		MaintenanceRead,
		ShiftsRead,
	},
	RoleResident: {
		ViewsRead,
		AnnouncementsRead,
		BillingRead,
		ChatUse, EmergencyTrigger,
		HelpdeskCreate,
		VisitorsRegister,
	},
}

// All lists every known permission.
func All() []Permission {
	return []Permission{
		ViewsRead, ViewsWrite, ViewsDelete,
		AnnouncementsRead, AnnouncementsManage,
		BillingRead, BillingManage,
		ChatUse, EmergencyTrigger, EmergencyManage,
		HelpdeskCreate, HelpdeskManage,
		MaintenanceRead, MaintenanceManage,
		ShiftsRead, ShiftsManage,
		VisitorsRegister, VisitorsVerify,
		UsersRead, UsersManage,
	}
}

// Roles lists the known roles in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleEstateManager, RoleFacilityManager, RoleSecurity, RoleStaff, RoleResident}
}

func ParseRole(name string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := roles[role]; !ok {
		return "", fmt.Errorf("%w '%s'", ErrUnknownRole, name)
	}
	return role, nil
}

// For returns the permissions granted to role.
func For(role Role) []Permission {
	return slices.Clone(roles[role])
}

// DeniedError reports the permission a role was missing.
type DeniedError struct {
	Role       Role
	Permission Permission
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("role '%s' lacks permission '%s'", e.Role, e.Permission)
}

func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}

type Checker struct {
	Role Role
}

func (c Checker) Has(p Permission) bool {
	return slices.Contains(roles[c.Role], p)
}

func (c Checker) HasAny(ps ...Permission) bool {
	return slices.ContainsFunc(ps, c.Has)
}

func (c Checker) HasAll(ps ...Permission) bool {
	for _, p := range ps {
		if !c.Has(p) {
			return false
		}
	}
	return true
}

// Require returns a *DeniedError for the first missing permission.
func (c Checker) Require(ps ...Permission) error {
	for _, p := range ps {
		if !c.Has(p) {
			return &DeniedError{Role: c.Role, Permission: p}
		}
	}
	return nil
}
