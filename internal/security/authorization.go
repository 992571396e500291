package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/bookinglean/internal/domain"
)

// Permission represents an action permission within the platform
type Permission string

const (
	PermManagePlatform Permission = "manage_platform"
	PermManageTenant   Permission = "manage_tenant"
	PermManageStaff    Permission = "manage_staff"
	PermViewSchedule   Permission = "view_schedule"
	PermManageBookings Permission = "manage_bookings"
	PermViewOwnProfile Permission = "view_own_profile"
	PermViewAuditLog   Permission = "view_audit_log"
)

// RolePermissions maps the closed role set to permissions. Every role
// the platform knows has an entry here.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleSuperAdmin: {
		PermManagePlatform,
		PermManageTenant,
		PermManageStaff,
		PermViewSchedule,
		PermManageBookings,
		PermViewOwnProfile,
		PermViewAuditLog,
	},
	domain.RoleTenantAdmin: {
		PermManageTenant,
		PermManageStaff,
		PermViewSchedule,
		PermManageBookings,
		PermViewOwnProfile,
		PermViewAuditLog,
	},
	domain.RoleStaff: {
		PermViewSchedule,
		PermManageBookings,
		PermViewOwnProfile,
	},
	domain.RoleCustomer: {
		PermViewOwnProfile,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{logger: logger}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidateTenantAccess checks that a session's tenant matches the
// requested tenant. Super admin sessions carry no tenant and pass.
func (as *AuthorizationService) ValidateTenantAccess(role domain.Role, sessionTenantID, requestedTenantID string) error {
	if role == domain.RoleSuperAdmin {
		return nil
	}
	if sessionTenantID != requestedTenantID {
		as.logger.Warn("tenant access denied",
			slog.String("session_tenant", sessionTenantID),
			slog.String("requested_tenant", requestedTenantID),
		)
		return fmt.Errorf("access denied: invalid tenant")
	}
	return nil
}
