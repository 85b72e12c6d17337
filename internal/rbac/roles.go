package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleUser       = "user"
	RolePartner    = "partner"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsReviewer reports whether the role may resolve manual-review receipts.
func IsReviewer(role string) bool { return role == RoleAdmin || role == RoleSuperAdmin }
