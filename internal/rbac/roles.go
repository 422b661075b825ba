package rbac

import "strings"

// Role names. Keep these stable; they are part of the auth/RBAC contract with
// the identity provider that mints caller tokens.
const (
	RoleSuperAdmin = "SuperAdmin"

	// departmentAdminSuffix marks "<Department> Admin" roles, e.g. "Finance Admin".
	departmentAdminSuffix = " Admin"
)

// departmentCodes maps a lower-cased department name to the short code that
// prefixes actor identities issued by that department.
var departmentCodes = map[string]string{
	"finance":    "FIN",
	"hr":         "HR",
	"inventory":  "INV",
	"operations": "OPS",
}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// DepartmentCode resolves a "<Department> Admin" role to its department short code.
// ok is false for any other role and for unknown departments.
func DepartmentCode(role string) (code string, ok bool) {
	if !strings.HasSuffix(role, departmentAdminSuffix) {
		return "", false
	}
	dept := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(role, departmentAdminSuffix)))
	if dept == "" {
		return "", false
	}
	code, ok = departmentCodes[dept]
	return code, ok
}
