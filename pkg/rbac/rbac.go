package rbac

// 权限常量
const (
	PermissionCreateTask = "task:create"
	PermissionReadTask   = "task:read"
)

// 角色常量
const (
	RoleUser   = "user"
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser:   {PermissionCreateTask, PermissionReadTask},
	RoleViewer: {PermissionReadTask},
	RoleAdmin:  {PermissionCreateTask, PermissionReadTask},
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning an error, for handlers.
func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
