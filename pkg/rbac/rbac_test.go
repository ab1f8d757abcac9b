package rbac

import (
	"errors"
	"testing"
)

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleUser, PermissionCreateTask, true},
		{RoleUser, PermissionReadTask, true},
		{RoleViewer, PermissionReadTask, true},
		{RoleViewer, PermissionCreateTask, false},
		{"ghost", PermissionReadTask, false},
	}
	for _, tc := range cases {
		if got := HasPermission(tc.role, tc.perm); got != tc.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCheckPermissionError(t *testing.T) {
	err := CheckPermission(RoleViewer, PermissionCreateTask)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	if denied.Permission != PermissionCreateTask {
		t.Errorf("permission = %q", denied.Permission)
	}
	if CheckPermission(RoleUser, PermissionCreateTask) != nil {
		t.Error("user should be allowed to create tasks")
	}
}
