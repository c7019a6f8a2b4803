package perm

import "testing"

func TestAllowedMatrix(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionDeleteOS, true},
		{RoleAdmin, ActionManageConfig, true},
		{RoleReception, ActionCreateOS, true},
		{RoleReception, ActionCompleteOS, false},
		{RoleReception, ActionDeleteOS, false},
		{RoleReception, ActionAssignTechs, true},
		{RoleTech, ActionCreateOS, false},
		{RoleTech, ActionEditOS, true},
		{RoleTech, ActionCompleteOS, true},
		{RoleTech, ActionReopenOS, false},
		{RoleTech, ActionManageUsers, false},
	}
	for _, c := range cases {
		if got := Allowed(c.role, c.action); got != c.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", c.role, c.action, got, c.want)
		}
	}
}

func TestAllowedDefaultsToDenied(t *testing.T) {
	if Allowed("visitor", ActionViewOS) {
		t.Error("unknown role must be denied")
	}
	if Allowed(RoleAdmin, "LAUNCH_MISSILES") {
		t.Error("unknown action must be denied")
	}
	if Allowed("", "") {
		t.Error("empty pair must be denied")
	}
}
