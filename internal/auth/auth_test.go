package auth_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"FarmLedger/internal/auth"
)

var (
	admin    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	operator = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestRoleSet_GrantAndRequire(t *testing.T) {
	rs := auth.NewRoleSet(admin)

	if err := rs.Require(auth.RoleOperator, operator); err == nil {
		t.Fatal("ungranted role should be rejected")
	}

	if err := rs.Grant(admin, auth.RoleOperator, operator); err != nil {
		t.Fatal(err)
	}
	if err := rs.Require(auth.RoleOperator, operator); err != nil {
		t.Errorf("granted role rejected: %v", err)
	}
}

func TestRoleSet_AdminHoldsAllRoles(t *testing.T) {
	rs := auth.NewRoleSet(admin)
	for _, role := range []auth.Role{auth.RoleOperator, auth.RoleIssuer, auth.RoleCustodian, auth.RoleAdmin} {
		if err := rs.Require(role, admin); err != nil {
			t.Errorf("admin lacks %q: %v", role, err)
		}
	}
}

func TestRoleSet_OnlyAdminGrants(t *testing.T) {
	rs := auth.NewRoleSet(admin)
	err := rs.Grant(stranger, auth.RoleOperator, stranger)
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestRoleSet_Revoke(t *testing.T) {
	rs := auth.NewRoleSet(admin)
	if err := rs.Grant(admin, auth.RoleIssuer, operator); err != nil {
		t.Fatal(err)
	}
	if err := rs.Revoke(admin, auth.RoleIssuer, operator); err != nil {
		t.Fatal(err)
	}
	if rs.HasRole(auth.RoleIssuer, operator) {
		t.Error("role still held after revoke")
	}
}

func TestAuthError_CarriesContext(t *testing.T) {
	rs := auth.NewRoleSet(admin)
	err := rs.Require(auth.RoleIssuer, stranger)
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) {
		t.Fatal("expected AuthError")
	}
	if authErr.Role != auth.RoleIssuer || authErr.Caller != stranger {
		t.Errorf("error context wrong: %+v", authErr)
	}
}
