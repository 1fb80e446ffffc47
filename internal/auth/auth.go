// Package auth implements the role gate checked at the start of every
// state-mutating entry point.
package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies a capability required by a mutator.
type Role string

const (
	// RoleOperator may stake, withdraw, and claim on farms.
	RoleOperator Role = "operator"
	// RoleIssuer may issue and repay synthetic debt.
	RoleIssuer Role = "issuer"
	// RoleCustodian may mint and burn positions and drive the incentive bridge.
	RoleCustodian Role = "custodian"
	// RoleAdmin may grant and revoke roles and update reward rates.
	RoleAdmin Role = "admin"
)

// AuthError is returned when a caller lacks the required role.
type AuthError struct {
	Role   Role
	Caller common.Address
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("caller %s lacks role %q", e.Caller.Hex(), e.Role)
}

// Gate is the authorization policy injected into every stateful component.
type Gate interface {
	Require(role Role, caller common.Address) error
	HasRole(role Role, caller common.Address) bool
}

// RoleSet is the standard Gate implementation: an explicit grant table.
// Owned by the single-threaded core; grants mutate only through an admin.
type RoleSet struct {
	admin  common.Address
	grants map[Role]map[common.Address]bool
}

// NewRoleSet creates a role table whose admin holds every role implicitly.
func NewRoleSet(admin common.Address) *RoleSet {
	return &RoleSet{
		admin:  admin,
		grants: make(map[Role]map[common.Address]bool),
	}
}

// Grant gives addr the role. Only the admin may grant.
func (rs *RoleSet) Grant(caller common.Address, role Role, addr common.Address) error {
	if caller != rs.admin {
		return &AuthError{Role: RoleAdmin, Caller: caller}
	}
	if _, ok := rs.grants[role]; !ok {
		rs.grants[role] = make(map[common.Address]bool)
	}
	rs.grants[role][addr] = true
	return nil
}

// Revoke removes the role from addr. Only the admin may revoke.
func (rs *RoleSet) Revoke(caller common.Address, role Role, addr common.Address) error {
	if caller != rs.admin {
		return &AuthError{Role: RoleAdmin, Caller: caller}
	}
	delete(rs.grants[role], addr)
	return nil
}

// HasRole reports whether addr holds the role.
func (rs *RoleSet) HasRole(role Role, addr common.Address) bool {
	if addr == rs.admin {
		return true
	}
	return rs.grants[role][addr]
}

// Require returns a typed error when caller lacks the role.
func (rs *RoleSet) Require(role Role, caller common.Address) error {
	if !rs.HasRole(role, caller) {
		return &AuthError{Role: role, Caller: caller}
	}
	return nil
}

// AllowAll is a Gate that admits every caller. Used in tests and by
// library-level embedders that do their own authorization.
type AllowAll struct{}

func (AllowAll) Require(Role, common.Address) error { return nil }
func (AllowAll) HasRole(Role, common.Address) bool  { return true }
