// Package authz decides whether a person may run an operation on data of a
// group or of the database instance. Operations declare a RoleSet; entity
// arguments are checked with predicates against the caller's Principal.
package authz

import (
	"slices"

	"openbis/pkg/domain"
)

// RoleSet lists the roles an operation accepts.
type RoleSet []domain.RoleCode

// Role sets from the most to the least permissive. Higher roles are always
// included: ADMIN > POWER_USER > USER > OBSERVER. ETL_SERVER stands apart
// and only the instance admin covers it.
var (
	RoleSetObserver = RoleSet{
		domain.RoleInstanceAdmin, domain.RoleInstanceObserver,
		domain.RoleGroupAdmin, domain.RoleGroupPowerUser, domain.RoleGroupUser, domain.RoleGroupObserver,
	}
	RoleSetUser = RoleSet{
		domain.RoleInstanceAdmin,
		domain.RoleGroupAdmin, domain.RoleGroupPowerUser, domain.RoleGroupUser,
	}
	RoleSetPowerUser = RoleSet{
		domain.RoleInstanceAdmin,
		domain.RoleGroupAdmin, domain.RoleGroupPowerUser,
	}
	RoleSetGroupAdmin    = RoleSet{domain.RoleInstanceAdmin, domain.RoleGroupAdmin}
	RoleSetInstanceAdmin = RoleSet{domain.RoleInstanceAdmin}
	RoleSetETLServer     = RoleSet{domain.RoleInstanceAdmin, domain.RoleInstanceETLServer, domain.RoleGroupETLServer}
	RoleSetUserOrETL     = append(slices.Clone(RoleSetUser), domain.RoleInstanceETLServer, domain.RoleGroupETLServer)
	RoleSetObserverOrETL = append(slices.Clone(RoleSetObserver), domain.RoleInstanceETLServer, domain.RoleGroupETLServer)
)

// Contains reports whether role is accepted.
func (s RoleSet) Contains(role domain.RoleCode) bool { return slices.Contains(s, role) }

// readOnly reports whether the set accepts observers, which may read shared
// data through a group role.
func (s RoleSet) readOnly() bool { return s.Contains(domain.RoleGroupObserver) }

// Grant is one role assignment of a principal. GroupCode is empty for
// instance roles.
type Grant struct {
	Role      domain.RoleCode
	GroupCode string
}

// Principal is the authorization view of a person.
type Principal struct {
	UserID        string
	InstanceCode  string
	HomeGroupCode string
	Grants        []Grant
}

// NewPrincipal collects the role assignments of person.
func NewPrincipal(view domain.TransactionView, person domain.Person) Principal {
	p := Principal{UserID: person.UserID}
	if home, ok := view.HomeDatabaseInstance(); ok {
		p.InstanceCode = home.Code
	}
	if person.HomeGroupID != nil {
		if g, ok := view.FindGroup(*person.HomeGroupID); ok {
			p.HomeGroupCode = g.Code
		}
	}
	for _, ra := range view.ListRoleAssignmentsByPerson(person.ID) {
		grant := Grant{Role: ra.Role}
		if ra.GroupID != nil {
			g, ok := view.FindGroup(*ra.GroupID)
			if !ok {
				continue
			}
			grant.GroupCode = g.Code
		}
		p.Grants = append(p.Grants, grant)
	}
	return p
}

// HasInstanceRole reports whether the principal holds an accepted instance role.
func (p Principal) HasInstanceRole(allowed RoleSet) bool {
	for _, g := range p.Grants {
		if g.Role.InstanceLevel() && allowed.Contains(g.Role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal holds any accepted role.
func (p Principal) HasAnyRole(allowed RoleSet) bool {
	for _, g := range p.Grants {
		if allowed.Contains(g.Role) {
			return true
		}
	}
	return false
}

// CanAccessGroup reports whether an accepted role covers groupCode: an
// instance role or a role granted on that group.
func (p Principal) CanAccessGroup(allowed RoleSet, groupCode string) bool {
	for _, g := range p.Grants {
		if !allowed.Contains(g.Role) {
			continue
		}
		if g.Role.InstanceLevel() || g.GroupCode == groupCode {
			return true
		}
	}
	return false
}

// GroupCodes returns the groups the principal may access with allowed. A
// nil result with true means every group.
func (p Principal) GroupCodes(allowed RoleSet) ([]string, bool) {
	if p.HasInstanceRole(allowed) {
		return nil, true
	}
	var out []string
	for _, g := range p.Grants {
		if allowed.Contains(g.Role) && g.GroupCode != "" && !slices.Contains(out, g.GroupCode) {
			out = append(out, g.GroupCode)
		}
	}
	return out, false
}
