package bo

import (
	"openbis/pkg/domain"
)

// RoleAssignmentTable grants and revokes roles.
type RoleAssignmentTable struct {
	base
}

// NewRoleAssignmentTable constructs a RoleAssignmentTable.
func NewRoleAssignmentTable(tx domain.Transaction, session Session) *RoleAssignmentTable {
	return &RoleAssignmentTable{base: base{tx: tx, session: session}}
}

// Add grants role to the person. Instance roles take no group code; group
// roles require one.
func (t *RoleAssignmentTable) Add(role domain.RoleCode, groupCode, userID string) (domain.RoleAssignment, error) {
	if !role.Valid() {
		return domain.RoleAssignment{}, domain.UserFailuref("Unknown role '%s'.", role)
	}
	person, ok := t.tx.FindPersonByUserID(userID)
	if !ok {
		return domain.RoleAssignment{}, domain.UserFailuref("Person '%s' does not exist.", userID)
	}
	var groupID *string
	switch {
	case role.InstanceLevel() && groupCode != "":
		return domain.RoleAssignment{}, domain.UserFailuref("Role '%s' is an instance role and cannot be assigned to group '%s'.", role, groupCode)
	case !role.InstanceLevel():
		if groupCode == "" {
			return domain.RoleAssignment{}, domain.UserFailuref("Role '%s' requires a group.", role)
		}
		g, ok := t.tx.FindGroupByCode(domain.NormalizeCode(groupCode))
		if !ok {
			return domain.RoleAssignment{}, domain.UserFailuref("Group '%s' does not exist.", groupCode)
		}
		groupID = &g.ID
	}
	for _, ra := range t.tx.ListRoleAssignmentsByPerson(person.ID) {
		if ra.Role == role && deref(ra.GroupID) == deref(groupID) {
			return domain.RoleAssignment{}, domain.UserFailuref("Role '%s' is already assigned to person '%s'.", role, userID)
		}
	}
	return t.tx.CreateRoleAssignment(domain.RoleAssignment{
		PersonID:      person.ID,
		Role:          role,
		GroupID:       groupID,
		RegistratorID: t.registrator(),
	})
}

// Delete revokes a role assignment.
func (t *RoleAssignmentTable) Delete(role domain.RoleCode, groupCode, userID string) error {
	person, ok := t.tx.FindPersonByUserID(userID)
	if !ok {
		return domain.UserFailuref("Person '%s' does not exist.", userID)
	}
	groupID := ""
	if groupCode != "" {
		g, ok := t.tx.FindGroupByCode(domain.NormalizeCode(groupCode))
		if !ok {
			return domain.UserFailuref("Group '%s' does not exist.", groupCode)
		}
		groupID = g.ID
	}
	for _, ra := range t.tx.ListRoleAssignmentsByPerson(person.ID) {
		if ra.Role == role && deref(ra.GroupID) == groupID {
			return t.tx.DeleteRoleAssignment(ra.ID)
		}
	}
	return domain.UserFailuref("Role '%s' is not assigned to person '%s'.", role, userID)
}

// List returns every role assignment.
func (t *RoleAssignmentTable) List() []domain.RoleAssignment {
	return t.tx.ListRoleAssignments()
}
