package bo

import (
	"openbis/pkg/domain"
)

// GroupBO registers and deletes groups of the home database instance.
type GroupBO struct {
	base
	group *domain.Group
}

// NewGroupBO constructs a GroupBO.
func NewGroupBO(tx domain.Transaction, session Session) *GroupBO {
	return &GroupBO{base: base{tx: tx, session: session}}
}

// Group returns the loaded group.
func (b *GroupBO) Group() (domain.Group, error) {
	if b.group == nil {
		return domain.Group{}, domain.UserFailuref("Unloaded group.")
	}
	return *b.group, nil
}

// Register creates a group. The session owner becomes its leader.
func (b *GroupBO) Register(code, description string) error {
	code = domain.NormalizeCode(code)
	if err := domain.ValidateCode(code); err != nil {
		return err
	}
	home, err := b.resolveInstance("")
	if err != nil {
		return err
	}
	if _, exists := b.tx.FindGroupByCode(code); exists {
		return domain.UserFailuref("Group '%s' already exists.", code)
	}
	g := domain.Group{
		Code:          code,
		Description:   description,
		InstanceID:    home.ID,
		RegistratorID: b.registrator(),
	}
	if b.session.Person.ID != "" {
		g.LeaderID = ptr(b.session.Person.ID)
	}
	created, err := b.tx.CreateGroup(g)
	if err != nil {
		return err
	}
	b.group = &created
	return nil
}

// UpdateDescription changes the description of a group.
func (b *GroupBO) UpdateDescription(id, description string) error {
	updated, err := b.tx.UpdateGroup(id, func(g *domain.Group) error {
		g.Description = description
		return nil
	})
	if err != nil {
		return err
	}
	b.group = &updated
	return nil
}

// DeleteByID removes an empty group together with its role assignments.
// Persons lose it as home group.
func (b *GroupBO) DeleteByID(id, reason string) error {
	g, ok := b.tx.FindGroup(id)
	if !ok {
		return domain.ErrNotFound{Entity: domain.RecordGroup, ID: id}
	}
	if len(b.tx.ListProjectsByGroup(id)) > 0 {
		return domain.UserFailuref("Group '%s' cannot be deleted because it contains projects.", g.Code)
	}
	for _, s := range b.tx.ListSamples() {
		if deref(s.GroupID) == id {
			return domain.UserFailuref("Group '%s' cannot be deleted because it contains samples.", g.Code)
		}
	}
	for _, ra := range b.tx.ListRoleAssignments() {
		if deref(ra.GroupID) == id {
			if err := b.tx.DeleteRoleAssignment(ra.ID); err != nil {
				return err
			}
		}
	}
	if err := b.tx.DeleteGroup(id); err != nil {
		return err
	}
	if err := b.deletionEvent(domain.RecordGroup, domain.IdentifyGroup(b.tx, g).String(), reason); err != nil {
		return err
	}
	b.group = nil
	return nil
}
