// Package translator converts persistence entities into the transfer objects
// of pkg/api. User supplied strings are HTML escaped on the way out. A nil
// entity always translates to nil.
package translator

import (
	"html"

	"openbis/internal/bo"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

func escape(s string) string { return html.EscapeString(s) }

// Translator resolves references against one view. Persons and property
// types are cached per Translator, so use one per request.
type Translator struct {
	view          domain.TransactionView
	persons       map[string]*api.Person
	propertyTypes map[string]*api.PropertyType
}

// New returns a Translator reading references from view.
func New(view domain.TransactionView) *Translator {
	return &Translator{
		view:          view,
		persons:       make(map[string]*api.Person),
		propertyTypes: make(map[string]*api.PropertyType),
	}
}

// DatabaseInstance translates an instance.
func (t *Translator) DatabaseInstance(inst *domain.DatabaseInstance) *api.DatabaseInstance {
	if inst == nil {
		return nil
	}
	return &api.DatabaseInstance{
		ID:         inst.ID,
		Code:       escape(inst.Code),
		UUID:       inst.UUID,
		Home:       inst.Home,
		Identifier: escape(inst.Code),
	}
}

func (t *Translator) instanceByID(id string) *api.DatabaseInstance {
	if inst, ok := t.view.FindDatabaseInstance(id); ok {
		return t.DatabaseInstance(&inst)
	}
	return nil
}

// Person translates a person.
func (t *Translator) Person(p *domain.Person) *api.Person {
	if p == nil {
		return nil
	}
	out := &api.Person{
		ID:               p.ID,
		UserID:           escape(p.UserID),
		FirstName:        escape(p.FirstName),
		LastName:         escape(p.LastName),
		Email:            escape(p.Email),
		RegistrationDate: p.CreatedAt,
	}
	if p.HomeGroupID != nil {
		if g, ok := t.view.FindGroup(*p.HomeGroupID); ok {
			out.HomeGroupCode = escape(g.Code)
		}
	}
	return out
}

// Persons translates a list of persons.
func (t *Translator) Persons(persons []domain.Person) []api.Person {
	out := make([]api.Person, 0, len(persons))
	for i := range persons {
		out = append(out, *t.Person(&persons[i]))
	}
	return out
}

func (t *Translator) personByID(id string) *api.Person {
	if id == "" {
		return nil
	}
	if p, ok := t.persons[id]; ok {
		return p
	}
	p, ok := t.view.FindPerson(id)
	if !ok {
		return nil
	}
	out := t.Person(&p)
	t.persons[id] = out
	return out
}

func (t *Translator) optionalPerson(id *string) *api.Person {
	if id == nil {
		return nil
	}
	return t.personByID(*id)
}

// Group translates a group.
func (t *Translator) Group(g *domain.Group) *api.Group {
	if g == nil {
		return nil
	}
	return &api.Group{
		ID:               g.ID,
		Code:             escape(g.Code),
		Description:      escape(g.Description),
		Identifier:       escape(domain.IdentifyGroup(t.view, *g).String()),
		Instance:         t.instanceByID(g.InstanceID),
		Leader:           t.optionalPerson(g.LeaderID),
		Registrator:      t.personByID(g.RegistratorID),
		RegistrationDate: g.CreatedAt,
	}
}

// Groups translates a list of groups.
func (t *Translator) Groups(groups []domain.Group) []api.Group {
	out := make([]api.Group, 0, len(groups))
	for i := range groups {
		out = append(out, *t.Group(&groups[i]))
	}
	return out
}

func (t *Translator) groupByID(id *string) *api.Group {
	if id == nil {
		return nil
	}
	g, ok := t.view.FindGroup(*id)
	if !ok {
		return nil
	}
	return t.Group(&g)
}

// RoleAssignment translates a role assignment. Instance roles carry the
// home instance instead of a group.
func (t *Translator) RoleAssignment(ra *domain.RoleAssignment) *api.RoleAssignment {
	if ra == nil {
		return nil
	}
	out := &api.RoleAssignment{
		ID:     ra.ID,
		Code:   string(ra.Role),
		Person: t.personByID(ra.PersonID),
		Group:  t.groupByID(ra.GroupID),
	}
	if ra.GroupID == nil {
		if home, ok := t.view.HomeDatabaseInstance(); ok {
			out.Instance = t.DatabaseInstance(&home)
		}
	}
	return out
}

// RoleAssignments translates a list of role assignments.
func (t *Translator) RoleAssignments(ras []domain.RoleAssignment) []api.RoleAssignment {
	out := make([]api.RoleAssignment, 0, len(ras))
	for i := range ras {
		out = append(out, *t.RoleAssignment(&ras[i]))
	}
	return out
}

// Project translates a project.
func (t *Translator) Project(p *domain.Project) *api.Project {
	if p == nil {
		return nil
	}
	return &api.Project{
		ID:               p.ID,
		Code:             escape(p.Code),
		Description:      escape(p.Description),
		Identifier:       escape(domain.IdentifyProject(t.view, *p).String()),
		Group:            t.groupByID(&p.GroupID),
		Leader:           t.optionalPerson(p.LeaderID),
		Registrator:      t.personByID(p.RegistratorID),
		RegistrationDate: p.CreatedAt,
		ModificationDate: p.UpdatedAt,
	}
}

// Projects translates a list of projects.
func (t *Translator) Projects(projects []domain.Project) []api.Project {
	out := make([]api.Project, 0, len(projects))
	for i := range projects {
		out = append(out, *t.Project(&projects[i]))
	}
	return out
}

// SampleParentWithDerived translates a sample hierarchy.
func (t *Translator) SampleParentWithDerived(info *bo.SampleParentWithDerived) *api.SampleParentWithDerived {
	if info == nil {
		return nil
	}
	return &api.SampleParentWithDerived{
		Parent:        t.Sample(&info.Parent.Sample),
		GeneratedFrom: t.Samples(info.Parent.GeneratedFrom),
		Containers:    t.Samples(info.Parent.Containers),
		Derived:       t.Samples(info.Derived),
	}
}

// Session translates the owner and instance of a session.
func (t *Translator) Session(s bo.Session) *api.Session {
	return &api.Session{
		Token:    s.Token,
		Person:   t.Person(&s.Person),
		Instance: escape(s.Instance.Code),
	}
}
