package bo

import (
	"strings"

	"openbis/pkg/domain"
)

func (b base) resolveInstance(code string) (domain.DatabaseInstance, error) {
	if code == "" {
		if home, ok := b.tx.HomeDatabaseInstance(); ok {
			return home, nil
		}
		return domain.DatabaseInstance{}, domain.UserFailuref("No home database instance defined.")
	}
	for _, inst := range b.tx.ListDatabaseInstances() {
		if inst.Code == code {
			return inst, nil
		}
	}
	return domain.DatabaseInstance{}, domain.UserFailuref("Database instance '%s' does not exist.", code)
}

func (b base) homeGroup() (domain.Group, error) {
	id, ok := b.session.HomeGroupID()
	if !ok {
		return domain.Group{}, domain.UserFailuref("Home group of user '%s' is not defined.", b.session.UserID())
	}
	g, ok := b.tx.FindGroup(id)
	if !ok {
		return domain.Group{}, domain.UserFailuref("Home group of user '%s' does not exist.", b.session.UserID())
	}
	return g, nil
}

func (b base) resolveGroup(id domain.GroupIdentifier) (domain.Group, error) {
	if _, err := b.resolveInstance(id.Instance); err != nil {
		return domain.Group{}, err
	}
	if id.HomeGroup() {
		return b.homeGroup()
	}
	g, ok := b.tx.FindGroupByCode(id.Group)
	if !ok {
		return domain.Group{}, domain.UserFailuref("No group could be found for identifier '%s'.", b.qualifyGroup(id))
	}
	return g, nil
}

func (b base) resolveProject(id domain.ProjectIdentifier) (domain.Project, error) {
	g, err := b.resolveGroup(id.GroupIdentifier())
	if err != nil {
		return domain.Project{}, err
	}
	p, ok := b.tx.FindProjectByCode(g.ID, id.Project)
	if !ok {
		return domain.Project{}, domain.UserFailuref("No project could be found for identifier '%s'.", id)
	}
	return p, nil
}

func (b base) resolveExperiment(id domain.ExperimentIdentifier) (domain.Experiment, error) {
	p, err := b.resolveProject(id.ProjectIdentifier())
	if err != nil {
		return domain.Experiment{}, err
	}
	e, ok := b.tx.FindExperimentByCode(p.ID, id.Experiment)
	if !ok {
		return domain.Experiment{}, domain.UserFailuref("No experiment could be found for identifier '%s'.", id)
	}
	return e, nil
}

// tryResolveSample looks a sample up by identifier. Unknown groups or
// instances are errors; an unknown sample is reported through ok.
func (b base) tryResolveSample(id domain.SampleIdentifier) (domain.Sample, bool, error) {
	if id.Shared {
		if _, err := b.resolveInstance(id.Instance); err != nil {
			return domain.Sample{}, false, err
		}
		s, ok := b.tx.FindSampleByCode(nil, id.Code)
		return s, ok, nil
	}
	g, err := b.resolveGroup(id.Owner())
	if err != nil {
		return domain.Sample{}, false, err
	}
	s, ok := b.tx.FindSampleByCode(&g.ID, id.Code)
	return s, ok, nil
}

func (b base) resolveSample(id domain.SampleIdentifier) (domain.Sample, error) {
	s, ok, err := b.tryResolveSample(id)
	if err != nil {
		return domain.Sample{}, err
	}
	if !ok {
		return domain.Sample{}, domain.UserFailuref("No sample could be found for identifier '%s'.", b.qualifySample(id))
	}
	return s, nil
}

// qualifySample fills in the instance and home group of a relative identifier.
func (b base) qualifySample(id domain.SampleIdentifier) domain.SampleIdentifier {
	if id.Instance == "" {
		if home, ok := b.tx.HomeDatabaseInstance(); ok {
			id.Instance = home.Code
		}
	}
	if id.HomeGroup() {
		if g, err := b.homeGroup(); err == nil {
			id.Group = g.Code
		}
	}
	return id
}

func (b base) qualifyGroup(id domain.GroupIdentifier) domain.GroupIdentifier {
	if id.Instance == "" {
		if home, ok := b.tx.HomeDatabaseInstance(); ok {
			id.Instance = home.Code
		}
	}
	return id
}

func (b base) findEntityType(kind domain.EntityKind, code string) (domain.EntityType, error) {
	t, ok := b.tx.FindEntityTypeByCode(kind, domain.NormalizeCode(code))
	if !ok {
		return domain.EntityType{}, domain.UserFailuref("%s type '%s' does not exist.", capitalize(kind.Label()), code)
	}
	return t, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
