package domain

// instanceCode returns the code of the instance with the given id, falling
// back to the home instance.
func instanceCode(view TransactionView, id string) string {
	if id != "" {
		if inst, ok := view.FindDatabaseInstance(id); ok {
			return inst.Code
		}
	}
	if home, ok := view.HomeDatabaseInstance(); ok {
		return home.Code
	}
	return ""
}

// IdentifyGroup builds the full identifier of a persisted group.
func IdentifyGroup(view TransactionView, g Group) GroupIdentifier {
	return GroupIdentifier{Instance: instanceCode(view, g.InstanceID), Group: g.Code}
}

// IdentifyProject builds the full identifier of a persisted project.
func IdentifyProject(view TransactionView, p Project) ProjectIdentifier {
	id := ProjectIdentifier{Project: p.Code}
	if g, ok := view.FindGroup(p.GroupID); ok {
		gi := IdentifyGroup(view, g)
		id.Instance, id.Group = gi.Instance, gi.Group
	}
	return id
}

// IdentifyExperiment builds the full identifier of a persisted experiment.
func IdentifyExperiment(view TransactionView, e Experiment) ExperimentIdentifier {
	id := ExperimentIdentifier{Experiment: e.Code}
	if p, ok := view.FindProject(e.ProjectID); ok {
		pi := IdentifyProject(view, p)
		id.Instance, id.Group, id.Project = pi.Instance, pi.Group, pi.Project
	}
	return id
}

// IdentifySample builds the full identifier of a persisted sample.
func IdentifySample(view TransactionView, s Sample) SampleIdentifier {
	id := SampleIdentifier{Instance: instanceCode(view, s.InstanceID), Code: s.Code}
	if s.GroupID == nil {
		id.Shared = true
		return id
	}
	if g, ok := view.FindGroup(*s.GroupID); ok {
		id.Group = g.Code
	}
	return id
}

// IdentifyMaterial builds the identifier of a persisted material.
func IdentifyMaterial(view TransactionView, m Material) MaterialIdentifier {
	id := MaterialIdentifier{Code: m.Code}
	if t, ok := view.FindEntityType(m.TypeID); ok {
		id.Type = t.Code
	}
	return id
}
