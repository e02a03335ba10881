package memory

import (
	"cmp"
	"slices"

	"openbis/pkg/domain"
)

// view exposes a read-only projection of a memoryState. Every returned value
// is a clone so callers cannot mutate shared state.
type view struct {
	state *memoryState
}

var _ domain.TransactionView = view{}

func find[T any](table map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := table[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

func findFirst[T any](table map[string]T, clone func(T) T, match func(T) bool) (T, bool) {
	for _, v := range table {
		if match(v) {
			return clone(v), true
		}
	}
	var zero T
	return zero, false
}

func list[T any](table map[string]T, clone func(T) T, match func(T) bool, compare func(a, b T) int) []T {
	out := make([]T, 0, len(table))
	for _, v := range table {
		if match == nil || match(v) {
			out = append(out, clone(v))
		}
	}
	slices.SortFunc(out, compare)
	return out
}

func byCode[T any](code func(T) string, id func(T) string) func(a, b T) int {
	return func(a, b T) int {
		if c := cmp.Compare(code(a), code(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	}
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func refersTo(ref *string, id string) bool {
	return ref != nil && *ref == id
}

var (
	instanceOrder   = byCode(func(v domain.DatabaseInstance) string { return v.Code }, func(v domain.DatabaseInstance) string { return v.ID })
	groupOrder      = byCode(func(v domain.Group) string { return v.Code }, func(v domain.Group) string { return v.ID })
	personOrder     = byCode(func(v domain.Person) string { return v.UserID }, func(v domain.Person) string { return v.ID })
	roleOrder       = byCode(func(v domain.RoleAssignment) string { return string(v.Role) }, func(v domain.RoleAssignment) string { return v.ID })
	projectOrder    = byCode(func(v domain.Project) string { return v.Code }, func(v domain.Project) string { return v.ID })
	typeOrder       = byCode(func(v domain.EntityType) string { return v.Code }, func(v domain.EntityType) string { return v.ID })
	propTypeOrder   = byCode(func(v domain.PropertyType) string { return v.Code }, func(v domain.PropertyType) string { return v.ID })
	vocabOrder      = byCode(func(v domain.Vocabulary) string { return v.Code }, func(v domain.Vocabulary) string { return v.ID })
	experimentOrder = byCode(func(v domain.Experiment) string { return v.Code }, func(v domain.Experiment) string { return v.ID })
	sampleOrder     = byCode(func(v domain.Sample) string { return v.Code }, func(v domain.Sample) string { return v.ID })
	materialOrder   = byCode(func(v domain.Material) string { return v.Code }, func(v domain.Material) string { return v.ID })
	dataStoreOrder  = byCode(func(v domain.DataStore) string { return v.Code }, func(v domain.DataStore) string { return v.ID })
	dataSetOrder    = byCode(func(v domain.DataSet) string { return v.Code }, func(v domain.DataSet) string { return v.ID })
)

func assignmentOrder(a, b domain.Assignment) int {
	if c := cmp.Compare(a.Ordinal, b.Ordinal); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func attachmentOrder(a, b domain.Attachment) int {
	if c := cmp.Compare(a.FileName, b.FileName); c != 0 {
		return c
	}
	return cmp.Compare(a.Version, b.Version)
}

func eventOrder(a, b domain.Event) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (v view) HomeDatabaseInstance() (domain.DatabaseInstance, bool) {
	return findFirst(v.state.instances, identity, func(i domain.DatabaseInstance) bool { return i.Home })
}

func (v view) FindDatabaseInstance(id string) (domain.DatabaseInstance, bool) {
	return find(v.state.instances, id, identity)
}

func (v view) ListDatabaseInstances() []domain.DatabaseInstance {
	return list(v.state.instances, identity, nil, instanceOrder)
}

func (v view) FindGroup(id string) (domain.Group, bool) {
	return find(v.state.groups, id, cloneGroup)
}

func (v view) FindGroupByCode(code string) (domain.Group, bool) {
	return findFirst(v.state.groups, cloneGroup, func(g domain.Group) bool { return g.Code == code })
}

func (v view) ListGroups() []domain.Group {
	return list(v.state.groups, cloneGroup, nil, groupOrder)
}

func (v view) FindPerson(id string) (domain.Person, bool) {
	return find(v.state.persons, id, clonePerson)
}

func (v view) FindPersonByUserID(userID string) (domain.Person, bool) {
	return findFirst(v.state.persons, clonePerson, func(p domain.Person) bool { return p.UserID == userID })
}

func (v view) ListPersons() []domain.Person {
	return list(v.state.persons, clonePerson, nil, personOrder)
}

func (v view) FindRoleAssignment(id string) (domain.RoleAssignment, bool) {
	return find(v.state.roles, id, cloneRoleAssignment)
}

func (v view) ListRoleAssignments() []domain.RoleAssignment {
	return list(v.state.roles, cloneRoleAssignment, nil, roleOrder)
}

func (v view) ListRoleAssignmentsByPerson(personID string) []domain.RoleAssignment {
	return list(v.state.roles, cloneRoleAssignment, func(r domain.RoleAssignment) bool { return r.PersonID == personID }, roleOrder)
}

func (v view) FindProject(id string) (domain.Project, bool) {
	return find(v.state.projects, id, cloneProject)
}

func (v view) FindProjectByCode(groupID, code string) (domain.Project, bool) {
	return findFirst(v.state.projects, cloneProject, func(p domain.Project) bool { return p.GroupID == groupID && p.Code == code })
}

func (v view) ListProjects() []domain.Project {
	return list(v.state.projects, cloneProject, nil, projectOrder)
}

func (v view) ListProjectsByGroup(groupID string) []domain.Project {
	return list(v.state.projects, cloneProject, func(p domain.Project) bool { return p.GroupID == groupID }, projectOrder)
}

func (v view) FindEntityType(id string) (domain.EntityType, bool) {
	return find(v.state.entityTypes, id, identity)
}

func (v view) FindEntityTypeByCode(kind domain.EntityKind, code string) (domain.EntityType, bool) {
	return findFirst(v.state.entityTypes, identity, func(t domain.EntityType) bool { return t.Kind == kind && t.Code == code })
}

func (v view) ListEntityTypes(kind domain.EntityKind) []domain.EntityType {
	return list(v.state.entityTypes, identity, func(t domain.EntityType) bool { return kind == "" || t.Kind == kind }, typeOrder)
}

func (v view) FindPropertyType(id string) (domain.PropertyType, bool) {
	return find(v.state.propertyTypes, id, clonePropertyType)
}

func (v view) FindPropertyTypeByCode(code string) (domain.PropertyType, bool) {
	return findFirst(v.state.propertyTypes, clonePropertyType, func(p domain.PropertyType) bool { return p.Code == code })
}

func (v view) ListPropertyTypes() []domain.PropertyType {
	return list(v.state.propertyTypes, clonePropertyType, nil, propTypeOrder)
}

func (v view) FindVocabulary(id string) (domain.Vocabulary, bool) {
	return find(v.state.vocabularies, id, cloneVocabulary)
}

func (v view) FindVocabularyByCode(code string) (domain.Vocabulary, bool) {
	return findFirst(v.state.vocabularies, cloneVocabulary, func(voc domain.Vocabulary) bool { return voc.Code == code })
}

func (v view) ListVocabularies() []domain.Vocabulary {
	return list(v.state.vocabularies, cloneVocabulary, nil, vocabOrder)
}

func (v view) FindAssignment(id string) (domain.Assignment, bool) {
	return find(v.state.assignments, id, identity)
}

func (v view) FindAssignmentFor(kind domain.EntityKind, entityTypeID, propertyTypeID string) (domain.Assignment, bool) {
	return findFirst(v.state.assignments, identity, func(a domain.Assignment) bool {
		return a.Kind == kind && a.EntityTypeID == entityTypeID && a.PropertyTypeID == propertyTypeID
	})
}

func (v view) ListAssignments(kind domain.EntityKind, entityTypeID string) []domain.Assignment {
	return list(v.state.assignments, identity, func(a domain.Assignment) bool {
		return (kind == "" || a.Kind == kind) && (entityTypeID == "" || a.EntityTypeID == entityTypeID)
	}, assignmentOrder)
}

func (v view) ListAssignmentsByPropertyType(propertyTypeID string) []domain.Assignment {
	return list(v.state.assignments, identity, func(a domain.Assignment) bool { return a.PropertyTypeID == propertyTypeID }, assignmentOrder)
}

func (v view) FindExperiment(id string) (domain.Experiment, bool) {
	return find(v.state.experiments, id, cloneExperiment)
}

func (v view) FindExperimentByCode(projectID, code string) (domain.Experiment, bool) {
	return findFirst(v.state.experiments, cloneExperiment, func(e domain.Experiment) bool { return e.ProjectID == projectID && e.Code == code })
}

func (v view) ListExperiments() []domain.Experiment {
	return list(v.state.experiments, cloneExperiment, nil, experimentOrder)
}

func (v view) ListExperimentsByProject(projectID, typeID string) []domain.Experiment {
	return list(v.state.experiments, cloneExperiment, func(e domain.Experiment) bool {
		return e.ProjectID == projectID && (typeID == "" || e.TypeID == typeID)
	}, experimentOrder)
}

func (v view) ListExperimentsByType(typeID string) []domain.Experiment {
	return list(v.state.experiments, cloneExperiment, func(e domain.Experiment) bool { return e.TypeID == typeID }, experimentOrder)
}

func (v view) FindSample(id string) (domain.Sample, bool) {
	return find(v.state.samples, id, cloneSample)
}

func (v view) FindSampleByCode(groupID *string, code string) (domain.Sample, bool) {
	return findFirst(v.state.samples, cloneSample, func(s domain.Sample) bool { return s.Code == code && sameRef(s.GroupID, groupID) })
}

func (v view) FindSampleByPermID(permID string) (domain.Sample, bool) {
	return findFirst(v.state.samples, cloneSample, func(s domain.Sample) bool { return s.PermID == permID })
}

func (v view) ListSamples() []domain.Sample {
	return list(v.state.samples, cloneSample, nil, sampleOrder)
}

func (v view) ListSamplesByExperiment(experimentID string) []domain.Sample {
	return list(v.state.samples, cloneSample, func(s domain.Sample) bool { return refersTo(s.ExperimentID, experimentID) }, sampleOrder)
}

func (v view) ListSamplesByType(typeID string) []domain.Sample {
	return list(v.state.samples, cloneSample, func(s domain.Sample) bool { return s.TypeID == typeID }, sampleOrder)
}

func (v view) ListSamplesGeneratedFrom(parentID string) []domain.Sample {
	return list(v.state.samples, cloneSample, func(s domain.Sample) bool { return refersTo(s.GeneratedFromID, parentID) }, sampleOrder)
}

func (v view) ListSamplesByContainer(containerID string) []domain.Sample {
	return list(v.state.samples, cloneSample, func(s domain.Sample) bool { return refersTo(s.ContainerID, containerID) }, sampleOrder)
}

func (v view) FindMaterial(id string) (domain.Material, bool) {
	return find(v.state.materials, id, cloneMaterial)
}

func (v view) FindMaterialByCode(typeID, code string) (domain.Material, bool) {
	return findFirst(v.state.materials, cloneMaterial, func(m domain.Material) bool { return m.TypeID == typeID && m.Code == code })
}

func (v view) ListMaterials(typeID string) []domain.Material {
	return list(v.state.materials, cloneMaterial, func(m domain.Material) bool { return typeID == "" || m.TypeID == typeID }, materialOrder)
}

func (v view) FindDataStore(id string) (domain.DataStore, bool) {
	return find(v.state.dataStores, id, identity)
}

func (v view) FindDataStoreByCode(code string) (domain.DataStore, bool) {
	return findFirst(v.state.dataStores, identity, func(d domain.DataStore) bool { return d.Code == code })
}

func (v view) ListDataStores() []domain.DataStore {
	return list(v.state.dataStores, identity, nil, dataStoreOrder)
}

func (v view) FindDataSet(id string) (domain.DataSet, bool) {
	return find(v.state.dataSets, id, cloneDataSet)
}

func (v view) FindDataSetByCode(code string) (domain.DataSet, bool) {
	return findFirst(v.state.dataSets, cloneDataSet, func(d domain.DataSet) bool { return d.Code == code })
}

func (v view) ListDataSets() []domain.DataSet {
	return list(v.state.dataSets, cloneDataSet, nil, dataSetOrder)
}

func (v view) ListDataSetsByExperiment(experimentID string) []domain.DataSet {
	return list(v.state.dataSets, cloneDataSet, func(d domain.DataSet) bool { return d.ExperimentID == experimentID }, dataSetOrder)
}

func (v view) ListDataSetsBySample(sampleID string) []domain.DataSet {
	return list(v.state.dataSets, cloneDataSet, func(d domain.DataSet) bool { return refersTo(d.SampleID, sampleID) }, dataSetOrder)
}

func (v view) ListDataSetsByType(typeID string) []domain.DataSet {
	return list(v.state.dataSets, cloneDataSet, func(d domain.DataSet) bool { return d.TypeID == typeID }, dataSetOrder)
}

func (v view) ListDataSetChildren(parentID string) []domain.DataSet {
	return list(v.state.dataSets, cloneDataSet, func(d domain.DataSet) bool { return slices.Contains(d.ParentIDs, parentID) }, dataSetOrder)
}

func (v view) FindAttachment(id string) (domain.Attachment, bool) {
	return find(v.state.attachments, id, identity)
}

func (v view) ListAttachments(holderKind domain.RecordKind, holderID string) []domain.Attachment {
	return list(v.state.attachments, identity, func(a domain.Attachment) bool {
		return a.HolderKind == holderKind && a.HolderID == holderID
	}, attachmentOrder)
}

func (v view) ListEvents() []domain.Event {
	return list(v.state.events, identity, nil, eventOrder)
}
