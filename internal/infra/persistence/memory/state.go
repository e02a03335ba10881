package memory

import (
	"maps"
	"slices"

	"openbis/pkg/domain"
)

type memoryState struct {
	instances     map[string]domain.DatabaseInstance
	groups        map[string]domain.Group
	persons       map[string]domain.Person
	roles         map[string]domain.RoleAssignment
	projects      map[string]domain.Project
	entityTypes   map[string]domain.EntityType
	propertyTypes map[string]domain.PropertyType
	vocabularies  map[string]domain.Vocabulary
	assignments   map[string]domain.Assignment
	experiments   map[string]domain.Experiment
	samples       map[string]domain.Sample
	materials     map[string]domain.Material
	dataStores    map[string]domain.DataStore
	dataSets      map[string]domain.DataSet
	attachments   map[string]domain.Attachment
	events        map[string]domain.Event
	sequence      int64
}

// Snapshot captures a point-in-time clone of the store state. Durable
// backends persist one row per bucket.
type Snapshot struct {
	Instances     map[string]domain.DatabaseInstance `json:"database_instances"`
	Groups        map[string]domain.Group            `json:"groups"`
	Persons       map[string]domain.Person           `json:"persons"`
	Roles         map[string]domain.RoleAssignment   `json:"role_assignments"`
	Projects      map[string]domain.Project          `json:"projects"`
	EntityTypes   map[string]domain.EntityType       `json:"entity_types"`
	PropertyTypes map[string]domain.PropertyType     `json:"property_types"`
	Vocabularies  map[string]domain.Vocabulary       `json:"vocabularies"`
	Assignments   map[string]domain.Assignment       `json:"assignments"`
	Experiments   map[string]domain.Experiment       `json:"experiments"`
	Samples       map[string]domain.Sample           `json:"samples"`
	Materials     map[string]domain.Material         `json:"materials"`
	DataStores    map[string]domain.DataStore        `json:"data_stores"`
	DataSets      map[string]domain.DataSet          `json:"data_sets"`
	Attachments   map[string]domain.Attachment       `json:"attachments"`
	Events        map[string]domain.Event            `json:"events"`
	Sequence      int64                              `json:"sequence"`
}

// BucketNames lists the persisted buckets in a stable order.
var BucketNames = []string{
	"database_instances", "groups", "persons", "role_assignments", "projects",
	"entity_types", "property_types", "vocabularies", "assignments",
	"experiments", "samples", "materials", "data_stores", "data_sets",
	"attachments", "events", "sequence",
}

// Buckets maps every bucket name to a pointer to the field holding it, so
// durable stores can marshal and unmarshal buckets without a type switch.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"database_instances": &s.Instances,
		"groups":             &s.Groups,
		"persons":            &s.Persons,
		"role_assignments":   &s.Roles,
		"projects":           &s.Projects,
		"entity_types":       &s.EntityTypes,
		"property_types":     &s.PropertyTypes,
		"vocabularies":       &s.Vocabularies,
		"assignments":        &s.Assignments,
		"experiments":        &s.Experiments,
		"samples":            &s.Samples,
		"materials":          &s.Materials,
		"data_stores":        &s.DataStores,
		"data_sets":          &s.DataSets,
		"attachments":        &s.Attachments,
		"events":             &s.Events,
		"sequence":           &s.Sequence,
	}
}

func newMemoryState() memoryState {
	return memoryState{
		instances:     make(map[string]domain.DatabaseInstance),
		groups:        make(map[string]domain.Group),
		persons:       make(map[string]domain.Person),
		roles:         make(map[string]domain.RoleAssignment),
		projects:      make(map[string]domain.Project),
		entityTypes:   make(map[string]domain.EntityType),
		propertyTypes: make(map[string]domain.PropertyType),
		vocabularies:  make(map[string]domain.Vocabulary),
		assignments:   make(map[string]domain.Assignment),
		experiments:   make(map[string]domain.Experiment),
		samples:       make(map[string]domain.Sample),
		materials:     make(map[string]domain.Material),
		dataStores:    make(map[string]domain.DataStore),
		dataSets:      make(map[string]domain.DataSet),
		attachments:   make(map[string]domain.Attachment),
		events:        make(map[string]domain.Event),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		instances:     maps.Clone(s.instances),
		groups:        cloneTable(s.groups, cloneGroup),
		persons:       cloneTable(s.persons, clonePerson),
		roles:         cloneTable(s.roles, cloneRoleAssignment),
		projects:      cloneTable(s.projects, cloneProject),
		entityTypes:   maps.Clone(s.entityTypes),
		propertyTypes: cloneTable(s.propertyTypes, clonePropertyType),
		vocabularies:  cloneTable(s.vocabularies, cloneVocabulary),
		assignments:   maps.Clone(s.assignments),
		experiments:   cloneTable(s.experiments, cloneExperiment),
		samples:       cloneTable(s.samples, cloneSample),
		materials:     cloneTable(s.materials, cloneMaterial),
		dataStores:    maps.Clone(s.dataStores),
		dataSets:      cloneTable(s.dataSets, cloneDataSet),
		attachments:   maps.Clone(s.attachments),
		events:        maps.Clone(s.events),
		sequence:      s.sequence,
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Instances:     c.instances,
		Groups:        c.groups,
		Persons:       c.persons,
		Roles:         c.roles,
		Projects:      c.projects,
		EntityTypes:   c.entityTypes,
		PropertyTypes: c.propertyTypes,
		Vocabularies:  c.vocabularies,
		Assignments:   c.assignments,
		Experiments:   c.experiments,
		Samples:       c.samples,
		Materials:     c.materials,
		DataStores:    c.dataStores,
		DataSets:      c.dataSets,
		Attachments:   c.attachments,
		Events:        c.events,
		Sequence:      c.sequence,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		instances:     s.Instances,
		groups:        s.Groups,
		persons:       s.Persons,
		roles:         s.Roles,
		projects:      s.Projects,
		entityTypes:   s.EntityTypes,
		propertyTypes: s.PropertyTypes,
		vocabularies:  s.Vocabularies,
		assignments:   s.Assignments,
		experiments:   s.Experiments,
		samples:       s.Samples,
		materials:     s.Materials,
		dataStores:    s.DataStores,
		dataSets:      s.DataSets,
		attachments:   s.Attachments,
		events:        s.Events,
		sequence:      s.Sequence,
	}
	state.ensureTables()
	return state.clone()
}

// ensureTables replaces nil buckets left by partial snapshots.
func (s *memoryState) ensureTables() {
	empty := newMemoryState()
	if s.instances == nil {
		s.instances = empty.instances
	}
	if s.groups == nil {
		s.groups = empty.groups
	}
	if s.persons == nil {
		s.persons = empty.persons
	}
	if s.roles == nil {
		s.roles = empty.roles
	}
	if s.projects == nil {
		s.projects = empty.projects
	}
	if s.entityTypes == nil {
		s.entityTypes = empty.entityTypes
	}
	if s.propertyTypes == nil {
		s.propertyTypes = empty.propertyTypes
	}
	if s.vocabularies == nil {
		s.vocabularies = empty.vocabularies
	}
	if s.assignments == nil {
		s.assignments = empty.assignments
	}
	if s.experiments == nil {
		s.experiments = empty.experiments
	}
	if s.samples == nil {
		s.samples = empty.samples
	}
	if s.materials == nil {
		s.materials = empty.materials
	}
	if s.dataStores == nil {
		s.dataStores = empty.dataStores
	}
	if s.dataSets == nil {
		s.dataSets = empty.dataSets
	}
	if s.attachments == nil {
		s.attachments = empty.attachments
	}
	if s.events == nil {
		s.events = empty.events
	}
}

func cloneTable[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func identity[T any](v T) T { return v }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneProperties(props []domain.EntityProperty) []domain.EntityProperty {
	if props == nil {
		return nil
	}
	return slices.Clone(props)
}

func cloneGroup(g domain.Group) domain.Group {
	g.LeaderID = cloneString(g.LeaderID)
	return g
}

func clonePerson(p domain.Person) domain.Person {
	p.HomeGroupID = cloneString(p.HomeGroupID)
	return p
}

func cloneRoleAssignment(r domain.RoleAssignment) domain.RoleAssignment {
	r.GroupID = cloneString(r.GroupID)
	return r
}

func cloneProject(p domain.Project) domain.Project {
	p.LeaderID = cloneString(p.LeaderID)
	return p
}

func clonePropertyType(p domain.PropertyType) domain.PropertyType {
	p.VocabularyID = cloneString(p.VocabularyID)
	p.MaterialTypeID = cloneString(p.MaterialTypeID)
	return p
}

func cloneVocabulary(v domain.Vocabulary) domain.Vocabulary {
	v.Terms = slices.Clone(v.Terms)
	return v
}

func cloneExperiment(e domain.Experiment) domain.Experiment {
	e.Properties = cloneProperties(e.Properties)
	return e
}

func cloneSample(s domain.Sample) domain.Sample {
	s.GroupID = cloneString(s.GroupID)
	s.ExperimentID = cloneString(s.ExperimentID)
	s.GeneratedFromID = cloneString(s.GeneratedFromID)
	s.ContainerID = cloneString(s.ContainerID)
	s.Properties = cloneProperties(s.Properties)
	return s
}

func cloneMaterial(m domain.Material) domain.Material {
	m.Properties = cloneProperties(m.Properties)
	return m
}

func cloneDataSet(d domain.DataSet) domain.DataSet {
	d.SampleID = cloneString(d.SampleID)
	d.ParentIDs = slices.Clone(d.ParentIDs)
	d.Properties = cloneProperties(d.Properties)
	return d
}
