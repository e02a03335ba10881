package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to a consistent snapshot of the
// store. It is the data access surface used by business objects, translators
// and rules. Find methods report false when nothing matches; List methods
// return results ordered by code (or creation time where records have no code).
type TransactionView interface {
	HomeDatabaseInstance() (DatabaseInstance, bool)
	FindDatabaseInstance(id string) (DatabaseInstance, bool)
	ListDatabaseInstances() []DatabaseInstance

	FindGroup(id string) (Group, bool)
	FindGroupByCode(code string) (Group, bool)
	ListGroups() []Group

	FindPerson(id string) (Person, bool)
	FindPersonByUserID(userID string) (Person, bool)
	ListPersons() []Person

	FindRoleAssignment(id string) (RoleAssignment, bool)
	ListRoleAssignments() []RoleAssignment
	ListRoleAssignmentsByPerson(personID string) []RoleAssignment

	FindProject(id string) (Project, bool)
	FindProjectByCode(groupID, code string) (Project, bool)
	ListProjects() []Project
	ListProjectsByGroup(groupID string) []Project

	FindEntityType(id string) (EntityType, bool)
	FindEntityTypeByCode(kind EntityKind, code string) (EntityType, bool)
	ListEntityTypes(kind EntityKind) []EntityType

	FindPropertyType(id string) (PropertyType, bool)
	FindPropertyTypeByCode(code string) (PropertyType, bool)
	ListPropertyTypes() []PropertyType

	FindVocabulary(id string) (Vocabulary, bool)
	FindVocabularyByCode(code string) (Vocabulary, bool)
	ListVocabularies() []Vocabulary

	FindAssignment(id string) (Assignment, bool)
	FindAssignmentFor(kind EntityKind, entityTypeID, propertyTypeID string) (Assignment, bool)
	ListAssignments(kind EntityKind, entityTypeID string) []Assignment
	ListAssignmentsByPropertyType(propertyTypeID string) []Assignment

	FindExperiment(id string) (Experiment, bool)
	FindExperimentByCode(projectID, code string) (Experiment, bool)
	ListExperiments() []Experiment
	ListExperimentsByProject(projectID, typeID string) []Experiment
	ListExperimentsByType(typeID string) []Experiment

	FindSample(id string) (Sample, bool)
	FindSampleByCode(groupID *string, code string) (Sample, bool)
	FindSampleByPermID(permID string) (Sample, bool)
	ListSamples() []Sample
	ListSamplesByExperiment(experimentID string) []Sample
	ListSamplesByType(typeID string) []Sample
	ListSamplesGeneratedFrom(parentID string) []Sample
	ListSamplesByContainer(containerID string) []Sample

	FindMaterial(id string) (Material, bool)
	FindMaterialByCode(typeID, code string) (Material, bool)
	ListMaterials(typeID string) []Material

	FindDataStore(id string) (DataStore, bool)
	FindDataStoreByCode(code string) (DataStore, bool)
	ListDataStores() []DataStore

	FindDataSet(id string) (DataSet, bool)
	FindDataSetByCode(code string) (DataSet, bool)
	ListDataSets() []DataSet
	ListDataSetsByExperiment(experimentID string) []DataSet
	ListDataSetsBySample(sampleID string) []DataSet
	ListDataSetsByType(typeID string) []DataSet
	ListDataSetChildren(parentID string) []DataSet

	FindAttachment(id string) (Attachment, bool)
	ListAttachments(holderKind RecordKind, holderID string) []Attachment

	ListEvents() []Event
}

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope, on top of the read surface of its own
// uncommitted state.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	Now() time.Time
	NextPermID() string

	CreateDatabaseInstance(DatabaseInstance) (DatabaseInstance, error)
	UpdateDatabaseInstance(id string, mutator func(*DatabaseInstance) error) (DatabaseInstance, error)

	CreateGroup(Group) (Group, error)
	UpdateGroup(id string, mutator func(*Group) error) (Group, error)
	DeleteGroup(id string) error

	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)

	CreateRoleAssignment(RoleAssignment) (RoleAssignment, error)
	DeleteRoleAssignment(id string) error

	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	DeleteProject(id string) error

	CreateEntityType(EntityType) (EntityType, error)
	UpdateEntityType(id string, mutator func(*EntityType) error) (EntityType, error)
	DeleteEntityType(id string) error

	CreatePropertyType(PropertyType) (PropertyType, error)
	UpdatePropertyType(id string, mutator func(*PropertyType) error) (PropertyType, error)
	DeletePropertyType(id string) error

	CreateVocabulary(Vocabulary) (Vocabulary, error)
	UpdateVocabulary(id string, mutator func(*Vocabulary) error) (Vocabulary, error)
	DeleteVocabulary(id string) error

	CreateAssignment(Assignment) (Assignment, error)
	UpdateAssignment(id string, mutator func(*Assignment) error) (Assignment, error)
	DeleteAssignment(id string) error

	CreateExperiment(Experiment) (Experiment, error)
	UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error)
	DeleteExperiment(id string) error

	CreateSample(Sample) (Sample, error)
	UpdateSample(id string, mutator func(*Sample) error) (Sample, error)
	DeleteSample(id string) error

	CreateMaterial(Material) (Material, error)
	UpdateMaterial(id string, mutator func(*Material) error) (Material, error)
	DeleteMaterial(id string) error

	CreateDataStore(DataStore) (DataStore, error)
	UpdateDataStore(id string, mutator func(*DataStore) error) (DataStore, error)

	CreateDataSet(DataSet) (DataSet, error)
	UpdateDataSet(id string, mutator func(*DataSet) error) (DataSet, error)
	DeleteDataSet(id string) error

	CreateAttachment(Attachment) (Attachment, error)
	DeleteAttachment(id string) error

	CreateEvent(Event) (Event, error)
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
