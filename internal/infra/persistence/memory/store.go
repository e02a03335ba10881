// Package memory provides an in-memory implementation of the persistence
// store used for tests, ephemeral environments and as the transactional
// engine behind the durable snapshot stores.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"openbis/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Transaction     = (*transaction)(nil)
)

// Store provides an in-memory transactional store for the domain records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider; nil restores the wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// transaction represents a mutation set applied to a private copy of the store state.
type transaction struct {
	view
	store   *Store
	state   *memoryState
	changes []domain.Change
	now     time.Time
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules see the uncommitted state; blocking violations abort the commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.clone()
	tx := &transaction{
		view:  view{state: &state},
		store: s,
		state: &state,
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return tx.view
}

// Now returns the timestamp applied to records written by the transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

// NextPermID returns a permanent identifier unique across the installation:
// the transaction timestamp to millisecond precision plus a sequence number.
func (tx *transaction) NextPermID() string {
	tx.state.sequence++
	return fmt.Sprintf("%s%03d-%d", tx.now.Format("20060102150405"), tx.now.Nanosecond()/int(time.Millisecond), tx.state.sequence)
}

type record[T any] interface {
	*T
	Meta() *domain.Base
}

func createRecord[T any, P record[T]](tx *transaction, kind domain.RecordKind, table map[string]T, clone func(T) T, value T) (T, error) {
	var zero T
	meta := P(&value).Meta()
	if meta.ID == "" {
		meta.ID = tx.store.newID()
	}
	if _, exists := table[meta.ID]; exists {
		return zero, fmt.Errorf("%s %q already exists", kind, meta.ID)
	}
	meta.CreatedAt = tx.now
	meta.UpdatedAt = tx.now
	table[meta.ID] = clone(value)
	tx.recordChange(domain.Change{Entity: kind, Action: domain.ActionCreate, After: clone(value)})
	return clone(value), nil
}

func updateRecord[T any, P record[T]](tx *transaction, kind domain.RecordKind, table map[string]T, clone func(T) T, id string, mutator func(*T) error) (T, error) {
	var zero T
	current, ok := table[id]
	if !ok {
		return zero, domain.ErrNotFound{Entity: kind, ID: id}
	}
	before := clone(current)
	current = clone(current)
	if err := mutator(&current); err != nil {
		return zero, err
	}
	meta := P(&current).Meta()
	meta.ID = id
	meta.CreatedAt = P(&before).Meta().CreatedAt
	meta.UpdatedAt = tx.now
	table[id] = clone(current)
	tx.recordChange(domain.Change{Entity: kind, Action: domain.ActionUpdate, Before: before, After: clone(current)})
	return clone(current), nil
}

func deleteRecord[T any](tx *transaction, kind domain.RecordKind, table map[string]T, id string) error {
	current, ok := table[id]
	if !ok {
		return domain.ErrNotFound{Entity: kind, ID: id}
	}
	delete(table, id)
	tx.recordChange(domain.Change{Entity: kind, Action: domain.ActionDelete, Before: current})
	return nil
}

func requireRef[T any](table map[string]T, kind domain.RecordKind, id string) error {
	if _, ok := table[id]; !ok {
		return domain.ErrNotFound{Entity: kind, ID: id}
	}
	return nil
}

func requireOptionalRef[T any](table map[string]T, kind domain.RecordKind, id *string) error {
	if id == nil {
		return nil
	}
	return requireRef(table, kind, *id)
}

func stillReferenced(kind domain.RecordKind, id string, by domain.RecordKind, byID string) error {
	return fmt.Errorf("%s %q still referenced by %s %q", kind, id, by, byID)
}

// CreateDatabaseInstance stores a database instance. Only one home instance may exist.
func (tx *transaction) CreateDatabaseInstance(inst domain.DatabaseInstance) (domain.DatabaseInstance, error) {
	if inst.Home {
		if home, ok := tx.HomeDatabaseInstance(); ok {
			return domain.DatabaseInstance{}, fmt.Errorf("home database instance %q already exists", home.Code)
		}
	}
	return createRecord(tx, domain.RecordDatabaseInstance, tx.state.instances, identity, inst)
}

// UpdateDatabaseInstance mutates a database instance.
func (tx *transaction) UpdateDatabaseInstance(id string, mutator func(*domain.DatabaseInstance) error) (domain.DatabaseInstance, error) {
	return updateRecord(tx, domain.RecordDatabaseInstance, tx.state.instances, identity, id, mutator)
}

// CreateGroup stores a new group.
func (tx *transaction) CreateGroup(g domain.Group) (domain.Group, error) {
	if err := requireRef(tx.state.instances, domain.RecordDatabaseInstance, g.InstanceID); err != nil {
		return domain.Group{}, err
	}
	if _, exists := tx.FindGroupByCode(g.Code); exists {
		return domain.Group{}, fmt.Errorf("group %q already exists", g.Code)
	}
	return createRecord(tx, domain.RecordGroup, tx.state.groups, cloneGroup, g)
}

// UpdateGroup mutates a group.
func (tx *transaction) UpdateGroup(id string, mutator func(*domain.Group) error) (domain.Group, error) {
	return updateRecord(tx, domain.RecordGroup, tx.state.groups, cloneGroup, id, mutator)
}

// DeleteGroup removes a group that owns nothing.
func (tx *transaction) DeleteGroup(id string) error {
	for _, p := range tx.state.projects {
		if p.GroupID == id {
			return stillReferenced(domain.RecordGroup, id, domain.RecordProject, p.ID)
		}
	}
	for _, s := range tx.state.samples {
		if refersTo(s.GroupID, id) {
			return stillReferenced(domain.RecordGroup, id, domain.RecordSample, s.ID)
		}
	}
	for _, r := range tx.state.roles {
		if refersTo(r.GroupID, id) {
			return stillReferenced(domain.RecordGroup, id, domain.RecordRoleAssignment, r.ID)
		}
	}
	for pid, p := range tx.state.persons {
		if refersTo(p.HomeGroupID, id) {
			p.HomeGroupID = nil
			tx.state.persons[pid] = p
		}
	}
	return deleteRecord(tx, domain.RecordGroup, tx.state.groups, id)
}

// CreatePerson stores a new person; user ids are unique.
func (tx *transaction) CreatePerson(p domain.Person) (domain.Person, error) {
	if _, exists := tx.FindPersonByUserID(p.UserID); exists {
		return domain.Person{}, fmt.Errorf("person %q already exists", p.UserID)
	}
	if err := requireOptionalRef(tx.state.groups, domain.RecordGroup, p.HomeGroupID); err != nil {
		return domain.Person{}, err
	}
	return createRecord(tx, domain.RecordPerson, tx.state.persons, clonePerson, p)
}

// UpdatePerson mutates a person.
func (tx *transaction) UpdatePerson(id string, mutator func(*domain.Person) error) (domain.Person, error) {
	return updateRecord(tx, domain.RecordPerson, tx.state.persons, clonePerson, id, func(p *domain.Person) error {
		if err := mutator(p); err != nil {
			return err
		}
		return requireOptionalRef(tx.state.groups, domain.RecordGroup, p.HomeGroupID)
	})
}

// CreateRoleAssignment stores a role assignment.
func (tx *transaction) CreateRoleAssignment(r domain.RoleAssignment) (domain.RoleAssignment, error) {
	if err := requireRef(tx.state.persons, domain.RecordPerson, r.PersonID); err != nil {
		return domain.RoleAssignment{}, err
	}
	if err := requireOptionalRef(tx.state.groups, domain.RecordGroup, r.GroupID); err != nil {
		return domain.RoleAssignment{}, err
	}
	return createRecord(tx, domain.RecordRoleAssignment, tx.state.roles, cloneRoleAssignment, r)
}

// DeleteRoleAssignment removes a role assignment.
func (tx *transaction) DeleteRoleAssignment(id string) error {
	return deleteRecord(tx, domain.RecordRoleAssignment, tx.state.roles, id)
}

// CreateProject stores a new project inside an existing group.
func (tx *transaction) CreateProject(p domain.Project) (domain.Project, error) {
	if err := requireRef(tx.state.groups, domain.RecordGroup, p.GroupID); err != nil {
		return domain.Project{}, err
	}
	return createRecord(tx, domain.RecordProject, tx.state.projects, cloneProject, p)
}

// UpdateProject mutates a project.
func (tx *transaction) UpdateProject(id string, mutator func(*domain.Project) error) (domain.Project, error) {
	return updateRecord(tx, domain.RecordProject, tx.state.projects, cloneProject, id, mutator)
}

// DeleteProject removes a project without experiments.
func (tx *transaction) DeleteProject(id string) error {
	for _, e := range tx.state.experiments {
		if e.ProjectID == id {
			return stillReferenced(domain.RecordProject, id, domain.RecordExperiment, e.ID)
		}
	}
	return deleteRecord(tx, domain.RecordProject, tx.state.projects, id)
}

// CreateEntityType stores a new entity type.
func (tx *transaction) CreateEntityType(t domain.EntityType) (domain.EntityType, error) {
	if _, exists := tx.FindEntityTypeByCode(t.Kind, t.Code); exists {
		return domain.EntityType{}, fmt.Errorf("%s type %q already exists", t.Kind.Label(), t.Code)
	}
	return createRecord(tx, domain.RecordEntityType, tx.state.entityTypes, identity, t)
}

// UpdateEntityType mutates an entity type.
func (tx *transaction) UpdateEntityType(id string, mutator func(*domain.EntityType) error) (domain.EntityType, error) {
	return updateRecord(tx, domain.RecordEntityType, tx.state.entityTypes, identity, id, mutator)
}

// DeleteEntityType removes an unused entity type.
func (tx *transaction) DeleteEntityType(id string) error {
	for _, a := range tx.state.assignments {
		if a.EntityTypeID == id {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordAssignment, a.ID)
		}
	}
	for _, e := range tx.state.experiments {
		if e.TypeID == id {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordExperiment, e.ID)
		}
	}
	for _, s := range tx.state.samples {
		if s.TypeID == id {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordSample, s.ID)
		}
	}
	for _, m := range tx.state.materials {
		if m.TypeID == id {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordMaterial, m.ID)
		}
	}
	for _, d := range tx.state.dataSets {
		if d.TypeID == id {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordDataSet, d.ID)
		}
	}
	for _, p := range tx.state.propertyTypes {
		if refersTo(p.MaterialTypeID, id) {
			return stillReferenced(domain.RecordEntityType, id, domain.RecordPropertyType, p.ID)
		}
	}
	return deleteRecord(tx, domain.RecordEntityType, tx.state.entityTypes, id)
}

// CreatePropertyType stores a new property type; codes are unique.
func (tx *transaction) CreatePropertyType(p domain.PropertyType) (domain.PropertyType, error) {
	if _, exists := tx.FindPropertyTypeByCode(p.Code); exists {
		return domain.PropertyType{}, fmt.Errorf("property type %q already exists", p.Code)
	}
	if err := requireOptionalRef(tx.state.vocabularies, domain.RecordVocabulary, p.VocabularyID); err != nil {
		return domain.PropertyType{}, err
	}
	if err := requireOptionalRef(tx.state.entityTypes, domain.RecordEntityType, p.MaterialTypeID); err != nil {
		return domain.PropertyType{}, err
	}
	return createRecord(tx, domain.RecordPropertyType, tx.state.propertyTypes, clonePropertyType, p)
}

// UpdatePropertyType mutates a property type.
func (tx *transaction) UpdatePropertyType(id string, mutator func(*domain.PropertyType) error) (domain.PropertyType, error) {
	return updateRecord(tx, domain.RecordPropertyType, tx.state.propertyTypes, clonePropertyType, id, mutator)
}

// DeletePropertyType removes a property type that is not assigned.
func (tx *transaction) DeletePropertyType(id string) error {
	for _, a := range tx.state.assignments {
		if a.PropertyTypeID == id {
			return stillReferenced(domain.RecordPropertyType, id, domain.RecordAssignment, a.ID)
		}
	}
	return deleteRecord(tx, domain.RecordPropertyType, tx.state.propertyTypes, id)
}

// CreateVocabulary stores a new vocabulary; codes are unique.
func (tx *transaction) CreateVocabulary(v domain.Vocabulary) (domain.Vocabulary, error) {
	if _, exists := tx.FindVocabularyByCode(v.Code); exists {
		return domain.Vocabulary{}, fmt.Errorf("vocabulary %q already exists", v.Code)
	}
	return createRecord(tx, domain.RecordVocabulary, tx.state.vocabularies, cloneVocabulary, v)
}

// UpdateVocabulary mutates a vocabulary and its terms.
func (tx *transaction) UpdateVocabulary(id string, mutator func(*domain.Vocabulary) error) (domain.Vocabulary, error) {
	return updateRecord(tx, domain.RecordVocabulary, tx.state.vocabularies, cloneVocabulary, id, mutator)
}

// DeleteVocabulary removes a vocabulary not used by any property type.
func (tx *transaction) DeleteVocabulary(id string) error {
	for _, p := range tx.state.propertyTypes {
		if refersTo(p.VocabularyID, id) {
			return stillReferenced(domain.RecordVocabulary, id, domain.RecordPropertyType, p.ID)
		}
	}
	return deleteRecord(tx, domain.RecordVocabulary, tx.state.vocabularies, id)
}

// CreateAssignment stores a property type assignment.
func (tx *transaction) CreateAssignment(a domain.Assignment) (domain.Assignment, error) {
	if err := requireRef(tx.state.entityTypes, domain.RecordEntityType, a.EntityTypeID); err != nil {
		return domain.Assignment{}, err
	}
	if err := requireRef(tx.state.propertyTypes, domain.RecordPropertyType, a.PropertyTypeID); err != nil {
		return domain.Assignment{}, err
	}
	if _, exists := tx.FindAssignmentFor(a.Kind, a.EntityTypeID, a.PropertyTypeID); exists {
		return domain.Assignment{}, fmt.Errorf("assignment of property type %q to entity type %q already exists", a.PropertyTypeID, a.EntityTypeID)
	}
	return createRecord(tx, domain.RecordAssignment, tx.state.assignments, identity, a)
}

// UpdateAssignment mutates an assignment.
func (tx *transaction) UpdateAssignment(id string, mutator func(*domain.Assignment) error) (domain.Assignment, error) {
	return updateRecord(tx, domain.RecordAssignment, tx.state.assignments, identity, id, mutator)
}

// DeleteAssignment removes an assignment.
func (tx *transaction) DeleteAssignment(id string) error {
	return deleteRecord(tx, domain.RecordAssignment, tx.state.assignments, id)
}

// CreateExperiment stores a new experiment.
func (tx *transaction) CreateExperiment(e domain.Experiment) (domain.Experiment, error) {
	if err := requireRef(tx.state.projects, domain.RecordProject, e.ProjectID); err != nil {
		return domain.Experiment{}, err
	}
	if err := requireRef(tx.state.entityTypes, domain.RecordEntityType, e.TypeID); err != nil {
		return domain.Experiment{}, err
	}
	return createRecord(tx, domain.RecordExperiment, tx.state.experiments, cloneExperiment, e)
}

// UpdateExperiment mutates an experiment.
func (tx *transaction) UpdateExperiment(id string, mutator func(*domain.Experiment) error) (domain.Experiment, error) {
	return updateRecord(tx, domain.RecordExperiment, tx.state.experiments, cloneExperiment, id, func(e *domain.Experiment) error {
		if err := mutator(e); err != nil {
			return err
		}
		return requireRef(tx.state.projects, domain.RecordProject, e.ProjectID)
	})
}

// DeleteExperiment removes an experiment without samples or data sets.
func (tx *transaction) DeleteExperiment(id string) error {
	for _, s := range tx.state.samples {
		if refersTo(s.ExperimentID, id) {
			return stillReferenced(domain.RecordExperiment, id, domain.RecordSample, s.ID)
		}
	}
	for _, d := range tx.state.dataSets {
		if d.ExperimentID == id {
			return stillReferenced(domain.RecordExperiment, id, domain.RecordDataSet, d.ID)
		}
	}
	return deleteRecord(tx, domain.RecordExperiment, tx.state.experiments, id)
}

func (tx *transaction) checkSampleRefs(s *domain.Sample) error {
	if err := requireRef(tx.state.entityTypes, domain.RecordEntityType, s.TypeID); err != nil {
		return err
	}
	if err := requireOptionalRef(tx.state.groups, domain.RecordGroup, s.GroupID); err != nil {
		return err
	}
	if err := requireOptionalRef(tx.state.experiments, domain.RecordExperiment, s.ExperimentID); err != nil {
		return err
	}
	if err := requireOptionalRef(tx.state.samples, domain.RecordSample, s.GeneratedFromID); err != nil {
		return err
	}
	return requireOptionalRef(tx.state.samples, domain.RecordSample, s.ContainerID)
}

// CreateSample stores a new sample.
func (tx *transaction) CreateSample(s domain.Sample) (domain.Sample, error) {
	if err := tx.checkSampleRefs(&s); err != nil {
		return domain.Sample{}, err
	}
	return createRecord(tx, domain.RecordSample, tx.state.samples, cloneSample, s)
}

// UpdateSample mutates a sample.
func (tx *transaction) UpdateSample(id string, mutator func(*domain.Sample) error) (domain.Sample, error) {
	return updateRecord(tx, domain.RecordSample, tx.state.samples, cloneSample, id, func(s *domain.Sample) error {
		if err := mutator(s); err != nil {
			return err
		}
		return tx.checkSampleRefs(s)
	})
}

// DeleteSample removes a sample no other record depends on.
func (tx *transaction) DeleteSample(id string) error {
	for _, d := range tx.state.dataSets {
		if refersTo(d.SampleID, id) {
			return stillReferenced(domain.RecordSample, id, domain.RecordDataSet, d.ID)
		}
	}
	for _, s := range tx.state.samples {
		if refersTo(s.GeneratedFromID, id) || refersTo(s.ContainerID, id) {
			return stillReferenced(domain.RecordSample, id, domain.RecordSample, s.ID)
		}
	}
	return deleteRecord(tx, domain.RecordSample, tx.state.samples, id)
}

// CreateMaterial stores a new material.
func (tx *transaction) CreateMaterial(m domain.Material) (domain.Material, error) {
	if err := requireRef(tx.state.entityTypes, domain.RecordEntityType, m.TypeID); err != nil {
		return domain.Material{}, err
	}
	if _, exists := tx.FindMaterialByCode(m.TypeID, m.Code); exists {
		return domain.Material{}, fmt.Errorf("material %q already exists", m.Code)
	}
	return createRecord(tx, domain.RecordMaterial, tx.state.materials, cloneMaterial, m)
}

// UpdateMaterial mutates a material.
func (tx *transaction) UpdateMaterial(id string, mutator func(*domain.Material) error) (domain.Material, error) {
	return updateRecord(tx, domain.RecordMaterial, tx.state.materials, cloneMaterial, id, mutator)
}

// DeleteMaterial removes a material.
func (tx *transaction) DeleteMaterial(id string) error {
	return deleteRecord(tx, domain.RecordMaterial, tx.state.materials, id)
}

// CreateDataStore stores a data store server registration.
func (tx *transaction) CreateDataStore(d domain.DataStore) (domain.DataStore, error) {
	if _, exists := tx.FindDataStoreByCode(d.Code); exists {
		return domain.DataStore{}, fmt.Errorf("data store %q already exists", d.Code)
	}
	return createRecord(tx, domain.RecordDataStore, tx.state.dataStores, identity, d)
}

// UpdateDataStore mutates a data store registration.
func (tx *transaction) UpdateDataStore(id string, mutator func(*domain.DataStore) error) (domain.DataStore, error) {
	return updateRecord(tx, domain.RecordDataStore, tx.state.dataStores, identity, id, mutator)
}

func (tx *transaction) checkDataSetRefs(d *domain.DataSet) error {
	if err := requireRef(tx.state.entityTypes, domain.RecordEntityType, d.TypeID); err != nil {
		return err
	}
	if err := requireRef(tx.state.experiments, domain.RecordExperiment, d.ExperimentID); err != nil {
		return err
	}
	if err := requireOptionalRef(tx.state.samples, domain.RecordSample, d.SampleID); err != nil {
		return err
	}
	if err := requireRef(tx.state.dataStores, domain.RecordDataStore, d.DataStoreID); err != nil {
		return err
	}
	for _, parent := range d.ParentIDs {
		if err := requireRef(tx.state.dataSets, domain.RecordDataSet, parent); err != nil {
			return err
		}
	}
	return nil
}

// CreateDataSet stores a new data set; codes are unique.
func (tx *transaction) CreateDataSet(d domain.DataSet) (domain.DataSet, error) {
	if _, exists := tx.FindDataSetByCode(d.Code); exists {
		return domain.DataSet{}, fmt.Errorf("data set %q already exists", d.Code)
	}
	if err := tx.checkDataSetRefs(&d); err != nil {
		return domain.DataSet{}, err
	}
	return createRecord(tx, domain.RecordDataSet, tx.state.dataSets, cloneDataSet, d)
}

// UpdateDataSet mutates a data set.
func (tx *transaction) UpdateDataSet(id string, mutator func(*domain.DataSet) error) (domain.DataSet, error) {
	return updateRecord(tx, domain.RecordDataSet, tx.state.dataSets, cloneDataSet, id, func(d *domain.DataSet) error {
		if err := mutator(d); err != nil {
			return err
		}
		return tx.checkDataSetRefs(d)
	})
}

// DeleteDataSet removes a data set and detaches it from its children.
func (tx *transaction) DeleteDataSet(id string) error {
	if err := deleteRecord(tx, domain.RecordDataSet, tx.state.dataSets, id); err != nil {
		return err
	}
	for cid, child := range tx.state.dataSets {
		parents := child.ParentIDs[:0:0]
		for _, p := range child.ParentIDs {
			if p != id {
				parents = append(parents, p)
			}
		}
		if len(parents) != len(child.ParentIDs) {
			child.ParentIDs = parents
			tx.state.dataSets[cid] = child
		}
	}
	return nil
}

// CreateAttachment stores attachment metadata.
func (tx *transaction) CreateAttachment(a domain.Attachment) (domain.Attachment, error) {
	return createRecord(tx, domain.RecordAttachment, tx.state.attachments, identity, a)
}

// DeleteAttachment removes attachment metadata.
func (tx *transaction) DeleteAttachment(id string) error {
	return deleteRecord(tx, domain.RecordAttachment, tx.state.attachments, id)
}

// CreateEvent appends an event.
func (tx *transaction) CreateEvent(e domain.Event) (domain.Event, error) {
	return createRecord(tx, domain.RecordEvent, tx.state.events, identity, e)
}
