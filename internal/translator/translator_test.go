package translator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"openbis/internal/bo"
	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

type fixture struct {
	store    *memory.Store
	person   domain.Person
	group    domain.Group
	project  domain.Project
	exp      domain.Experiment
	plate    domain.Sample
	well     domain.Sample
	shared   domain.Sample
	dataSet  domain.DataSet
	material domain.Material
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(nil)}
	_, err := f.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		inst, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", UUID: "u-1", Home: true})
		if err != nil {
			return err
		}
		if f.group, err = tx.CreateGroup(domain.Group{Code: "CISD", Description: "<b>lab</b>", InstanceID: inst.ID}); err != nil {
			return err
		}
		if f.person, err = tx.CreatePerson(domain.Person{UserID: "jane", FirstName: "Jane", Email: "j@x.org", InstanceID: inst.ID, HomeGroupID: &f.group.ID}); err != nil {
			return err
		}
		if f.project, err = tx.CreateProject(domain.Project{Code: "NEMO", GroupID: f.group.ID, RegistratorID: f.person.ID}); err != nil {
			return err
		}
		expType, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindExperiment, Code: "SIRNA"})
		if err != nil {
			return err
		}
		if f.exp, err = tx.CreateExperiment(domain.Experiment{Code: "EXP1", ProjectID: f.project.ID, TypeID: expType.ID, PermID: "p-1"}); err != nil {
			return err
		}
		plateType, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "PLATE", GeneratedFromDepth: 1, ContainerDepth: 1})
		if err != nil {
			return err
		}
		colors, err := tx.CreateVocabulary(domain.Vocabulary{Code: "COLOR", Terms: []domain.VocabularyTerm{{Code: "RED", Label: "Red & Co", Ordinal: 1}}})
		if err != nil {
			return err
		}
		color, err := tx.CreatePropertyType(domain.PropertyType{Code: "COLOR", Label: "Colour", DataType: domain.DataControlledVocabulary, VocabularyID: &colors.ID})
		if err != nil {
			return err
		}
		if _, err := tx.CreateAssignment(domain.Assignment{Kind: domain.KindSample, EntityTypeID: plateType.ID, PropertyTypeID: color.ID, Mandatory: true, Ordinal: 1}); err != nil {
			return err
		}
		if f.shared, err = tx.CreateSample(domain.Sample{Code: "MASTER", TypeID: plateType.ID, InstanceID: inst.ID}); err != nil {
			return err
		}
		if f.plate, err = tx.CreateSample(domain.Sample{
			Code: "P1", TypeID: plateType.ID, InstanceID: inst.ID, GroupID: &f.group.ID, ExperimentID: &f.exp.ID,
			GeneratedFromID: &f.shared.ID, RegistratorID: f.person.ID,
			Properties: []domain.EntityProperty{{PropertyTypeCode: "COLOR", Value: "RED"}},
		}); err != nil {
			return err
		}
		if f.well, err = tx.CreateSample(domain.Sample{Code: "P1:A1", TypeID: plateType.ID, InstanceID: inst.ID, GroupID: &f.group.ID, ContainerID: &f.plate.ID}); err != nil {
			return err
		}
		dsType, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindDataSet, Code: "IMAGE"})
		if err != nil {
			return err
		}
		dss, err := tx.CreateDataStore(domain.DataStore{Code: "DSS", RemoteURL: "http://dss", SessionToken: "secret"})
		if err != nil {
			return err
		}
		parent, err := tx.CreateDataSet(domain.DataSet{Code: "DS-0", TypeID: dsType.ID, ExperimentID: f.exp.ID, DataStoreID: dss.ID, Location: "a/0"})
		if err != nil {
			return err
		}
		if f.dataSet, err = tx.CreateDataSet(domain.DataSet{
			Code: "DS-1", TypeID: dsType.ID, ExperimentID: f.exp.ID, SampleID: &f.plate.ID, DataStoreID: dss.ID,
			Location: "a/<1>", ParentIDs: []string{parent.ID},
		}); err != nil {
			return err
		}
		geneType, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindMaterial, Code: "GENE"})
		if err != nil {
			return err
		}
		f.material, err = tx.CreateMaterial(domain.Material{Code: "BRCA1", TypeID: geneType.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func (f *fixture) view(t *testing.T, fn func(tr *Translator)) {
	t.Helper()
	if err := f.store.View(context.Background(), func(v domain.TransactionView) error {
		fn(New(v))
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestNilTranslatesToNil(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		if tr.Group(nil) != nil || tr.Person(nil) != nil || tr.Sample(nil) != nil || tr.Experiment(nil) != nil ||
			tr.Project(nil) != nil || tr.EntityType(nil, true) != nil || tr.PropertyType(nil) != nil ||
			tr.Vocabulary(nil) != nil || tr.VocabularyTerm(nil) != nil || tr.Material(nil) != nil ||
			tr.DataSet(nil) != nil || tr.DataStore(nil) != nil || tr.Attachment(nil) != nil || tr.Event(nil) != nil ||
			tr.RoleAssignment(nil) != nil || tr.DatabaseInstance(nil) != nil || tr.Assignment(nil) != nil ||
			tr.SampleParentWithDerived(nil) != nil {
			t.Fatalf("nil entity must translate to nil")
		}
	})
}

func TestGroupEscapesUserStrings(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		got := tr.Group(&f.group)
		want := &api.Group{
			ID:          f.group.ID,
			Code:        "CISD",
			Description: "&lt;b&gt;lab&lt;/b&gt;",
			Identifier:  "DB:/CISD",
			Instance:    &api.DatabaseInstance{Code: "DB", UUID: "u-1", Home: true, Identifier: "DB"},
		}
		opts := cmpopts.IgnoreFields(api.DatabaseInstance{}, "ID")
		if diff := cmp.Diff(want, got, opts, cmpopts.IgnoreFields(api.Group{}, "RegistrationDate")); diff != "" {
			t.Fatalf("group mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSampleReferences(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		s := tr.Sample(&f.plate)
		if s.Identifier != "DB:/CISD/P1" || s.Group.Code != "CISD" || s.Instance != nil {
			t.Fatalf("unexpected sample %+v", s)
		}
		if s.Experiment == nil || s.Experiment.Identifier != "DB:/CISD/NEMO/EXP1" {
			t.Fatalf("unexpected experiment %+v", s.Experiment)
		}
		if s.GeneratedFrom == nil || s.GeneratedFrom.Identifier != "DB:/MASTER" || s.GeneratedFrom.Instance == nil {
			t.Fatalf("unexpected parent %+v", s.GeneratedFrom)
		}
		if s.Registrator == nil || s.Registrator.UserID != "jane" || s.Registrator.HomeGroupCode != "CISD" {
			t.Fatalf("unexpected registrator %+v", s.Registrator)
		}
		wantProps := []api.Property{{
			Code: "COLOR", Label: "Colour", DataType: "CONTROLLEDVOCABULARY", Value: "RED",
			Term: &api.VocabularyTerm{Code: "RED", Label: "Red &amp; Co", Ordinal: 1, Display: "Red &amp; Co [RED]"},
		}}
		if diff := cmp.Diff(wantProps, s.Properties); diff != "" {
			t.Fatalf("properties mismatch (-want +got):\n%s", diff)
		}

		well := tr.Sample(&f.well)
		if well.Container == nil || well.Container.Code != "P1" || well.Container.Experiment != nil {
			t.Fatalf("container must be a shallow sample, got %+v", well.Container)
		}
	})
}

func TestSampleParentWithDerived(t *testing.T) {
	f := newFixture(t)
	var info bo.SampleParentWithDerived
	err := f.store.View(context.Background(), func(v domain.TransactionView) error {
		var err error
		info, err = bo.GetSampleInfo(v, f.shared.ID)
		return err
	})
	if err != nil {
		t.Fatalf("sample info: %v", err)
	}
	f.view(t, func(tr *Translator) {
		got := tr.SampleParentWithDerived(&info)
		if got.Parent.Code != "MASTER" || len(got.Derived) != 1 || got.Derived[0].Code != "P1" {
			t.Fatalf("unexpected hierarchy %+v", got)
		}
	})
}

func TestDataSetAndDataStore(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		ds := tr.DataSet(&f.dataSet)
		if ds.Location != "a/&lt;1&gt;" || ds.ExperimentIdentifier != "DB:/CISD/NEMO/EXP1" || ds.SampleIdentifier != "DB:/CISD/P1" {
			t.Fatalf("unexpected data set %+v", ds)
		}
		if diff := cmp.Diff([]string{"DS-0"}, ds.ParentCodes); diff != "" {
			t.Fatalf("parents mismatch (-want +got):\n%s", diff)
		}
		if ds.DataStore == nil || ds.DataStore.RemoteURL != "http://dss" {
			t.Fatalf("unexpected data store %+v", ds.DataStore)
		}
	})
}

func TestEntityTypeWithAssignments(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		types := tr.EntityTypes(f.storeTypes(t, domain.KindSample), true)
		if len(types) != 1 || len(types[0].Assignments) != 1 {
			t.Fatalf("unexpected types %+v", types)
		}
		a := types[0].Assignments[0]
		if a.EntityTypeCode != "PLATE" || !a.Mandatory || a.PropertyType.Vocabulary == nil || a.PropertyType.Vocabulary.Code != "COLOR" {
			t.Fatalf("unexpected assignment %+v", a)
		}
		if bare := tr.EntityTypes(f.storeTypes(t, domain.KindSample), false); bare[0].Assignments != nil {
			t.Fatalf("assignments must be omitted")
		}
	})
}

func (f *fixture) storeTypes(t *testing.T, kind domain.EntityKind) []domain.EntityType {
	t.Helper()
	var out []domain.EntityType
	_ = f.store.View(context.Background(), func(v domain.TransactionView) error {
		out = v.ListEntityTypes(kind)
		return nil
	})
	return out
}

func TestMaterialAndRoleAssignment(t *testing.T) {
	f := newFixture(t)
	f.view(t, func(tr *Translator) {
		if m := tr.Material(&f.material); m.Identifier != "BRCA1 (GENE)" || m.MaterialType.Code != "GENE" {
			t.Fatalf("unexpected material %+v", m)
		}
		ra := tr.RoleAssignment(&domain.RoleAssignment{PersonID: f.person.ID, Role: domain.RoleInstanceAdmin})
		if ra.Code != "INSTANCE_ADMIN" || ra.Group != nil || ra.Instance == nil || ra.Person.UserID != "jane" {
			t.Fatalf("unexpected role assignment %+v", ra)
		}
	})
}
