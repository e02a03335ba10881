package bo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"
)

// world is a small installation: instance DB with groups CISD and OTHER,
// project /CISD/NEMO with experiment EXP1, sample types and one property
// type per interesting data type.
type world struct {
	store      *memory.Store
	session    Session
	instance   domain.DatabaseInstance
	cisd       domain.Group
	other      domain.Group
	project    domain.Project
	otherProj  domain.Project
	expType    domain.EntityType
	experiment domain.Experiment
	otherExp   domain.Experiment
	plate      domain.EntityType
	well       domain.EntityType
	cellPlate  domain.EntityType
	dsType     domain.EntityType
	geneType   domain.EntityType
	store1     domain.DataStore
	local      domain.DataStore
	clock      time.Time
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{store: memory.NewStore(nil), clock: time.Date(2008, 11, 5, 9, 18, 0, 0, time.UTC)}
	w.store.SetNowFunc(func() time.Time {
		w.clock = w.clock.Add(time.Second)
		return w.clock
	})
	w.mustRun(t, func(tx domain.Transaction) error {
		var err error
		if w.instance, err = tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", UUID: "uuid", Home: true}); err != nil {
			return err
		}
		if w.cisd, err = tx.CreateGroup(domain.Group{Code: "CISD", InstanceID: w.instance.ID}); err != nil {
			return err
		}
		if w.other, err = tx.CreateGroup(domain.Group{Code: "OTHER", InstanceID: w.instance.ID}); err != nil {
			return err
		}
		person, err := tx.CreatePerson(domain.Person{UserID: "test", InstanceID: w.instance.ID, HomeGroupID: &w.cisd.ID})
		if err != nil {
			return err
		}
		w.session = Session{Token: "token", Person: person, Instance: w.instance}
		if w.project, err = tx.CreateProject(domain.Project{Code: "NEMO", GroupID: w.cisd.ID}); err != nil {
			return err
		}
		if w.otherProj, err = tx.CreateProject(domain.Project{Code: "FAR", GroupID: w.other.ID}); err != nil {
			return err
		}
		if w.expType, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindExperiment, Code: "SIRNA_HCS"}); err != nil {
			return err
		}
		if w.experiment, err = tx.CreateExperiment(domain.Experiment{Code: "EXP1", ProjectID: w.project.ID, TypeID: w.expType.ID, PermID: "p-1"}); err != nil {
			return err
		}
		if w.otherExp, err = tx.CreateExperiment(domain.Experiment{Code: "EXP2", ProjectID: w.otherProj.ID, TypeID: w.expType.ID, PermID: "p-2"}); err != nil {
			return err
		}
		if w.plate, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "MASTER_PLATE", GeneratedFromDepth: 2, ContainerDepth: 1}); err != nil {
			return err
		}
		if w.well, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "WELL", ContainerDepth: 1}); err != nil {
			return err
		}
		if w.cellPlate, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "CELL_PLATE", GeneratedFromDepth: 2}); err != nil {
			return err
		}
		if w.dsType, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindDataSet, Code: "HCS_IMAGE"}); err != nil {
			return err
		}
		if w.geneType, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindMaterial, Code: "GENE"}); err != nil {
			return err
		}
		if w.store1, err = tx.CreateDataStore(domain.DataStore{Code: "DSS1", RemoteURL: "http://dss1", SessionToken: "dss-token"}); err != nil {
			return err
		}
		if w.local, err = tx.CreateDataStore(domain.DataStore{Code: "STANDARD"}); err != nil {
			return err
		}
		colors, err := tx.CreateVocabulary(domain.Vocabulary{Code: "COLOR", Terms: []domain.VocabularyTerm{
			{Code: "RED", Ordinal: 1}, {Code: "GREEN", Ordinal: 2}, {Code: "BLUE", Ordinal: 3},
		}})
		if err != nil {
			return err
		}
		for _, pt := range []domain.PropertyType{
			{Code: "DESCRIPTION", Label: "Description", DataType: domain.DataVarchar},
			{Code: "COUNT", Label: "Count", DataType: domain.DataInteger},
			{Code: "RATIO", Label: "Ratio", DataType: domain.DataReal},
			{Code: "FLAG", Label: "Flag", DataType: domain.DataBoolean},
			{Code: "WHEN", Label: "When", DataType: domain.DataTimestamp},
			{Code: "COLOR", Label: "Color", DataType: domain.DataControlledVocabulary, VocabularyID: &colors.ID},
			{Code: "GENE", Label: "Gene", DataType: domain.DataMaterial, MaterialTypeID: &w.geneType.ID},
			{Code: "LINK", Label: "Link", DataType: domain.DataHyperlink},
			{Code: "$PLATE_GEOMETRY", Label: "Geometry", DataType: domain.DataVarchar, ManagedInternally: true},
		} {
			if _, err := tx.CreatePropertyType(pt); err != nil {
				return err
			}
		}
		_, err = tx.CreateMaterial(domain.Material{Code: "BRCA1", TypeID: w.geneType.ID})
		return err
	})
	return w
}

// run executes fn in a transaction of the world's store.
func (w *world) run(fn func(tx domain.Transaction) error) error {
	_, err := w.store.RunInTransaction(context.Background(), fn)
	return err
}

func (w *world) mustRun(t *testing.T, fn func(tx domain.Transaction) error) {
	t.Helper()
	if err := w.run(fn); err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

// assign binds property types to an entity type inside its own transaction.
func (w *world) assign(t *testing.T, kind domain.EntityKind, entityType string, mandatory bool, codes ...string) {
	t.Helper()
	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewEntityTypePropertyTypeBO(tx, w.session, kind)
		for _, code := range codes {
			if err := b.CreateAssignment(code, entityType, mandatory, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// registerSample defines and saves a sample, failing the test on error.
func (w *world) registerSample(t *testing.T, ns NewSample) domain.Sample {
	t.Helper()
	var out domain.Sample
	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewSampleBO(tx, w.session)
		if err := b.Define(ns); err != nil {
			return err
		}
		if err := b.Save(); err != nil {
			return err
		}
		var err error
		out, err = b.Sample()
		return err
	})
	return out
}

func (w *world) sample(t *testing.T, id string) domain.Sample {
	t.Helper()
	var out domain.Sample
	_ = w.store.View(context.Background(), func(v domain.TransactionView) error {
		var ok bool
		if out, ok = v.FindSample(id); !ok {
			t.Fatalf("sample %s not found", id)
		}
		return nil
	})
	return out
}

// expectUserFailure asserts err is a user failure whose message contains want.
func expectUserFailure(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected user failure containing %q, got nil", want)
	}
	var uf domain.UserFailureError
	if !errors.As(err, &uf) {
		t.Fatalf("expected user failure, got %T: %v", err, err)
	}
	if !strings.Contains(uf.Message, want) {
		t.Fatalf("expected message containing %q, got %q", want, uf.Message)
	}
}
