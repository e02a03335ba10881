package memory

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"openbis/pkg/domain"
)

type fixture struct {
	instance   domain.DatabaseInstance
	group      domain.Group
	project    domain.Project
	expType    domain.EntityType
	sampleType domain.EntityType
	experiment domain.Experiment
}

func seed(t *testing.T, store *Store) fixture {
	t.Helper()
	var f fixture
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if f.instance, err = tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", UUID: "uuid", Home: true}); err != nil {
			return err
		}
		if f.group, err = tx.CreateGroup(domain.Group{Code: "G", InstanceID: f.instance.ID}); err != nil {
			return err
		}
		if f.project, err = tx.CreateProject(domain.Project{Code: "P", GroupID: f.group.ID}); err != nil {
			return err
		}
		if f.expType, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindExperiment, Code: "SIRNA_HCS"}); err != nil {
			return err
		}
		if f.sampleType, err = tx.CreateEntityType(domain.EntityType{Kind: domain.KindSample, Code: "WELL"}); err != nil {
			return err
		}
		f.experiment, err = tx.CreateExperiment(domain.Experiment{Code: "E", ProjectID: f.project.ID, TypeID: f.expType.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateSample(domain.Sample{Code: "S1", TypeID: f.sampleType.ID, InstanceID: f.instance.ID, GroupID: &f.group.ID})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if len(tx.Snapshot().ListSamples()) != 1 {
			t.Fatalf("snapshot should see uncommitted sample")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	countSamples := func() int {
		var n int
		_ = store.View(ctx, func(v domain.TransactionView) error {
			n = len(v.ListSamples())
			return nil
		})
		return n
	}
	if countSamples() != 1 {
		t.Fatalf("expected persisted sample")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if countSamples() != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if countSamples() != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateGroup(domain.Group{Code: "OTHER", InstanceID: f.instance.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindGroupByCode("OTHER"); ok {
			t.Fatalf("group should have been rolled back")
		}
		return nil
	})
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	f := seed(t, store)
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateGroup(domain.Group{Code: "FAIL", InstanceID: f.instance.ID})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestUpdateStampsModificationDate(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	later := time.Date(2030, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	store.SetNowFunc(func() time.Time { return later })
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		updated, err := tx.UpdateExperiment(f.experiment.ID, func(e *domain.Experiment) error {
			e.Code = "RENAMED"
			e.ID = "ignored"
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != f.experiment.ID || !updated.UpdatedAt.Equal(later) || !updated.CreatedAt.Equal(f.experiment.CreatedAt) {
			t.Fatalf("unexpected stamps %+v", updated.Base)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestNextPermID(t *testing.T) {
	store := NewStore(nil)
	store.SetNowFunc(func() time.Time { return time.Date(2009, 1, 1, 12, 34, 12, 340_000_000, time.UTC) })
	var first, second string
	_, _ = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		first = tx.NextPermID()
		second = tx.NextPermID()
		return nil
	})
	if first != "20090101123412340-1" || second != "20090101123412340-2" {
		t.Fatalf("unexpected perm ids %q %q", first, second)
	}
	_, _ = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if id := tx.NextPermID(); !regexp.MustCompile(`-3$`).MatchString(id) {
			t.Fatalf("sequence should survive commits, got %q", id)
		}
		return nil
	})
}

func TestReferentialIntegrity(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.DeleteGroup(f.group.ID); err == nil {
			t.Fatalf("expected group in use")
		}
		if err := tx.DeleteProject(f.project.ID); err == nil {
			t.Fatalf("expected project in use")
		}
		if err := tx.DeleteEntityType(f.expType.ID); err == nil {
			t.Fatalf("expected type in use")
		}
		missing := "missing"
		if _, err := tx.CreateSample(domain.Sample{Code: "X", TypeID: f.sampleType.ID, GroupID: &missing}); err == nil {
			t.Fatalf("expected missing group error")
		}
		var nf domain.ErrNotFound
		if _, err := tx.UpdateSample("nope", func(*domain.Sample) error { return nil }); !errors.As(err, &nf) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "SECOND", Home: true}); err == nil {
			t.Fatalf("expected single home instance")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestFindersAndDataSetParents(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		dsType, err := tx.CreateEntityType(domain.EntityType{Kind: domain.KindDataSet, Code: "HCS_IMAGE"})
		if err != nil {
			return err
		}
		dss, err := tx.CreateDataStore(domain.DataStore{Code: "STANDARD"})
		if err != nil {
			return err
		}
		parent, err := tx.CreateDataSet(domain.DataSet{Code: "D1", TypeID: dsType.ID, ExperimentID: f.experiment.ID, DataStoreID: dss.ID})
		if err != nil {
			return err
		}
		child, err := tx.CreateDataSet(domain.DataSet{Code: "D2", TypeID: dsType.ID, ExperimentID: f.experiment.ID, DataStoreID: dss.ID, ParentIDs: []string{parent.ID}})
		if err != nil {
			return err
		}
		if got := tx.ListDataSetChildren(parent.ID); len(got) != 1 || got[0].ID != child.ID {
			t.Fatalf("unexpected children %+v", got)
		}
		if got := tx.ListDataSetsByExperiment(f.experiment.ID); len(got) != 2 || got[0].Code != "D1" {
			t.Fatalf("expected ordered data sets, got %+v", got)
		}
		if err := tx.DeleteDataSet(parent.ID); err != nil {
			return err
		}
		reloaded, _ := tx.FindDataSet(child.ID)
		if len(reloaded.ParentIDs) != 0 {
			t.Fatalf("expected parent link removed, got %v", reloaded.ParentIDs)
		}
		if _, ok := tx.FindExperimentByCode(f.project.ID, "E"); !ok {
			t.Fatalf("expected experiment by code")
		}
		if got := tx.ListExperimentsByProject(f.project.ID, f.expType.ID); len(got) != 1 {
			t.Fatalf("expected experiment by project and type")
		}
		if _, ok := tx.FindSampleByCode(nil, "S"); ok {
			t.Fatalf("unexpected shared sample")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestViewReturnsClones(t *testing.T) {
	store := NewStore(nil)
	f := seed(t, store)
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		e, _ := v.FindExperiment(f.experiment.ID)
		e.Properties = append(e.Properties, domain.EntityProperty{PropertyTypeCode: "X"})
		return nil
	})
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		e, _ := v.FindExperiment(f.experiment.ID)
		if len(e.Properties) != 0 {
			t.Fatalf("mutation leaked into store")
		}
		return nil
	})
}
