package bo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/internal/datastore"
	"openbis/pkg/domain"
)

type stubDataStore struct {
	mu       sync.Mutex
	known    map[string]bool
	deleted  []string
	uploaded []datastore.DataSet
	comment  string
	token    string
}

func (s *stubDataStore) KnownDataSets(_ context.Context, token string, locations []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	var out []string
	for _, l := range locations {
		if s.known[l] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubDataStore) DeleteDataSets(_ context.Context, _ string, locations []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, locations...)
	return nil
}

func (s *stubDataStore) UploadDataSets(_ context.Context, _ string, dataSets []datastore.DataSet, uc datastore.UploadContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, dataSets...)
	s.comment = uc.Comment
	return nil
}

func stubFactory(svc *stubDataStore) datastore.Factory {
	return datastore.FactoryFunc(func(remoteURL string) (datastore.Service, error) {
		if remoteURL != "http://dss1" {
			return nil, fmt.Errorf("unexpected url %s", remoteURL)
		}
		return svc, nil
	})
}

// seedDataSets registers DS1 and DS2 on the remote store and LOCAL1 on a
// store without remote URL, all owned by sample S1 in EXP1.
func seedDataSets(t *testing.T, w *world) domain.Sample {
	t.Helper()
	s := w.registerSample(t, NewSample{Identifier: "S1", SampleType: "MASTER_PLATE", ExperimentIdentifier: "/CISD/NEMO/EXP1"})
	w.mustRun(t, func(tx domain.Transaction) error {
		for _, ds := range []domain.DataSet{
			{Code: "DS1", DataStoreID: w.store1.ID, Location: "loc/1"},
			{Code: "DS2", DataStoreID: w.store1.ID, Location: "loc/2"},
			{Code: "LOCAL1", DataStoreID: w.local.ID, Location: "loc/3"},
		} {
			ds.TypeID, ds.ExperimentID, ds.SampleID = w.dsType.ID, w.experiment.ID, &s.ID
			if _, err := tx.CreateDataSet(ds); err != nil {
				return err
			}
		}
		return nil
	})
	return s
}

func TestExternalDataTableLoading(t *testing.T) {
	w := newWorld(t)
	s := seedDataSets(t, w)
	w.mustRun(t, func(tx domain.Transaction) error {
		table := NewExternalDataTable(tx, nil)
		if _, err := table.DataSets(); err == nil {
			t.Fatalf("expected failure before loading")
		}
		if _, err := table.Plan(); err == nil {
			t.Fatalf("expected plan failure before loading")
		}
		if err := table.LoadBySampleID(""); err == nil {
			t.Fatalf("expected unspecified sample id failure")
		}
		if err := table.LoadBySampleID(s.ID); err != nil {
			return err
		}
		if got, _ := table.DataSets(); len(got) != 3 {
			t.Fatalf("expected 3 data sets of the sample, got %d", len(got))
		}
		if err := table.LoadByExperimentID(w.experiment.ID); err != nil {
			return err
		}
		if got, _ := table.DataSets(); len(got) != 3 {
			t.Fatalf("expected 3 data sets of the experiment, got %d", len(got))
		}
		table.LoadByDataSetCodes([]string{"ds1", "UNKNOWN"})
		got, _ := table.DataSets()
		if len(got) != 1 || got[0].Code != "DS1" {
			t.Fatalf("expected only DS1, got %+v", got)
		}
		return nil
	})
}

// plan loads codes from a fresh view of the world and plans the data store
// calls for them.
func plan(t *testing.T, w *world, factory datastore.Factory, codes ...string) *DataStoreCalls {
	t.Helper()
	var calls *DataStoreCalls
	w.mustRun(t, func(tx domain.Transaction) error {
		table := NewExternalDataTable(tx, factory)
		table.LoadByDataSetCodes(codes)
		var err error
		calls, err = table.Plan()
		return err
	})
	return calls
}

func TestExternalDataTableDelete(t *testing.T) {
	w := newWorld(t)
	seedDataSets(t, w)
	svc := &stubDataStore{known: map[string]bool{"loc/1": true}}
	ctx := context.Background()

	calls := plan(t, w, stubFactory(svc), "DS1", "DS2")
	expectUserFailure(t, calls.AssertKnown(ctx), "The following data sets are unknown by any registered Data Store Server. "+
		"May be the responsible Data Store Server is not running.\n[DS2]")
	if len(svc.deleted) != 0 {
		t.Fatalf("nothing should be deleted remotely, got %v", svc.deleted)
	}

	svc.known["loc/2"] = true
	calls = plan(t, w, stubFactory(svc), "DS1", "DS2", "LOCAL1")
	if err := calls.AssertKnown(ctx); err != nil {
		t.Fatalf("assert known: %v", err)
	}
	w.mustRun(t, func(tx domain.Transaction) error {
		return DeleteDataSets(tx, w.session, calls.DataSets(), "obsolete")
	})
	if err := calls.DeleteFiles(ctx); err != nil {
		t.Fatalf("delete files: %v", err)
	}
	if diff := cmp.Diff([]string{"loc/1", "loc/2"}, svc.deleted); diff != "" {
		t.Fatalf("remote deletions mismatch (-want +got):\n%s", diff)
	}
	if svc.token != "dss-token" {
		t.Fatalf("expected data store session token, got %q", svc.token)
	}
	w.mustRun(t, func(tx domain.Transaction) error {
		if n := len(tx.ListDataSets()); n != 0 {
			t.Fatalf("expected all data sets deleted, %d left", n)
		}
		var reasons []string
		for _, e := range tx.ListEvents() {
			if e.Kind == domain.RecordDataSet {
				reasons = append(reasons, e.Identifier+":"+e.Reason)
			}
		}
		if len(reasons) != 3 {
			t.Fatalf("expected one deletion event per data set, got %v", reasons)
		}
		return nil
	})
}

func TestDeleteDataSetsRejectsChangedPlan(t *testing.T) {
	w := newWorld(t)
	seedDataSets(t, w)
	calls := plan(t, w, nil, "DS1", "LOCAL1")

	// Another deletion wins the race for DS1.
	w.mustRun(t, func(tx domain.Transaction) error {
		ds, _ := tx.FindDataSetByCode("DS1")
		return tx.DeleteDataSet(ds.ID)
	})
	err := w.run(func(tx domain.Transaction) error {
		return DeleteDataSets(tx, w.session, calls.DataSets(), "obsolete")
	})
	var stale domain.StaleModificationError
	if !errors.As(err, &stale) || stale.Identifier != "DS1" {
		t.Fatalf("expected stale DS1, got %v", err)
	}
	w.mustRun(t, func(tx domain.Transaction) error {
		if _, ok := tx.FindDataSetByCode("LOCAL1"); !ok {
			t.Fatalf("failed deletion must keep LOCAL1")
		}
		return nil
	})
}

func TestExternalDataTableUpload(t *testing.T) {
	w := newWorld(t)
	seedDataSets(t, w)
	svc := &stubDataStore{known: map[string]bool{"loc/1": true, "loc/2": true}}
	calls := plan(t, w, stubFactory(svc), "DS1", "LOCAL1", "DS2")
	message, err := calls.Upload(context.Background(), datastore.UploadContext{UserID: "test"})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if message != "The following data sets couldn't be uploaded because of unknown data store: LOCAL1" {
		t.Fatalf("unexpected message %q", message)
	}
	want := []datastore.DataSet{{Code: "DS1", Location: "loc/1"}, {Code: "DS2", Location: "loc/2"}}
	if diff := cmp.Diff(want, svc.uploaded); diff != "" {
		t.Fatalf("upload mismatch (-want +got):\n%s", diff)
	}
	if svc.comment != UploadCommentText+"\nDS1\nLOCAL1\nDS2" {
		t.Fatalf("unexpected comment %q", svc.comment)
	}

	if _, err := plan(t, w, nil, "DS1").Upload(context.Background(), datastore.UploadContext{}); err == nil {
		t.Fatalf("expected missing factory error")
	}
}

func TestCreateUploadComment(t *testing.T) {
	if got := CreateUploadComment(nil); got != UploadCommentText {
		t.Fatalf("expected header only, got %q", got)
	}
	var many []domain.DataSet
	for i := 0; i < 100; i++ {
		many = append(many, domain.DataSet{Code: fmt.Sprintf("DATA_SET_%03d", i)})
	}
	got := CreateUploadComment(many)
	if len(got) >= MaxUploadCommentLength {
		t.Fatalf("comment too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "DATA_SET_070\nand 29 more.") {
		t.Fatalf("unexpected tail %q", got[len(got)-40:])
	}
	if !strings.HasPrefix(got, UploadCommentText+"\nDATA_SET_000\n") {
		t.Fatalf("unexpected head %q", got[:80])
	}
}
