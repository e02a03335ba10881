package bo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"openbis/internal/blob"
	"openbis/pkg/domain"
)

func TestExperimentBORegisterUpdateDelete(t *testing.T) {
	w := newWorld(t)
	w.assign(t, domain.KindExperiment, "SIRNA_HCS", false, "DESCRIPTION")

	var exp domain.Experiment
	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewExperimentBO(tx, w.session)
		if err := b.Define(NewExperiment{Identifier: "/cisd/nemo/exp9", ExperimentType: "SIRNA_HCS", Properties: []PropertyValue{{Code: "DESCRIPTION", Value: "screen"}}}); err != nil {
			return err
		}
		if err := b.Save(); err != nil {
			return err
		}
		var err error
		exp, err = b.Experiment()
		return err
	})
	if exp.Code != "EXP9" || exp.ProjectID != w.project.ID || exp.PermID == "" {
		t.Fatalf("unexpected experiment %+v", exp)
	}

	err := w.run(func(tx domain.Transaction) error {
		return NewExperimentBO(tx, w.session).Define(NewExperiment{Identifier: "/CISD/NEMO/EXP9", ExperimentType: "SIRNA_HCS"})
	})
	expectUserFailure(t, err, "Experiment '/CISD/NEMO/EXP9' already exists.")

	err = w.run(func(tx domain.Transaction) error {
		return NewExperimentBO(tx, w.session).Define(NewExperiment{Identifier: "/CISD/NOPE/EXP", ExperimentType: "SIRNA_HCS"})
	})
	expectUserFailure(t, err, "No project could be found for identifier '/CISD/NOPE'.")

	s := w.registerSample(t, NewSample{Identifier: "S1", SampleType: "MASTER_PLATE", ExperimentIdentifier: "/CISD/NEMO/EXP9"})

	err = w.run(func(tx domain.Transaction) error {
		return NewExperimentBO(tx, w.session).Update(ExperimentUpdates{ExperimentID: exp.ID, Version: exp.UpdatedAt.Add(-1)})
	})
	var stale domain.StaleModificationError
	if !errors.As(err, &stale) {
		t.Fatalf("expected stale modification, got %v", err)
	}

	w.mustRun(t, func(tx domain.Transaction) error {
		return NewExperimentBO(tx, w.session).Update(ExperimentUpdates{ExperimentID: exp.ID, Version: exp.UpdatedAt, ProjectIdentifier: "/OTHER/FAR"})
	})
	if got := w.sample(t, s.ID); got.GroupID == nil || *got.GroupID != w.other.ID {
		t.Fatalf("expected sample to move with the experiment, got %+v", got)
	}

	err = w.run(func(tx domain.Transaction) error {
		_, err := NewExperimentBO(tx, w.session).DeleteByID(exp.ID, "done")
		return err
	})
	expectUserFailure(t, err, "cannot be deleted because samples are attached to it")

	w.mustRun(t, func(tx domain.Transaction) error {
		_, err := NewSampleBO(tx, w.session).DeleteByID(s.ID, "done")
		return err
	})
	w.mustRun(t, func(tx domain.Transaction) error {
		_, err := NewExperimentBO(tx, w.session).DeleteByID(exp.ID, "done")
		return err
	})
}

func TestAttachmentVersions(t *testing.T) {
	w := newWorld(t)
	blobs := blob.NewMemory()
	ctx := context.Background()
	var keys []string
	for _, content := range []string{"v1", "version two"} {
		st, err := StageAttachment(ctx, blobs, NewAttachment{FileName: " notes.txt ", Content: []byte(content)})
		if err != nil {
			t.Fatalf("stage: %v", err)
		}
		keys = append(keys, st.BlobKey)
		w.mustRun(t, func(tx domain.Transaction) error {
			b := NewProjectBO(tx, w.session)
			if err := b.LoadByID(w.project.ID); err != nil {
				return err
			}
			_, err := b.AddAttachment(st)
			return err
		})
	}
	if keys[0] == keys[1] {
		t.Fatalf("expected distinct staging keys, got %v", keys)
	}
	w.mustRun(t, func(tx domain.Transaction) error {
		a, err := NewAttachmentBO(tx, w.session).Find(domain.RecordProject, w.project.ID, "notes.txt", 0)
		if err != nil {
			return err
		}
		if a.Version != 2 || a.Size != int64(len("version two")) || a.BlobKey != keys[1] {
			t.Fatalf("unexpected latest attachment %+v", a)
		}
		_, rc, err := blobs.Get(ctx, a.BlobKey)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if !bytes.Equal(data, []byte("version two")) {
			t.Fatalf("unexpected content %q", data)
		}
		if _, err := NewAttachmentBO(tx, w.session).Find(domain.RecordProject, w.project.ID, "notes.txt", 3); err == nil {
			t.Fatalf("expected missing version failure")
		}
		return nil
	})

	_, err := StageAttachment(ctx, blobs, NewAttachment{FileName: "../x"})
	expectUserFailure(t, err, "Invalid attachment file name '../x'.")
	if _, err := StageAttachment(ctx, nil, NewAttachment{FileName: "x"}); err == nil {
		t.Fatalf("expected missing blob store error")
	}

	err = w.run(func(tx domain.Transaction) error {
		_, err := NewAttachmentBO(tx, w.session).Add(domain.RecordProject, "missing", StagedAttachment{FileName: "x", BlobKey: "k"})
		return err
	})
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected missing holder, got %v", err)
	}
}

func TestProjectBO(t *testing.T) {
	w := newWorld(t)
	var p domain.Project
	w.mustRun(t, func(tx domain.Transaction) error {
		b := NewProjectBO(tx, w.session)
		if err := b.Register(NewProject{Identifier: "/CISD/NEW", Description: "d", LeaderUserID: "test"}); err != nil {
			return err
		}
		var err error
		p, err = b.Project()
		return err
	})
	if p.LeaderID == nil || *p.LeaderID != w.session.Person.ID {
		t.Fatalf("expected leader, got %+v", p)
	}
	err := w.run(func(tx domain.Transaction) error {
		return NewProjectBO(tx, w.session).Register(NewProject{Identifier: "/CISD/NEW"})
	})
	expectUserFailure(t, err, "Project '/CISD/NEW' already exists.")

	w.mustRun(t, func(tx domain.Transaction) error {
		return NewProjectBO(tx, w.session).Update(ProjectUpdates{ProjectID: p.ID, Version: p.UpdatedAt, Description: "changed"})
	})
	err = w.run(func(tx domain.Transaction) error {
		_, err := NewProjectBO(tx, w.session).DeleteByID(w.project.ID, "x")
		return err
	})
	expectUserFailure(t, err, "Project 'DB:/CISD/NEMO' cannot be deleted because experiments are attached to it.")
	w.mustRun(t, func(tx domain.Transaction) error {
		_, err := NewProjectBO(tx, w.session).DeleteByID(p.ID, "x")
		return err
	})
}
