package exports

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"openbis/internal/blob"
	"openbis/internal/bo"
	"openbis/internal/core"
	"openbis/pkg/domain"
)

type env struct {
	svc   *core.Service
	admin string
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithBlobStore(blob.NewMemory()))
	if _, err := svc.Bootstrap(ctx, core.BootstrapRequest{InstanceCode: "TEST", AdminUserID: "admin"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	sess, err := svc.Login(ctx, "admin", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.RegisterGroup(ctx, sess.Token, "CISD", ""); err != nil {
		t.Fatalf("register group: %v", err)
	}
	for _, id := range []string{"/CISD/W1", "/CISD/W2"} {
		if _, err := svc.RegisterSample(ctx, sess.Token, bo.NewSample{Identifier: id, SampleType: string(domain.SampleTypeWell)}, nil); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return env{svc: svc, admin: sess.Token}
}

func sampleExport() core.ExportRequest {
	return core.ExportRequest{Source: core.GridSource{
		Kind:    domain.KindSample,
		Samples: core.ListSampleCriteria{GroupCode: "CISD"},
	}}
}

func stopWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func waitFor(t *testing.T, w *Worker, token, id string) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, err := w.Get(context.Background(), token, id)
		if err != nil {
			t.Fatalf("get export: %v", err)
		}
		if r.Status == StatusSucceeded || r.Status == StatusFailed {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return Record{}
}

func TestWorkerStoresTSVArtifact(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	w := NewWorker(e.svc, e.svc.Blobs(), Options{Workers: 2, QueueSize: 4})
	w.Start()
	defer stopWorker(t, w)

	ctx := context.Background()
	queued, err := w.Enqueue(ctx, e.admin, sampleExport())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || queued.RequestedBy != "admin" {
		t.Fatalf("unexpected queued record %+v", queued)
	}
	done := waitFor(t, w, e.admin, queued.ID)
	if done.Status != StatusSucceeded || done.Artifact == nil || done.CompletedAt == nil {
		t.Fatalf("unexpected finished record %+v", done)
	}
	if done.Artifact.Key != artifactKey(queued.ID) {
		t.Fatalf("artifact key = %s", done.Artifact.Key)
	}

	_, rc, err := w.Open(ctx, e.admin, queued.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "Code\t") {
		t.Fatalf("unexpected export:\n%s", body)
	}
}

func TestWorkerRecordsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	w := NewWorker(e.svc, e.svc.Blobs(), Options{})
	w.Start()
	defer stopWorker(t, w)

	ctx := context.Background()
	queued, err := w.Enqueue(ctx, e.admin, core.ExportRequest{Source: core.GridSource{Kind: "PERSON"}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitFor(t, w, e.admin, queued.ID)
	if done.Status != StatusFailed || done.Error == "" || done.Artifact != nil {
		t.Fatalf("unexpected record %+v", done)
	}
	if _, _, err := w.Open(ctx, e.admin, queued.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestWorkerRejectsWhenQueueIsFull(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	w := NewWorker(e.svc, e.svc.Blobs(), Options{QueueSize: 1})
	defer stopWorker(t, w)

	ctx := context.Background()
	first, err := w.Enqueue(ctx, e.admin, sampleExport())
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.Enqueue(ctx, e.admin, sampleExport()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	r, err := w.Get(ctx, e.admin, first.ID)
	if err != nil || r.Status != StatusQueued {
		t.Fatalf("first export should stay queued: %+v, %v", r, err)
	}
}

func TestWorkerHidesExportsOfOtherUsers(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	w := NewWorker(e.svc, e.svc.Blobs(), Options{})
	defer stopWorker(t, w)

	ctx := context.Background()
	queued, err := w.Enqueue(ctx, e.admin, sampleExport())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	other, err := e.svc.Login(ctx, "other", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := w.Get(ctx, other.Token, queued.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := w.Enqueue(ctx, "bogus", sampleExport()); !errors.Is(err, core.ErrInvalidSession) {
		t.Fatalf("expected invalid session, got %v", err)
	}
}

func TestWorkerPrunesExpiredExports(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	var now atomic.Int64
	now.Store(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	clock := core.ClockFunc(func() time.Time { return time.Unix(0, now.Load()) })
	w := NewWorker(e.svc, e.svc.Blobs(), Options{Retention: time.Hour, Clock: clock})
	w.Start()
	defer stopWorker(t, w)

	ctx := context.Background()
	queued, err := w.Enqueue(ctx, e.admin, sampleExport())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitFor(t, w, e.admin, queued.ID)
	if done.Status != StatusSucceeded {
		t.Fatalf("unexpected record %+v", done)
	}

	if n := w.Prune(ctx); n != 0 {
		t.Fatalf("fresh export pruned: %d", n)
	}
	now.Add(int64(2 * time.Hour))
	if n := w.Prune(ctx); n != 1 {
		t.Fatalf("expected one pruned export, got %d", n)
	}
	if _, err := w.Get(ctx, e.admin, queued.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pruned export to be gone, got %v", err)
	}
	if _, err := e.svc.Blobs().Head(ctx, artifactKey(queued.ID)); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected artifact deleted, got %v", err)
	}
}

func TestWorkerKeepsUnfinishedExports(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newEnv(t)
	var now atomic.Int64
	now.Store(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	clock := core.ClockFunc(func() time.Time { return time.Unix(0, now.Load()) })
	w := NewWorker(e.svc, e.svc.Blobs(), Options{Retention: time.Minute, Clock: clock})
	defer stopWorker(t, w)

	ctx := context.Background()
	queued, err := w.Enqueue(ctx, e.admin, sampleExport())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	now.Add(int64(time.Hour))
	if n := w.Prune(ctx); n != 0 {
		t.Fatalf("queued export pruned")
	}
	if r, err := w.Get(ctx, e.admin, queued.ID); err != nil || r.Status != StatusQueued {
		t.Fatalf("queued export lost: %+v, %v", r, err)
	}
}
