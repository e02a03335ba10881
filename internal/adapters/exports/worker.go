// Package exports renders grid exports in the background and keeps the
// resulting TSV files in the blob store.
package exports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"openbis/internal/blob"
	"openbis/internal/core"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact is the stored TSV file of a finished export.
type Artifact struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	StoredAt    time.Time `json:"stored_at"`
}

// Record tracks one export request.
type Record struct {
	ID          string            `json:"id"`
	Kind        domain.EntityKind `json:"kind"`
	RequestedBy string            `json:"requested_by"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifact    *Artifact         `json:"artifact,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	if r.Artifact != nil {
		a := *r.Artifact
		out.Artifact = &a
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Exporter renders a grid as TSV on behalf of a session.
type Exporter interface {
	ExportTSV(ctx context.Context, token string, r core.ExportRequest) (string, error)
	GetSession(ctx context.Context, token string) (*api.Session, error)
}

var (
	// ErrQueueFull rejects requests while every queue slot is taken.
	ErrQueueFull = errors.New("export queue full")
	// ErrNotFound reports an unknown export or one owned by another user.
	ErrNotFound = errors.New("export not found")
	// ErrNotReady reports a download of an export that has not succeeded.
	ErrNotReady = errors.New("export not finished")
)

// DefaultRetention is how long finished exports stay downloadable.
const DefaultRetention = 24 * time.Hour

// Options sizes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
	// Retention bounds the life of a finished export and its artifact.
	Retention time.Duration
	Logger    core.Logger
	Clock     core.Clock
}

// Worker runs exports on a fixed pool of goroutines fed by a bounded queue.
type Worker struct {
	exporter  Exporter
	store     blob.Store
	logger    core.Logger
	clock     core.Clock
	workers   int
	retention time.Duration

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once
}

type task struct {
	id      string
	token   string
	request core.ExportRequest
}

// NewWorker constructs a worker. Start must be called before exports run.
func NewWorker(exporter Exporter, store blob.Store, opts Options) *Worker {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 32
	}
	if opts.Clock == nil {
		opts.Clock = core.ClockFunc(nil)
	}
	if opts.Logger == nil {
		opts.Logger = discard{}
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		exporter:  exporter,
		store:     store,
		logger:    opts.Logger,
		clock:     opts.Clock,
		workers:   opts.Workers,
		retention: opts.Retention,
		queue:     make(chan task, opts.QueueSize),
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutines and the janitor pruning expired
// exports. Calling it again has no effect.
func (w *Worker) Start() {
	w.start.Do(func() {
		for range w.workers {
			w.wg.Add(1)
			go w.loop()
		}
		w.wg.Add(1)
		go w.janitor()
	})
}

func (w *Worker) janitor() {
	defer w.wg.Done()
	ticker := time.NewTicker(max(w.retention/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Prune(w.ctx)
		}
	}
}

// Prune drops finished exports completed more than the retention ago and
// deletes their artifacts. It returns the number of dropped exports.
func (w *Worker) Prune(ctx context.Context) int {
	cutoff := w.clock.Now().UTC().Add(-w.retention)
	var expired []Record
	w.mu.Lock()
	for id, r := range w.jobs {
		if r.CompletedAt != nil && r.CompletedAt.Before(cutoff) {
			expired = append(expired, r.copy())
			delete(w.jobs, id)
		}
	}
	w.mu.Unlock()

	for _, r := range expired {
		if r.Artifact == nil {
			continue
		}
		if _, err := w.store.Delete(ctx, r.Artifact.Key); err != nil {
			w.logger.Warn("export artifact cleanup failed", "export", r.ID, "key", r.Artifact.Key, "error", err)
		}
	}
	if len(expired) > 0 {
		w.logger.Info("exports pruned", "count", len(expired))
	}
	return len(expired)
}

// Stop signals the workers to halt and waits for them. Queued exports that
// did not start stay queued.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export for the session owner and returns the queued
// record. The session is checked up front so that invalid tokens fail fast.
func (w *Worker) Enqueue(ctx context.Context, token string, r core.ExportRequest) (Record, error) {
	sess, err := w.exporter.GetSession(ctx, token)
	if err != nil {
		return Record{}, err
	}
	w.Prune(ctx)
	if strings.TrimSpace(string(r.Source.Kind)) == "" {
		return Record{}, domain.UserFailuref("Export source kind not specified.")
	}
	now := w.clock.Now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		Kind:        r.Source.Kind,
		RequestedBy: sess.Person.UserID,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: record.ID, token: token, request: r}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", "export", record.ID, "kind", record.Kind, "user", record.RequestedBy)
	return snapshot, nil
}

// Get returns a snapshot of an export owned by the session's user.
func (w *Worker) Get(ctx context.Context, token, id string) (Record, error) {
	sess, err := w.exporter.GetSession(ctx, token)
	if err != nil {
		return Record{}, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok || record.RequestedBy != sess.Person.UserID {
		return Record{}, ErrNotFound
	}
	return record.copy(), nil
}

// Open returns the content of a succeeded export. The caller closes it.
func (w *Worker) Open(ctx context.Context, token, id string) (Record, io.ReadCloser, error) {
	record, err := w.Get(ctx, token, id)
	if err != nil {
		return Record{}, nil, err
	}
	if record.Status != StatusSucceeded || record.Artifact == nil {
		return record, nil, ErrNotReady
	}
	_, rc, err := w.store.Get(ctx, record.Artifact.Key)
	if err != nil {
		return record, nil, fmt.Errorf("open export %s: %w", id, err)
	}
	return record, rc, nil
}

func artifactKey(id string) string { return "exports/" + id + ".tsv" }

func (w *Worker) process(t task) {
	w.update(t.id, func(r *Record) { r.Status = StatusRunning })

	tsv, err := w.exporter.ExportTSV(w.ctx, t.token, t.request)
	if err != nil {
		w.fail(t.id, err)
		return
	}
	info, err := w.store.Put(w.ctx, artifactKey(t.id), strings.NewReader(tsv), blob.PutOptions{
		ContentType: "text/tab-separated-values",
		Metadata:    map[string]string{"kind": string(t.request.Source.Kind)},
	})
	if err != nil {
		w.fail(t.id, fmt.Errorf("store artifact: %w", err))
		return
	}
	w.update(t.id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Artifact = &Artifact{
			Key:         info.Key,
			ContentType: info.ContentType,
			SizeBytes:   info.Size,
			Checksum:    info.Checksum,
			StoredAt:    info.StoredAt,
		}
		completed := r.UpdatedAt
		r.CompletedAt = &completed
	})
	w.logger.Info("export succeeded", "export", t.id, "size", info.Size)
}

func (w *Worker) fail(id string, err error) {
	w.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = err.Error()
		completed := r.UpdatedAt
		r.CompletedAt = &completed
	})
	w.logger.Warn("export failed", "export", id, "error", err)
}

// update applies fn under the lock after stamping UpdatedAt.
func (w *Worker) update(id string, fn func(*Record)) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.UpdatedAt = now
		fn(record)
	}
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
