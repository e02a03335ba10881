package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"openbis/internal/authz"
	"openbis/internal/bo"
	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

// fixture is a bootstrapped installation with instance TEST, group CISD,
// project /CISD/NEMO, experiment type SIRNA_HCS, data set type HCS_IMAGE and
// an instance admin logged in as "admin".
type fixture struct {
	svc     *Service
	logger  *captureLogger
	metrics *captureMetricsRecorder
	audit   *captureAuditRecorder
	admin   string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, memory.NewStore(NewDefaultRulesEngine()), opts...)
}

func newFixtureOn(t *testing.T, store domain.PersistentStore, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		logger:  &captureLogger{},
		metrics: &captureMetricsRecorder{},
		audit:   &captureAuditRecorder{},
	}
	opts = append([]Option{WithLogger(f.logger), WithMetricsRecorder(f.metrics), WithAuditRecorder(f.audit)}, opts...)
	f.svc = NewService(store, opts...)
	ctx := context.Background()
	if _, err := f.svc.Bootstrap(ctx, BootstrapRequest{InstanceCode: "TEST", AdminUserID: "admin"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	f.admin = f.login(t, "admin")
	must(t, "register group", func() error {
		_, err := f.svc.RegisterGroup(ctx, f.admin, "CISD", "main group")
		return err
	})
	must(t, "register project", func() error {
		_, err := f.svc.RegisterProject(ctx, f.admin, bo.NewProject{Identifier: "/CISD/NEMO"})
		return err
	})
	must(t, "register experiment type", func() error {
		_, err := f.svc.RegisterEntityType(ctx, f.admin, domain.KindExperiment, bo.NewEntityType{Code: "SIRNA_HCS"})
		return err
	})
	must(t, "register data set type", func() error {
		_, err := f.svc.RegisterEntityType(ctx, f.admin, domain.KindDataSet, bo.NewEntityType{Code: "HCS_IMAGE"})
		return err
	})
	return f
}

func (f *fixture) login(t *testing.T, userID string) string {
	t.Helper()
	sess, err := f.svc.Login(context.Background(), userID, "secret")
	if err != nil {
		t.Fatalf("login %s: %v", userID, err)
	}
	return sess.Token
}

// userWithRole logs a new user in and grants them role on group.
func (f *fixture) userWithRole(t *testing.T, userID string, role domain.RoleCode, group string) string {
	t.Helper()
	token := f.login(t, userID)
	if _, err := f.svc.AddRole(context.Background(), f.admin, RoleRequest{Role: role, GroupCode: group, UserID: userID}); err != nil {
		t.Fatalf("add role %s to %s: %v", role, userID, err)
	}
	return token
}

func (f *fixture) experiment(t *testing.T, code string) string {
	t.Helper()
	e, err := f.svc.RegisterExperiment(context.Background(), f.admin, bo.NewExperiment{
		Identifier:     "/CISD/NEMO/" + code,
		ExperimentType: "SIRNA_HCS",
	}, nil)
	if err != nil {
		t.Fatalf("register experiment %s: %v", code, err)
	}
	return e.ID
}

func must(t *testing.T, what string, fn func() error) {
	t.Helper()
	if err := fn(); err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func expectUnauthorized(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
}

func expectUserFailure(t *testing.T, err error) {
	t.Helper()
	if !domain.IsUserFailure(err) {
		t.Fatalf("expected user failure, got %T: %v", err, err)
	}
}

func codes[T any](rows []T, code func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, code(r))
	}
	return out
}

func ids(n int, format string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i+1)
	}
	return out
}
