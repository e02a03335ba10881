// Package core is the application service of the openBIS server. Every
// operation resolves the caller's session, authorizes it, runs business
// objects inside one store transaction and translates the result into DTOs.
package core

import (
	"context"
	"errors"
	"time"

	"openbis/internal/authz"
	"openbis/internal/blob"
	"openbis/internal/bo"
	"openbis/internal/datastore"
	"openbis/internal/infra/persistence/memory"
	"openbis/internal/translator"
	"openbis/pkg/domain"
)

// DefaultSessionTTL bounds the idle lifetime of a session.
const DefaultSessionTTL = 8 * time.Hour

// Service exposes the server operations to transports.
type Service struct {
	store      domain.PersistentStore
	blobs      blob.Store
	dataStores datastore.Factory
	auth       Authenticator
	sessions   *sessionRegistry

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the recorder observing every operation.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the recorder of mutating operations.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides the wall clock used for sessions and audit entries.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBlobStore sets the store holding attachment content and exports.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithDataStoreFactory sets how data store servers are reached.
func WithDataStoreFactory(f datastore.Factory) Option {
	return func(s *Service) {
		if f != nil {
			s.dataStores = f
		}
	}
}

// WithAuthenticator sets the password check used by Login.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Service) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithSessionTTL sets the idle lifetime of sessions.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessions.ttl = ttl
		}
	}
}

// NewService constructs a service backed by store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		blobs:      blob.NewMemory(),
		dataStores: datastore.NewCachingFactory(datastore.HTTPFactory(nil)),
		auth:       AcceptAllAuthenticator{},
		sessions:   newSessionRegistry(DefaultSessionTTL),
		logger:     noopLogger{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		audit:      noopAuditRecorder{},
		clock:      ClockFunc(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Blobs returns the blob store.
func (s *Service) Blobs() blob.Store { return s.blobs }

// run wraps one operation with tracing, metrics, logging and, for mutating
// operations, auditing.
func (s *Service) run(ctx context.Context, op string, userID string, fn func(context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op, "user", userID, "duration", duration)
	case expectedFailure(err):
		s.logger.Info("operation rejected", "operation", op, "user", userID, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "user", userID, "error", err)
	}

	if audited, ok := auditedOperations[op]; ok {
		entry := AuditEntry{
			Operation: op,
			Entity:    audited.entity,
			Action:    audited.action,
			EntityID:  entityID,
			UserID:    userID,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: start,
		}
		if err != nil {
			entry.Status, entry.Error = AuditStatusError, err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	return err
}

// expectedFailure reports errors caused by the caller rather than the server.
func expectedFailure(err error) bool {
	var (
		notFound domain.ErrNotFound
		stale    domain.StaleModificationError
		rules    domain.RuleViolationError
	)
	return domain.IsUserFailure(err) ||
		errors.Is(err, authz.ErrUnauthorized) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.As(err, &notFound) ||
		errors.As(err, &stale) ||
		errors.As(err, &rules)
}

// request is what read and write callbacks get: the caller's session and
// principal plus a translator over the current view.
type request struct {
	session   bo.Session
	principal authz.Principal
	tr        *translator.Translator
}

// read runs fn on a snapshot after checking the session and allowed roles.
// A nil allowed set skips the role check.
func (s *Service) read(ctx context.Context, op, token string, allowed authz.RoleSet, fn func(context.Context, domain.TransactionView, request) error) error {
	return s.operate(ctx, op, token, allowed, func(ctx context.Context, o *operation) error {
		return o.view(ctx, func(view domain.TransactionView, req request) error {
			return fn(ctx, view, req)
		})
	})
}

// effects collects what a write operation reports besides its result.
type effects struct {
	// entityID names the changed record in audit entries.
	entityID string
	// obsolete blob keys are deleted once the transaction commits.
	obsolete []string
}

// write runs fn inside a transaction after checking the session and allowed
// roles.
func (s *Service) write(ctx context.Context, op, token string, allowed authz.RoleSet, fn func(context.Context, domain.Transaction, request, *effects) error) error {
	return s.operate(ctx, op, token, allowed, func(ctx context.Context, o *operation) error {
		return o.update(ctx, fn)
	})
}

// operation is one service call split into short store accesses. Blob
// uploads and data store calls run between them, so the store is never
// held while another server answers.
type operation struct {
	s       *Service
	op      string
	sess    session
	allowed authz.RoleSet
	fx      effects
	// staged blob keys are deleted unless a transaction recording them
	// commits.
	staged    []string
	committed bool
}

// operate checks the session and runs fn as one traced, metered and
// audited operation.
func (s *Service) operate(ctx context.Context, op, token string, allowed authz.RoleSet, fn func(context.Context, *operation) error) error {
	sess, err := s.sessions.get(token, s.clock.Now())
	if err != nil {
		return s.run(ctx, op, "", func(context.Context) (string, error) { return "", err })
	}
	return s.run(ctx, op, sess.userID, func(ctx context.Context) (string, error) {
		o := &operation{s: s, op: op, sess: sess, allowed: allowed}
		err := fn(ctx, o)
		if !o.committed {
			s.removeBlobs(context.WithoutCancel(ctx), o.staged)
		}
		return o.fx.entityID, err
	})
}

// authorize builds the request for view and checks the allowed roles. A nil
// allowed set skips the role check.
func (o *operation) authorize(view domain.TransactionView) (request, error) {
	req, err := o.s.newRequest(view, o.sess)
	if err != nil {
		return request{}, err
	}
	if o.allowed != nil {
		if err := authz.Require(req.principal, o.allowed); err != nil {
			return request{}, err
		}
	}
	return req, nil
}

// view runs fn on a snapshot.
func (o *operation) view(ctx context.Context, fn func(domain.TransactionView, request) error) error {
	return o.s.store.View(ctx, func(view domain.TransactionView) error {
		req, err := o.authorize(view)
		if err != nil {
			return err
		}
		return fn(view, req)
	})
}

// stage writes attachment content before the transaction recording it.
func (o *operation) stage(ctx context.Context, attachments []bo.NewAttachment) ([]bo.StagedAttachment, error) {
	out := make([]bo.StagedAttachment, 0, len(attachments))
	for _, na := range attachments {
		st, err := bo.StageAttachment(ctx, o.s.blobs, na)
		if err != nil {
			return nil, err
		}
		o.staged = append(o.staged, st.BlobKey)
		out = append(out, st)
	}
	return out, nil
}

// update runs fn inside a transaction. A change that committed but could
// not be flushed keeps its blobs: it stays visible and is written again
// with the next commit.
func (o *operation) update(ctx context.Context, fn func(context.Context, domain.Transaction, request, *effects) error) error {
	s := o.s
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		req, err := o.authorize(tx)
		if err != nil {
			return err
		}
		return fn(ctx, tx, req, &o.fx)
	})
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", o.op, "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
	}
	switch {
	case err == nil:
		o.committed = true
		s.removeBlobs(ctx, o.fx.obsolete)
	case domain.IsFlushFailure(err):
		o.committed = true
		s.logger.Warn("change committed but not persisted", "operation", o.op, "error", err)
	}
	o.fx.obsolete = nil
	return err
}

func (s *Service) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("blob cleanup failed", "key", key, "error", err)
		}
	}
}

func (s *Service) newRequest(view domain.TransactionView, sess session) (request, error) {
	person, ok := view.FindPersonByUserID(sess.userID)
	if !ok {
		return request{}, ErrInvalidSession
	}
	home, ok := view.HomeDatabaseInstance()
	if !ok {
		return request{}, domain.UserFailuref("No home database instance defined.")
	}
	return request{
		session:   bo.Session{Token: sess.token, Person: person, Instance: home},
		principal: authz.NewPrincipal(view, person),
		tr:        translator.New(view),
	}, nil
}

// check evaluates a predicate and turns a denial into an error.
func check[T any](req request, p authz.Predicate[T], allowed authz.RoleSet, value T) error {
	return p.Evaluate(req.principal, allowed, value).Err()
}

var (
	groupPredicate  authz.Predicate[domain.GroupIdentifier]  = authz.GroupIdentifierPredicate{}
	samplePredicate authz.Predicate[domain.SampleIdentifier] = authz.SampleOwnerIdentifierPredicate{}
)

func checkGroup(req request, view domain.TransactionView, groupID string, allowed authz.RoleSet) error {
	g, ok := view.FindGroup(groupID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.RecordGroup, ID: groupID}
	}
	return check(req, groupPredicate, allowed, domain.IdentifyGroup(view, g))
}

func checkProject(req request, view domain.TransactionView, p domain.Project, allowed authz.RoleSet) error {
	return checkGroup(req, view, p.GroupID, allowed)
}

func checkExperiment(req request, view domain.TransactionView, e domain.Experiment, allowed authz.RoleSet) error {
	p, ok := view.FindProject(e.ProjectID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.RecordProject, ID: e.ProjectID}
	}
	return checkProject(req, view, p, allowed)
}

func checkSample(req request, view domain.TransactionView, s domain.Sample, allowed authz.RoleSet) error {
	return check(req, samplePredicate, allowed, domain.IdentifySample(view, s))
}

// readableGroups returns a filter accepting the groups the caller may read.
func readableGroups(req request, view domain.TransactionView) func(groupID string) bool {
	codes, all := req.principal.GroupCodes(authz.RoleSetObserver)
	if all {
		return func(string) bool { return true }
	}
	allowed := make(map[string]bool, len(codes))
	for _, code := range codes {
		if g, ok := view.FindGroupByCode(code); ok {
			allowed[g.ID] = true
		}
	}
	return func(groupID string) bool { return allowed[groupID] }
}
