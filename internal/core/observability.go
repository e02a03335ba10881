package core

import (
	"context"
	"time"

	"openbis/pkg/domain"
)

// Logger receives structured service events as a message plus key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan ends with the error of the operation, nil on success.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating operation.
type AuditEntry struct {
	Operation string
	Entity    domain.RecordKind
	Action    domain.Action
	EntityID  string
	UserID    string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder persists audit entries outside the store.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Clock supplies the service with wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reads the wall clock.
type ClockFunc func() time.Time

// Now returns the current time in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// auditedOperation maps a mutating operation to the record it changes.
type auditedOperation struct {
	entity domain.RecordKind
	action domain.Action
}

var auditedOperations = map[string]auditedOperation{
	"register_group":          {domain.RecordGroup, domain.ActionCreate},
	"update_group":            {domain.RecordGroup, domain.ActionUpdate},
	"delete_group":            {domain.RecordGroup, domain.ActionDelete},
	"register_person":         {domain.RecordPerson, domain.ActionCreate},
	"change_home_group":       {domain.RecordPerson, domain.ActionUpdate},
	"add_role":                {domain.RecordRoleAssignment, domain.ActionCreate},
	"delete_role":             {domain.RecordRoleAssignment, domain.ActionDelete},
	"register_project":        {domain.RecordProject, domain.ActionCreate},
	"update_project":          {domain.RecordProject, domain.ActionUpdate},
	"delete_project":          {domain.RecordProject, domain.ActionDelete},
	"register_entity_type":    {domain.RecordEntityType, domain.ActionCreate},
	"update_entity_type":      {domain.RecordEntityType, domain.ActionUpdate},
	"delete_entity_type":      {domain.RecordEntityType, domain.ActionDelete},
	"register_property_type":  {domain.RecordPropertyType, domain.ActionCreate},
	"update_property_type":    {domain.RecordPropertyType, domain.ActionUpdate},
	"delete_property_type":    {domain.RecordPropertyType, domain.ActionDelete},
	"assign_property_type":    {domain.RecordAssignment, domain.ActionCreate},
	"update_assignment":       {domain.RecordAssignment, domain.ActionUpdate},
	"unassign_property_type":  {domain.RecordAssignment, domain.ActionDelete},
	"register_vocabulary":     {domain.RecordVocabulary, domain.ActionCreate},
	"add_vocabulary_terms":    {domain.RecordVocabulary, domain.ActionUpdate},
	"delete_vocabulary_terms": {domain.RecordVocabulary, domain.ActionUpdate},
	"delete_vocabulary":       {domain.RecordVocabulary, domain.ActionDelete},
	"register_experiment":     {domain.RecordExperiment, domain.ActionCreate},
	"update_experiment":       {domain.RecordExperiment, domain.ActionUpdate},
	"delete_experiments":      {domain.RecordExperiment, domain.ActionDelete},
	"register_sample":         {domain.RecordSample, domain.ActionCreate},
	"register_samples":        {domain.RecordSample, domain.ActionCreate},
	"update_sample":           {domain.RecordSample, domain.ActionUpdate},
	"delete_samples":          {domain.RecordSample, domain.ActionDelete},
	"register_materials":      {domain.RecordMaterial, domain.ActionCreate},
	"delete_materials":        {domain.RecordMaterial, domain.ActionDelete},
	"register_data_store":     {domain.RecordDataStore, domain.ActionCreate},
	"register_data_set":       {domain.RecordDataSet, domain.ActionCreate},
	"delete_data_sets":        {domain.RecordDataSet, domain.ActionDelete},
	"add_attachment":          {domain.RecordAttachment, domain.ActionCreate},
}
