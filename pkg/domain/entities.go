// Package domain defines the persistent entities, value types, identifiers and
// rule evaluation primitives shared by every layer of the openBIS server.
package domain

import (
	"slices"
	"time"
)

// RecordKind identifies the type of record stored in a persistence bucket.
type RecordKind string

// Record kinds used in Change records and persistence buckets.
const (
	RecordDatabaseInstance RecordKind = "database_instance"
	RecordGroup            RecordKind = "group"
	RecordPerson           RecordKind = "person"
	RecordRoleAssignment   RecordKind = "role_assignment"
	RecordProject          RecordKind = "project"
	RecordEntityType       RecordKind = "entity_type"
	RecordPropertyType     RecordKind = "property_type"
	RecordVocabulary       RecordKind = "vocabulary"
	RecordAssignment       RecordKind = "assignment"
	RecordExperiment       RecordKind = "experiment"
	RecordSample           RecordKind = "sample"
	RecordMaterial         RecordKind = "material"
	RecordDataStore        RecordKind = "data_store"
	RecordDataSet          RecordKind = "data_set"
	RecordAttachment       RecordKind = "attachment"
	RecordEvent            RecordKind = "event"
)

// EntityKind enumerates the kinds of typed entities that carry properties.
type EntityKind string

// Entity kinds.
const (
	KindExperiment EntityKind = "EXPERIMENT"
	KindSample     EntityKind = "SAMPLE"
	KindMaterial   EntityKind = "MATERIAL"
	KindDataSet    EntityKind = "DATA_SET"
)

// EntityKinds lists every entity kind in display order.
var EntityKinds = []EntityKind{KindExperiment, KindSample, KindMaterial, KindDataSet}

// Label returns the lower case human readable name of the kind.
func (k EntityKind) Label() string {
	switch k {
	case KindExperiment:
		return "experiment"
	case KindSample:
		return "sample"
	case KindMaterial:
		return "material"
	case KindDataSet:
		return "data set"
	default:
		return string(k)
	}
}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	return slices.Contains(EntityKinds, k)
}

// DataTypeCode enumerates the value types a property type may declare.
type DataTypeCode string

// Property data types.
const (
	DataVarchar              DataTypeCode = "VARCHAR"
	DataMultilineVarchar     DataTypeCode = "MULTILINE_VARCHAR"
	DataInteger              DataTypeCode = "INTEGER"
	DataReal                 DataTypeCode = "REAL"
	DataBoolean              DataTypeCode = "BOOLEAN"
	DataTimestamp            DataTypeCode = "TIMESTAMP"
	DataControlledVocabulary DataTypeCode = "CONTROLLEDVOCABULARY"
	DataMaterial             DataTypeCode = "MATERIAL"
	DataHyperlink            DataTypeCode = "HYPERLINK"
)

// DataTypes lists all supported data types.
var DataTypes = []DataTypeCode{
	DataVarchar, DataMultilineVarchar, DataInteger, DataReal, DataBoolean,
	DataTimestamp, DataControlledVocabulary, DataMaterial, DataHyperlink,
}

// Valid reports whether d is a supported data type.
func (d DataTypeCode) Valid() bool {
	return slices.Contains(DataTypes, d)
}

// RoleCode enumerates authorization roles. INSTANCE_* roles apply to every
// group of the database instance.
type RoleCode string

// Authorization roles.
const (
	RoleInstanceAdmin     RoleCode = "INSTANCE_ADMIN"
	RoleInstanceObserver  RoleCode = "INSTANCE_OBSERVER"
	RoleInstanceETLServer RoleCode = "INSTANCE_ETL_SERVER"
	RoleGroupAdmin        RoleCode = "GROUP_ADMIN"
	RoleGroupPowerUser    RoleCode = "GROUP_POWER_USER"
	RoleGroupUser         RoleCode = "GROUP_USER"
	RoleGroupObserver     RoleCode = "GROUP_OBSERVER"
	RoleGroupETLServer    RoleCode = "GROUP_ETL_SERVER"
)

// InstanceLevel reports whether the role applies to the whole instance.
func (r RoleCode) InstanceLevel() bool {
	switch r {
	case RoleInstanceAdmin, RoleInstanceObserver, RoleInstanceETLServer:
		return true
	}
	return false
}

// Valid reports whether r is a known role.
func (r RoleCode) Valid() bool {
	switch r {
	case RoleInstanceAdmin, RoleInstanceObserver, RoleInstanceETLServer,
		RoleGroupAdmin, RoleGroupPowerUser, RoleGroupUser, RoleGroupObserver, RoleGroupETLServer:
		return true
	}
	return false
}

// EventType classifies persisted events.
type EventType string

// EventDeletion records the deletion of an entity.
const EventDeletion EventType = "DELETION"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records. UpdatedAt doubles as
// the modification date checked by optimistic updates.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Meta exposes the embedded base for generic persistence helpers.
func (b *Base) Meta() *Base { return b }

// SystemDefaultInstance is the code of the database instance created by a
// fresh installation before it is renamed.
const SystemDefaultInstance = "SYSTEM_DEFAULT"

// DatabaseInstance is the root ownership scope. Exactly one instance is the home instance.
type DatabaseInstance struct {
	Base
	Code string `json:"code"`
	UUID string `json:"uuid"`
	Home bool   `json:"home"`
}

// Group partitions projects and samples for authorization.
type Group struct {
	Base
	Code          string  `json:"code"`
	Description   string  `json:"description,omitempty"`
	InstanceID    string  `json:"instance_id"`
	LeaderID      *string `json:"leader_id,omitempty"`
	RegistratorID string  `json:"registrator_id,omitempty"`
}

// Person is a registered user.
type Person struct {
	Base
	UserID        string  `json:"user_id"`
	FirstName     string  `json:"first_name,omitempty"`
	LastName      string  `json:"last_name,omitempty"`
	Email         string  `json:"email,omitempty"`
	InstanceID    string  `json:"instance_id"`
	HomeGroupID   *string `json:"home_group_id,omitempty"`
	RegistratorID string  `json:"registrator_id,omitempty"`
}

// RoleAssignment grants a role to a person. GroupID is nil for instance roles.
type RoleAssignment struct {
	Base
	PersonID      string   `json:"person_id"`
	Role          RoleCode `json:"role"`
	GroupID       *string  `json:"group_id,omitempty"`
	RegistratorID string   `json:"registrator_id,omitempty"`
}

// Project groups experiments inside a group.
type Project struct {
	Base
	Code          string  `json:"code"`
	Description   string  `json:"description,omitempty"`
	GroupID       string  `json:"group_id"`
	LeaderID      *string `json:"leader_id,omitempty"`
	RegistratorID string  `json:"registrator_id,omitempty"`
}

// EntityType is the type definition of an experiment, sample, material or data set.
type EntityType struct {
	Base
	Kind               EntityKind `json:"kind"`
	Code               string     `json:"code"`
	Description        string     `json:"description,omitempty"`
	Listable           bool       `json:"listable"`
	GeneratedFromDepth int        `json:"generated_from_depth"`
	ContainerDepth     int        `json:"container_depth"`
}

// PropertyType defines a named, typed property that can be assigned to entity types.
type PropertyType struct {
	Base
	Code              string       `json:"code"`
	Label             string       `json:"label"`
	Description       string       `json:"description,omitempty"`
	DataType          DataTypeCode `json:"data_type"`
	VocabularyID      *string      `json:"vocabulary_id,omitempty"`
	MaterialTypeID    *string      `json:"material_type_id,omitempty"`
	ManagedInternally bool         `json:"managed_internally"`
	RegistratorID     string       `json:"registrator_id,omitempty"`
}

// Vocabulary is a controlled list of terms.
type Vocabulary struct {
	Base
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	ManagedInternally bool             `json:"managed_internally"`
	Terms             []VocabularyTerm `json:"terms"`
	RegistratorID     string           `json:"registrator_id,omitempty"`
}

// Term returns the term with the given code.
func (v Vocabulary) Term(code string) (VocabularyTerm, bool) {
	for _, t := range v.Terms {
		if t.Code == code {
			return t, true
		}
	}
	return VocabularyTerm{}, false
}

// VocabularyTerm is a single allowed value of a vocabulary.
type VocabularyTerm struct {
	Code        string `json:"code"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Ordinal     int    `json:"ordinal"`
}

// String renders "label [CODE]" when a label is set, otherwise the code.
func (t VocabularyTerm) String() string {
	if t.Label == "" {
		return t.Code
	}
	return t.Label + " [" + t.Code + "]"
}

// Assignment binds a property type to an entity type.
type Assignment struct {
	Base
	Kind           EntityKind `json:"kind"`
	EntityTypeID   string     `json:"entity_type_id"`
	PropertyTypeID string     `json:"property_type_id"`
	Mandatory      bool       `json:"mandatory"`
	Ordinal        int        `json:"ordinal"`
	Section        string     `json:"section,omitempty"`
	RegistratorID  string     `json:"registrator_id,omitempty"`
}

// EntityProperty is a property value held by an entity.
type EntityProperty struct {
	AssignmentID     string `json:"assignment_id"`
	PropertyTypeCode string `json:"property_type_code"`
	Value            string `json:"value"`
	RegistratorID    string `json:"registrator_id,omitempty"`
}

// PropertyValue looks up the value of the property with the given code.
func PropertyValue(props []EntityProperty, code string) (string, bool) {
	for _, p := range props {
		if p.PropertyTypeCode == code {
			return p.Value, true
		}
	}
	return "", false
}

// SetProperty replaces or appends a property keyed by its property type code.
func SetProperty(props []EntityProperty, prop EntityProperty) []EntityProperty {
	for i := range props {
		if props[i].PropertyTypeCode == prop.PropertyTypeCode {
			props[i] = prop
			return props
		}
	}
	return append(props, prop)
}

// RemoveProperty drops the property with the given code.
func RemoveProperty(props []EntityProperty, code string) []EntityProperty {
	return slices.DeleteFunc(props, func(p EntityProperty) bool { return p.PropertyTypeCode == code })
}

// Experiment belongs to a project and owns samples and data sets.
type Experiment struct {
	Base
	Code          string           `json:"code"`
	ProjectID     string           `json:"project_id"`
	TypeID        string           `json:"type_id"`
	PermID        string           `json:"perm_id"`
	RegistratorID string           `json:"registrator_id,omitempty"`
	Properties    []EntityProperty `json:"properties"`
}

// Sample is owned either by a group or, when GroupID is nil, by the database
// instance (shared sample).
type Sample struct {
	Base
	Code            string           `json:"code"`
	TypeID          string           `json:"type_id"`
	InstanceID      string           `json:"instance_id"`
	GroupID         *string          `json:"group_id,omitempty"`
	ExperimentID    *string          `json:"experiment_id,omitempty"`
	GeneratedFromID *string          `json:"generated_from_id,omitempty"`
	ContainerID     *string          `json:"container_id,omitempty"`
	PermID          string           `json:"perm_id"`
	RegistratorID   string           `json:"registrator_id,omitempty"`
	Properties      []EntityProperty `json:"properties"`
}

// Shared reports whether the sample belongs to the database instance.
func (s Sample) Shared() bool { return s.GroupID == nil }

// Material is a typed, globally shared entity such as a gene or compound.
type Material struct {
	Base
	Code          string           `json:"code"`
	TypeID        string           `json:"type_id"`
	RegistratorID string           `json:"registrator_id,omitempty"`
	Properties    []EntityProperty `json:"properties"`
}

// DataStore is a remote data store server holding data set files.
type DataStore struct {
	Base
	Code         string `json:"code"`
	DownloadURL  string `json:"download_url,omitempty"`
	RemoteURL    string `json:"remote_url,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
}

// DataSet is a registered data set whose files live on a data store server.
type DataSet struct {
	Base
	Code          string           `json:"code"`
	TypeID        string           `json:"type_id"`
	ExperimentID  string           `json:"experiment_id"`
	SampleID      *string          `json:"sample_id,omitempty"`
	DataStoreID   string           `json:"data_store_id"`
	Location      string           `json:"location"`
	ParentIDs     []string         `json:"parent_ids,omitempty"`
	RegistratorID string           `json:"registrator_id,omitempty"`
	Properties    []EntityProperty `json:"properties"`
}

// Attachment is a versioned file attached to a project, experiment or sample.
type Attachment struct {
	Base
	HolderKind    RecordKind `json:"holder_kind"`
	HolderID      string     `json:"holder_id"`
	FileName      string     `json:"file_name"`
	Version       int        `json:"version"`
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	BlobKey       string     `json:"blob_key"`
	Size          int64      `json:"size"`
	RegistratorID string     `json:"registrator_id,omitempty"`
}

// Event records an audited operation such as a deletion.
type Event struct {
	Base
	Type          EventType  `json:"type"`
	Kind          RecordKind `json:"kind"`
	Identifier    string     `json:"identifier"`
	Reason        string     `json:"reason,omitempty"`
	RegistratorID string     `json:"registrator_id,omitempty"`
}

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity RecordKind
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   RecordKind
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock && v.Message != "" {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
