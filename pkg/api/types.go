// Package api defines the transfer objects the openBIS server hands to its
// clients. Every user supplied string in these objects is HTML escaped by
// the translators that build them.
package api

import "time"

// DatabaseInstance is the root ownership scope.
type DatabaseInstance struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	UUID       string `json:"uuid"`
	Home       bool   `json:"home"`
	Identifier string `json:"identifier"`
}

// Person is a registered user.
type Person struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	HomeGroupCode    string    `json:"home_group_code,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
}

// Group partitions projects and samples.
type Group struct {
	ID               string            `json:"id"`
	Code             string            `json:"code"`
	Description      string            `json:"description,omitempty"`
	Identifier       string            `json:"identifier"`
	Instance         *DatabaseInstance `json:"instance,omitempty"`
	Leader           *Person           `json:"leader,omitempty"`
	Registrator      *Person           `json:"registrator,omitempty"`
	RegistrationDate time.Time         `json:"registration_date"`
}

// RoleAssignment grants a role on a group or on the instance.
type RoleAssignment struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Person   *Person           `json:"person,omitempty"`
	Group    *Group            `json:"group,omitempty"`
	Instance *DatabaseInstance `json:"instance,omitempty"`
}

// Project groups experiments.
type Project struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Description      string    `json:"description,omitempty"`
	Identifier       string    `json:"identifier"`
	Group            *Group    `json:"group,omitempty"`
	Leader           *Person   `json:"leader,omitempty"`
	Registrator      *Person   `json:"registrator,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
	ModificationDate time.Time `json:"modification_date"`
}

// EntityType describes an experiment, sample, material or data set type.
// Assignments is only filled when the type is translated with them.
type EntityType struct {
	ID                 string                   `json:"id"`
	Kind               string                   `json:"kind"`
	Code               string                   `json:"code"`
	Description        string                   `json:"description,omitempty"`
	Listable           bool                     `json:"listable"`
	GeneratedFromDepth int                      `json:"generated_from_depth"`
	ContainerDepth     int                      `json:"container_depth"`
	Assignments        []EntityTypePropertyType `json:"assignments,omitempty"`
}

// EntityTypePropertyType is a property type assigned to an entity type.
type EntityTypePropertyType struct {
	ID             string        `json:"id"`
	EntityTypeCode string        `json:"entity_type_code"`
	PropertyType   *PropertyType `json:"property_type"`
	Mandatory      bool          `json:"mandatory"`
	Ordinal        int           `json:"ordinal"`
	Section        string        `json:"section,omitempty"`
}

// PropertyType defines a typed property.
type PropertyType struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	Label             string      `json:"label"`
	Description       string      `json:"description,omitempty"`
	DataType          string      `json:"data_type"`
	Vocabulary        *Vocabulary `json:"vocabulary,omitempty"`
	MaterialType      *EntityType `json:"material_type,omitempty"`
	ManagedInternally bool        `json:"managed_internally"`
}

// Vocabulary is a controlled list of terms.
type Vocabulary struct {
	ID                string           `json:"id"`
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	ManagedInternally bool             `json:"managed_internally"`
	Terms             []VocabularyTerm `json:"terms"`
}

// VocabularyTerm is one allowed value of a vocabulary.
type VocabularyTerm struct {
	Code        string `json:"code"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Ordinal     int    `json:"ordinal"`
	// Display is "label [CODE]" or the bare code.
	Display string `json:"display"`
}

// Property is a property value held by an entity.
type Property struct {
	Code     string          `json:"code"`
	Label    string          `json:"label"`
	DataType string          `json:"data_type"`
	Value    string          `json:"value"`
	Term     *VocabularyTerm `json:"term,omitempty"`
}

// Experiment belongs to a project.
type Experiment struct {
	ID               string       `json:"id"`
	Code             string       `json:"code"`
	Identifier       string       `json:"identifier"`
	PermID           string       `json:"perm_id"`
	ExperimentType   *EntityType  `json:"experiment_type,omitempty"`
	Project          *Project     `json:"project,omitempty"`
	Registrator      *Person      `json:"registrator,omitempty"`
	RegistrationDate time.Time    `json:"registration_date"`
	ModificationDate time.Time    `json:"modification_date"`
	Properties       []Property   `json:"properties"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

// Sample is owned by a group or shared by the instance. GeneratedFrom and
// Container are translated without their own references.
type Sample struct {
	ID               string            `json:"id"`
	Code             string            `json:"code"`
	Identifier       string            `json:"identifier"`
	PermID           string            `json:"perm_id"`
	SampleType       *EntityType       `json:"sample_type,omitempty"`
	Group            *Group            `json:"group,omitempty"`
	Instance         *DatabaseInstance `json:"instance,omitempty"`
	Experiment       *Experiment       `json:"experiment,omitempty"`
	GeneratedFrom    *Sample           `json:"generated_from,omitempty"`
	Container        *Sample           `json:"container,omitempty"`
	Registrator      *Person           `json:"registrator,omitempty"`
	RegistrationDate time.Time         `json:"registration_date"`
	ModificationDate time.Time         `json:"modification_date"`
	Properties       []Property        `json:"properties"`
}

// SampleParentWithDerived is a sample with its ancestors and the samples
// generated from it.
type SampleParentWithDerived struct {
	Parent        *Sample  `json:"parent"`
	GeneratedFrom []Sample `json:"generated_from,omitempty"`
	Containers    []Sample `json:"containers,omitempty"`
	Derived       []Sample `json:"derived"`
}

// Material is a typed, globally shared entity.
type Material struct {
	ID               string      `json:"id"`
	Code             string      `json:"code"`
	Identifier       string      `json:"identifier"`
	MaterialType     *EntityType `json:"material_type,omitempty"`
	Registrator      *Person     `json:"registrator,omitempty"`
	RegistrationDate time.Time   `json:"registration_date"`
	ModificationDate time.Time   `json:"modification_date"`
	Properties       []Property  `json:"properties"`
}

// DataStore is a data store server. Its session token never leaves the server.
type DataStore struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	DownloadURL string `json:"download_url,omitempty"`
	RemoteURL   string `json:"remote_url,omitempty"`
}

// DataSet is a registered data set.
type DataSet struct {
	ID                   string      `json:"id"`
	Code                 string      `json:"code"`
	DataSetType          *EntityType `json:"data_set_type,omitempty"`
	ExperimentIdentifier string      `json:"experiment_identifier"`
	SampleIdentifier     string      `json:"sample_identifier,omitempty"`
	DataStore            *DataStore  `json:"data_store,omitempty"`
	Location             string      `json:"location"`
	ParentCodes          []string    `json:"parent_codes,omitempty"`
	Registrator          *Person     `json:"registrator,omitempty"`
	RegistrationDate     time.Time   `json:"registration_date"`
	Properties           []Property  `json:"properties"`
}

// Attachment is one version of an attached file.
type Attachment struct {
	ID               string    `json:"id"`
	HolderKind       string    `json:"holder_kind"`
	HolderID         string    `json:"holder_id"`
	FileName         string    `json:"file_name"`
	Version          int       `json:"version"`
	Title            string    `json:"title,omitempty"`
	Description      string    `json:"description,omitempty"`
	Size             int64     `json:"size"`
	Registrator      *Person   `json:"registrator,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
}

// Event records an audited operation.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Kind        string    `json:"kind"`
	Identifier  string    `json:"identifier"`
	Reason      string    `json:"reason,omitempty"`
	Registrator *Person   `json:"registrator,omitempty"`
	Date        time.Time `json:"date"`
}

// Session is returned by a successful login.
type Session struct {
	Token    string  `json:"token"`
	Person   *Person `json:"person"`
	Instance string  `json:"instance"`
}

// ResultSet is one page of grid rows.
type ResultSet[T any] struct {
	Rows       []T `json:"rows"`
	TotalCount int `json:"total_count"`
	Offset     int `json:"offset"`
}
