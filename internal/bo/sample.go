package bo

import (
	"time"

	"openbis/pkg/domain"
)

// NewSample describes a sample to register.
type NewSample struct {
	Identifier           string          `json:"identifier"`
	SampleType           string          `json:"sample_type"`
	ParentIdentifier     string          `json:"parent_identifier,omitempty"`
	ContainerIdentifier  string          `json:"container_identifier,omitempty"`
	ExperimentIdentifier string          `json:"experiment_identifier,omitempty"`
	Properties           []PropertyValue `json:"properties,omitempty"`
}

// SampleUpdates describes an edit of a registered sample. Version is the
// modification date the editor has seen. A nil Properties leaves properties
// untouched. For parent and container nil means unchanged and an empty
// string clears the link. An empty ExperimentIdentifier detaches the sample.
type SampleUpdates struct {
	SampleID             string          `json:"sample_id"`
	Version              time.Time       `json:"version"`
	Properties           []PropertyValue `json:"properties,omitempty"`
	ExperimentIdentifier string          `json:"experiment_identifier,omitempty"`
	SampleIdentifier     string          `json:"sample_identifier,omitempty"`
	ParentIdentifier     *string         `json:"parent_identifier,omitempty"`
	ContainerIdentifier  *string         `json:"container_identifier,omitempty"`
}

// SampleBO registers, edits and deletes one sample at a time.
type SampleBO struct {
	base
	converter   *PropertiesConverter
	sample      *domain.Sample
	dataChanged bool
}

// NewSampleBO constructs a SampleBO.
func NewSampleBO(tx domain.Transaction, session Session) *SampleBO {
	return &SampleBO{
		base:      base{tx: tx, session: session},
		converter: NewPropertiesConverter(tx, domain.KindSample),
	}
}

// Sample returns the loaded sample.
func (b *SampleBO) Sample() (domain.Sample, error) {
	if b.sample == nil {
		return domain.Sample{}, domain.UserFailuref("Unloaded sample.")
	}
	return *b.sample, nil
}

// TrySample returns the loaded sample, if any.
func (b *SampleBO) TrySample() (domain.Sample, bool) {
	if b.sample == nil {
		return domain.Sample{}, false
	}
	return *b.sample, true
}

// LoadByID loads a sample by technical id.
func (b *SampleBO) LoadByID(id string) error {
	s, ok := b.tx.FindSample(id)
	if !ok {
		b.sample = nil
		return domain.ErrNotFound{Entity: domain.RecordSample, ID: id}
	}
	b.sample = &s
	b.dataChanged = false
	return nil
}

// TryLoadByIdentifier loads the sample with the given identifier. An
// unknown sample leaves the business object unloaded without error.
func (b *SampleBO) TryLoadByIdentifier(id domain.SampleIdentifier) error {
	s, ok, err := b.tryResolveSample(id)
	if err != nil {
		return err
	}
	b.sample = nil
	if ok {
		b.sample = &s
	}
	b.dataChanged = false
	return nil
}

// Define prepares a new sample for registration. Save persists it.
func (b *SampleBO) Define(ns NewSample) error {
	id, err := domain.ParseSampleIdentifier(ns.Identifier)
	if err != nil {
		return err
	}
	if err := domain.ValidateSampleCode(id.Code); err != nil {
		return err
	}
	sampleType, err := b.findEntityType(domain.KindSample, ns.SampleType)
	if err != nil {
		return err
	}
	instance, err := b.resolveInstance(id.Instance)
	if err != nil {
		return err
	}
	s := domain.Sample{
		Code:          id.Code,
		TypeID:        sampleType.ID,
		InstanceID:    instance.ID,
		RegistratorID: b.registrator(),
	}
	if !id.Shared {
		g, err := b.resolveGroup(id.Owner())
		if err != nil {
			return err
		}
		s.GroupID = &g.ID
	}
	if existing, ok := b.tx.FindSampleByCode(s.GroupID, s.Code); ok {
		return domain.UserFailuref("Sample '%s' already exists.", domain.IdentifySample(b.tx, existing))
	}
	props, err := b.converter.Convert(ns.Properties, sampleType.Code, b.registrator())
	if err != nil {
		return err
	}
	if err := b.converter.CheckMandatory(props, sampleType); err != nil {
		return err
	}
	s.Properties = props

	if ns.ParentIdentifier != "" {
		if err := b.setParent(&s, ns.ParentIdentifier); err != nil {
			return err
		}
	} else if code, err := domain.ParseSampleTypeCode(sampleType.Code); err == nil && code.ParentRequired() {
		return domain.UserFailuref("Sample of type '%s' has to be derived from a parent sample.", sampleType.Code)
	}
	if ns.ContainerIdentifier != "" {
		if err := b.setContainer(&s, ns.ContainerIdentifier); err != nil {
			return err
		}
	}
	if ns.ExperimentIdentifier != "" {
		if err := b.attachToExperiment(&s, ns.ExperimentIdentifier); err != nil {
			return err
		}
	}
	s.PermID = b.tx.NextPermID()
	b.sample = &s
	b.dataChanged = true
	return nil
}

// Save persists a defined sample.
func (b *SampleBO) Save() error {
	if b.sample == nil {
		return domain.UserFailuref("Unloaded sample.")
	}
	if !b.dataChanged {
		return nil
	}
	created, err := b.tx.CreateSample(*b.sample)
	if err != nil {
		return err
	}
	b.sample = &created
	b.dataChanged = false
	return nil
}

func (b *SampleBO) resolveReference(identifier string) (domain.Sample, error) {
	id, err := domain.ParseSampleIdentifier(identifier)
	if err != nil {
		return domain.Sample{}, err
	}
	return b.resolveSample(id)
}

func (b *SampleBO) setParent(s *domain.Sample, identifier string) error {
	parent, err := b.resolveReference(identifier)
	if err != nil {
		return err
	}
	if s.ID != "" && parent.ID == s.ID {
		return domain.UserFailuref("Sample '%s' cannot be its own parent.", s.Code)
	}
	if s.Shared() && !parent.Shared() {
		return domain.UserFailuref("The parent '%s' of the shared sample '%s' has to be shared as well.",
			domain.IdentifySample(b.tx, parent), s.Code)
	}
	if s.ID != "" && b.descendsFrom(parent, s.ID) {
		return domain.UserFailuref("Sample '%s' cannot be derived from its own descendant '%s'.",
			s.Code, domain.IdentifySample(b.tx, parent))
	}
	s.GeneratedFromID = &parent.ID
	return nil
}

// descendsFrom reports whether sample is generated (directly or not) from ancestorID.
func (b *SampleBO) descendsFrom(sample domain.Sample, ancestorID string) bool {
	seen := map[string]bool{}
	for cur := sample; cur.GeneratedFromID != nil && !seen[cur.ID]; {
		seen[cur.ID] = true
		if *cur.GeneratedFromID == ancestorID {
			return true
		}
		next, ok := b.tx.FindSample(*cur.GeneratedFromID)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

func (b *SampleBO) setContainer(s *domain.Sample, identifier string) error {
	container, err := b.resolveReference(identifier)
	if err != nil {
		return err
	}
	if s.ID != "" && container.ID == s.ID {
		return domain.UserFailuref("Sample '%s' cannot contain itself.", s.Code)
	}
	if deref(container.GroupID) != deref(s.GroupID) {
		return domain.UserFailuref("The container '%s' of the sample '%s' has to be in the same group.",
			domain.IdentifySample(b.tx, container), s.Code)
	}
	s.ContainerID = &container.ID
	return nil
}

func (b *SampleBO) attachToExperiment(s *domain.Sample, identifier string) error {
	if s.Shared() {
		return domain.UserFailuref("Shared sample '%s' cannot be attached to an experiment.", s.Code)
	}
	expID, err := domain.ParseExperimentIdentifier(identifier)
	if err != nil {
		return err
	}
	exp, err := b.resolveExperiment(expID)
	if err != nil {
		return err
	}
	if project, ok := b.tx.FindProject(exp.ProjectID); ok && project.GroupID != deref(s.GroupID) {
		return domain.UserFailuref("Sample '%s' and experiment '%s' have to be in the same group.", s.Code, expID)
	}
	s.ExperimentID = &exp.ID
	return nil
}

// Update applies updates to a sample after checking it has not been
// modified since the editor loaded it.
func (b *SampleBO) Update(u SampleUpdates) error {
	if err := b.LoadByID(u.SampleID); err != nil {
		return err
	}
	current := *b.sample
	if !current.UpdatedAt.Equal(u.Version) {
		return domain.StaleModificationError{Entity: domain.RecordSample, Identifier: domain.IdentifySample(b.tx, current).String()}
	}
	s := current
	if u.Properties != nil {
		sampleType, ok := b.tx.FindEntityType(s.TypeID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordEntityType, ID: s.TypeID}
		}
		props, err := b.converter.Convert(u.Properties, sampleType.Code, b.registrator())
		if err != nil {
			return err
		}
		if err := b.converter.CheckMandatory(props, sampleType); err != nil {
			return err
		}
		s.Properties = props
	}
	if u.SampleIdentifier != "" {
		if err := b.changeOwner(&s, u.SampleIdentifier); err != nil {
			return err
		}
	}
	if err := b.updateExperiment(&s, u.ExperimentIdentifier); err != nil {
		return err
	}
	if u.ParentIdentifier != nil {
		s.GeneratedFromID = nil
		if *u.ParentIdentifier != "" {
			if err := b.setParent(&s, *u.ParentIdentifier); err != nil {
				return err
			}
		}
	}
	if u.ContainerIdentifier != nil {
		s.ContainerID = nil
		if *u.ContainerIdentifier != "" {
			if err := b.setContainer(&s, *u.ContainerIdentifier); err != nil {
				return err
			}
		}
	}
	updated, err := b.tx.UpdateSample(s.ID, func(target *domain.Sample) error {
		meta := target.Base
		*target = s
		target.Base = meta
		return nil
	})
	if err != nil {
		return err
	}
	b.sample = &updated
	return nil
}

func (b *SampleBO) changeOwner(s *domain.Sample, identifier string) error {
	id, err := domain.ParseSampleIdentifier(identifier)
	if err != nil {
		return err
	}
	if err := domain.ValidateSampleCode(id.Code); err != nil {
		return err
	}
	instance, err := b.resolveInstance(id.Instance)
	if err != nil {
		return err
	}
	var groupID *string
	if !id.Shared {
		g, err := b.resolveGroup(id.Owner())
		if err != nil {
			return err
		}
		groupID = &g.ID
	}
	sameOwner := (groupID == nil) == (s.GroupID == nil) && deref(groupID) == deref(s.GroupID)
	if sameOwner && id.Code == s.Code {
		return nil
	}
	if existing, ok := b.tx.FindSampleByCode(groupID, id.Code); ok && existing.ID != s.ID {
		return domain.UserFailuref("Sample '%s' already exists.", domain.IdentifySample(b.tx, existing))
	}
	s.Code = id.Code
	s.InstanceID = instance.ID
	s.GroupID = groupID
	return nil
}

func (b *SampleBO) updateExperiment(s *domain.Sample, identifier string) error {
	if identifier == "" {
		if s.ExperimentID != nil {
			if len(b.tx.ListDataSetsBySample(s.ID)) > 0 {
				return domain.UserFailuref("Cannot detach the sample '%s' from the experiment because there are already datasets attached to the sample.", s.Code)
			}
			s.ExperimentID = nil
		}
		return nil
	}
	previous := deref(s.ExperimentID)
	if err := b.attachToExperiment(s, identifier); err != nil {
		return err
	}
	if *s.ExperimentID == previous {
		return nil
	}
	for _, ds := range b.tx.ListDataSetsBySample(s.ID) {
		if _, err := b.tx.UpdateDataSet(ds.ID, func(d *domain.DataSet) error {
			d.ExperimentID = *s.ExperimentID
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByID removes a sample, its attachment metadata and records a
// deletion event. The blob keys of removed attachments are returned.
func (b *SampleBO) DeleteByID(id, reason string) ([]string, error) {
	if err := b.LoadByID(id); err != nil {
		return nil, err
	}
	s := *b.sample
	identifier := domain.IdentifySample(b.tx, s).String()
	if len(b.tx.ListDataSetsBySample(s.ID)) > 0 {
		return nil, domain.UserFailuref("Sample '%s' cannot be deleted because data sets are attached to it.", identifier)
	}
	if len(b.tx.ListSamplesGeneratedFrom(s.ID)) > 0 || len(b.tx.ListSamplesByContainer(s.ID)) > 0 {
		return nil, domain.UserFailuref("Sample '%s' cannot be deleted because other samples are derived from or contained in it.", identifier)
	}
	keys, err := NewAttachmentBO(b.tx, b.session).DeleteAll(domain.RecordSample, s.ID)
	if err != nil {
		return nil, err
	}
	if err := b.tx.DeleteSample(s.ID); err != nil {
		return nil, err
	}
	if err := b.deletionEvent(domain.RecordSample, identifier, reason); err != nil {
		return nil, err
	}
	b.sample = nil
	return keys, nil
}

// AddAttachment records a staged file for the loaded sample.
func (b *SampleBO) AddAttachment(st StagedAttachment) (domain.Attachment, error) {
	s, err := b.Sample()
	if err != nil {
		return domain.Attachment{}, err
	}
	return NewAttachmentBO(b.tx, b.session).Add(domain.RecordSample, s.ID, st)
}
