package bo

import (
	"time"

	"openbis/pkg/domain"
)

// NewExperiment describes an experiment to register.
type NewExperiment struct {
	Identifier     string          `json:"identifier"`
	ExperimentType string          `json:"experiment_type"`
	Properties     []PropertyValue `json:"properties,omitempty"`
}

// ExperimentUpdates describes an edit of an experiment. A nil Properties
// leaves properties untouched; an empty ProjectIdentifier keeps the project.
type ExperimentUpdates struct {
	ExperimentID      string          `json:"experiment_id"`
	Version           time.Time       `json:"version"`
	Properties        []PropertyValue `json:"properties,omitempty"`
	ProjectIdentifier string          `json:"project_identifier,omitempty"`
}

// ExperimentBO registers, edits and deletes one experiment at a time.
type ExperimentBO struct {
	base
	converter   *PropertiesConverter
	experiment  *domain.Experiment
	dataChanged bool
}

// NewExperimentBO constructs an ExperimentBO.
func NewExperimentBO(tx domain.Transaction, session Session) *ExperimentBO {
	return &ExperimentBO{
		base:      base{tx: tx, session: session},
		converter: NewPropertiesConverter(tx, domain.KindExperiment),
	}
}

// Experiment returns the loaded experiment.
func (b *ExperimentBO) Experiment() (domain.Experiment, error) {
	if b.experiment == nil {
		return domain.Experiment{}, domain.UserFailuref("Unloaded experiment.")
	}
	return *b.experiment, nil
}

// LoadByID loads an experiment by technical id.
func (b *ExperimentBO) LoadByID(id string) error {
	e, ok := b.tx.FindExperiment(id)
	if !ok {
		b.experiment = nil
		return domain.ErrNotFound{Entity: domain.RecordExperiment, ID: id}
	}
	b.experiment, b.dataChanged = &e, false
	return nil
}

// LoadByIdentifier loads an experiment by identifier.
func (b *ExperimentBO) LoadByIdentifier(id domain.ExperimentIdentifier) error {
	e, err := b.resolveExperiment(id)
	if err != nil {
		return err
	}
	b.experiment, b.dataChanged = &e, false
	return nil
}

// Define prepares a new experiment for registration.
func (b *ExperimentBO) Define(ne NewExperiment) error {
	id, err := domain.ParseExperimentIdentifier(ne.Identifier)
	if err != nil {
		return err
	}
	if err := domain.ValidateCode(id.Experiment); err != nil {
		return err
	}
	experimentType, err := b.findEntityType(domain.KindExperiment, ne.ExperimentType)
	if err != nil {
		return err
	}
	project, err := b.resolveProject(id.ProjectIdentifier())
	if err != nil {
		return err
	}
	if _, exists := b.tx.FindExperimentByCode(project.ID, id.Experiment); exists {
		return domain.UserFailuref("Experiment '%s' already exists.", id)
	}
	props, err := b.converter.Convert(ne.Properties, experimentType.Code, b.registrator())
	if err != nil {
		return err
	}
	if err := b.converter.CheckMandatory(props, experimentType); err != nil {
		return err
	}
	b.experiment = &domain.Experiment{
		Code:          id.Experiment,
		ProjectID:     project.ID,
		TypeID:        experimentType.ID,
		PermID:        b.tx.NextPermID(),
		RegistratorID: b.registrator(),
		Properties:    props,
	}
	b.dataChanged = true
	return nil
}

// Save persists a defined experiment.
func (b *ExperimentBO) Save() error {
	if b.experiment == nil {
		return domain.UserFailuref("Unloaded experiment.")
	}
	if !b.dataChanged {
		return nil
	}
	created, err := b.tx.CreateExperiment(*b.experiment)
	if err != nil {
		return err
	}
	b.experiment, b.dataChanged = &created, false
	return nil
}

// Update edits properties and project. Moving to a project of another group
// moves the experiment's samples into that group.
func (b *ExperimentBO) Update(u ExperimentUpdates) error {
	if err := b.LoadByID(u.ExperimentID); err != nil {
		return err
	}
	e := *b.experiment
	if !e.UpdatedAt.Equal(u.Version) {
		return domain.StaleModificationError{Entity: domain.RecordExperiment, Identifier: domain.IdentifyExperiment(b.tx, e).String()}
	}
	if u.Properties != nil {
		experimentType, ok := b.tx.FindEntityType(e.TypeID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordEntityType, ID: e.TypeID}
		}
		props, err := b.converter.Convert(u.Properties, experimentType.Code, b.registrator())
		if err != nil {
			return err
		}
		if err := b.converter.CheckMandatory(props, experimentType); err != nil {
			return err
		}
		e.Properties = props
	}
	if u.ProjectIdentifier != "" {
		pid, err := domain.ParseProjectIdentifier(u.ProjectIdentifier)
		if err != nil {
			return err
		}
		project, err := b.resolveProject(pid)
		if err != nil {
			return err
		}
		if project.ID != e.ProjectID {
			if _, exists := b.tx.FindExperimentByCode(project.ID, e.Code); exists {
				return domain.UserFailuref("Experiment '%s/%s' already exists.", pid, e.Code)
			}
			if err := b.moveSamples(e, project.GroupID); err != nil {
				return err
			}
			e.ProjectID = project.ID
		}
	}
	updated, err := b.tx.UpdateExperiment(e.ID, func(target *domain.Experiment) error {
		target.Properties = e.Properties
		target.ProjectID = e.ProjectID
		return nil
	})
	if err != nil {
		return err
	}
	b.experiment = &updated
	return nil
}

func (b *ExperimentBO) moveSamples(e domain.Experiment, groupID string) error {
	for _, s := range b.tx.ListSamplesByExperiment(e.ID) {
		if deref(s.GroupID) == groupID {
			continue
		}
		if existing, ok := b.tx.FindSampleByCode(&groupID, s.Code); ok {
			return domain.UserFailuref("Sample '%s' already exists in the target group.", domain.IdentifySample(b.tx, existing))
		}
		if _, err := b.tx.UpdateSample(s.ID, func(target *domain.Sample) error {
			target.GroupID = &groupID
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByID removes an experiment without samples or data sets and records
// a deletion event. The blob keys of removed attachments are returned.
func (b *ExperimentBO) DeleteByID(id, reason string) ([]string, error) {
	if err := b.LoadByID(id); err != nil {
		return nil, err
	}
	e := *b.experiment
	identifier := domain.IdentifyExperiment(b.tx, e).String()
	if len(b.tx.ListSamplesByExperiment(e.ID)) > 0 {
		return nil, domain.UserFailuref("Experiment '%s' cannot be deleted because samples are attached to it.", identifier)
	}
	if len(b.tx.ListDataSetsByExperiment(e.ID)) > 0 {
		return nil, domain.UserFailuref("Experiment '%s' cannot be deleted because data sets are attached to it.", identifier)
	}
	keys, err := NewAttachmentBO(b.tx, b.session).DeleteAll(domain.RecordExperiment, e.ID)
	if err != nil {
		return nil, err
	}
	if err := b.tx.DeleteExperiment(e.ID); err != nil {
		return nil, err
	}
	if err := b.deletionEvent(domain.RecordExperiment, identifier, reason); err != nil {
		return nil, err
	}
	b.experiment = nil
	return keys, nil
}

// AddAttachment records a staged file for the loaded experiment.
func (b *ExperimentBO) AddAttachment(st StagedAttachment) (domain.Attachment, error) {
	e, err := b.Experiment()
	if err != nil {
		return domain.Attachment{}, err
	}
	return NewAttachmentBO(b.tx, b.session).Add(domain.RecordExperiment, e.ID, st)
}
