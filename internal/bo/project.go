package bo

import (
	"time"

	"openbis/pkg/domain"
)

// NewProject describes a project to register.
type NewProject struct {
	Identifier   string `json:"identifier"`
	Description  string `json:"description,omitempty"`
	LeaderUserID string `json:"leader_user_id,omitempty"`
}

// ProjectUpdates describes an edit of a project.
type ProjectUpdates struct {
	ProjectID   string    `json:"project_id"`
	Version     time.Time `json:"version"`
	Description string    `json:"description"`
}

// ProjectBO registers, edits and deletes projects.
type ProjectBO struct {
	base
	project *domain.Project
}

// NewProjectBO constructs a ProjectBO.
func NewProjectBO(tx domain.Transaction, session Session) *ProjectBO {
	return &ProjectBO{base: base{tx: tx, session: session}}
}

// Project returns the loaded project.
func (b *ProjectBO) Project() (domain.Project, error) {
	if b.project == nil {
		return domain.Project{}, domain.UserFailuref("Unloaded project.")
	}
	return *b.project, nil
}

// LoadByID loads a project.
func (b *ProjectBO) LoadByID(id string) error {
	p, ok := b.tx.FindProject(id)
	if !ok {
		b.project = nil
		return domain.ErrNotFound{Entity: domain.RecordProject, ID: id}
	}
	b.project = &p
	return nil
}

// Register validates and stores a new project.
func (b *ProjectBO) Register(np NewProject) error {
	id, err := domain.ParseProjectIdentifier(np.Identifier)
	if err != nil {
		return err
	}
	if err := domain.ValidateCode(id.Project); err != nil {
		return err
	}
	group, err := b.resolveGroup(id.GroupIdentifier())
	if err != nil {
		return err
	}
	if _, exists := b.tx.FindProjectByCode(group.ID, id.Project); exists {
		return domain.UserFailuref("Project '%s' already exists.", id)
	}
	p := domain.Project{Code: id.Project, Description: np.Description, GroupID: group.ID, RegistratorID: b.registrator()}
	if np.LeaderUserID != "" {
		leader, ok := b.tx.FindPersonByUserID(np.LeaderUserID)
		if !ok {
			return domain.UserFailuref("Person '%s' does not exist.", np.LeaderUserID)
		}
		p.LeaderID = &leader.ID
	}
	created, err := b.tx.CreateProject(p)
	if err != nil {
		return err
	}
	b.project = &created
	return nil
}

// Update edits the project description.
func (b *ProjectBO) Update(u ProjectUpdates) error {
	if err := b.LoadByID(u.ProjectID); err != nil {
		return err
	}
	if !b.project.UpdatedAt.Equal(u.Version) {
		return domain.StaleModificationError{Entity: domain.RecordProject, Identifier: domain.IdentifyProject(b.tx, *b.project).String()}
	}
	updated, err := b.tx.UpdateProject(u.ProjectID, func(p *domain.Project) error {
		p.Description = u.Description
		return nil
	})
	if err != nil {
		return err
	}
	b.project = &updated
	return nil
}

// DeleteByID removes a project without experiments and records a deletion event.
func (b *ProjectBO) DeleteByID(id, reason string) ([]string, error) {
	if err := b.LoadByID(id); err != nil {
		return nil, err
	}
	identifier := domain.IdentifyProject(b.tx, *b.project).String()
	if len(b.tx.ListExperimentsByProject(id, "")) > 0 {
		return nil, domain.UserFailuref("Project '%s' cannot be deleted because experiments are attached to it.", identifier)
	}
	keys, err := NewAttachmentBO(b.tx, b.session).DeleteAll(domain.RecordProject, id)
	if err != nil {
		return nil, err
	}
	if err := b.tx.DeleteProject(id); err != nil {
		return nil, err
	}
	if err := b.deletionEvent(domain.RecordProject, identifier, reason); err != nil {
		return nil, err
	}
	b.project = nil
	return keys, nil
}

// AddAttachment records a staged file for the loaded project.
func (b *ProjectBO) AddAttachment(st StagedAttachment) (domain.Attachment, error) {
	p, err := b.Project()
	if err != nil {
		return domain.Attachment{}, err
	}
	return NewAttachmentBO(b.tx, b.session).Add(domain.RecordProject, p.ID, st)
}
