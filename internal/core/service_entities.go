package core

import (
	"context"
	"io"
	"strings"

	"openbis/internal/authz"
	"openbis/internal/bo"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// ListProjects returns the projects of the groups the caller may read.
func (s *Service) ListProjects(ctx context.Context, token string) ([]api.Project, error) {
	var out []api.Project
	err := s.read(ctx, "list_projects", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		readable := readableGroups(req, view)
		var projects []domain.Project
		for _, p := range view.ListProjects() {
			if readable(p.GroupID) {
				projects = append(projects, p)
			}
		}
		out = req.tr.Projects(projects)
		return nil
	})
	return out, err
}

// RegisterProject creates a project. Group admins of the project's group may
// do so.
func (s *Service) RegisterProject(ctx context.Context, token string, np bo.NewProject) (*api.Project, error) {
	var out *api.Project
	err := s.write(ctx, "register_project", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		if err := check[string](req, authz.ProjectIdentifierPredicate(), authz.RoleSetGroupAdmin, np.Identifier); err != nil {
			return err
		}
		pbo := bo.NewProjectBO(tx, req.session)
		if err := pbo.Register(np); err != nil {
			return err
		}
		p, err := pbo.Project()
		if err != nil {
			return err
		}
		out = req.tr.Project(&p)
		fx.entityID = p.ID
		return nil
	})
	return out, err
}

// UpdateProject edits the description of a project.
func (s *Service) UpdateProject(ctx context.Context, token string, u bo.ProjectUpdates) (*api.Project, error) {
	var out *api.Project
	err := s.write(ctx, "update_project", token, authz.RoleSetUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = u.ProjectID
		p, ok := tx.FindProject(u.ProjectID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordProject, ID: u.ProjectID}
		}
		if err := checkProject(req, tx, p, authz.RoleSetUser); err != nil {
			return err
		}
		pbo := bo.NewProjectBO(tx, req.session)
		if err := pbo.Update(u); err != nil {
			return err
		}
		updated, err := pbo.Project()
		if err != nil {
			return err
		}
		out = req.tr.Project(&updated)
		return nil
	})
	return out, err
}

// DeleteProject removes a project without experiments.
func (s *Service) DeleteProject(ctx context.Context, token, projectID, reason string) error {
	return s.write(ctx, "delete_project", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = projectID
		p, ok := tx.FindProject(projectID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordProject, ID: projectID}
		}
		if err := checkProject(req, tx, p, authz.RoleSetGroupAdmin); err != nil {
			return err
		}
		keys, err := bo.NewProjectBO(tx, req.session).DeleteByID(projectID, reason)
		fx.obsolete = keys
		return err
	})
}

// ListExperiments returns the experiments of a project, optionally of one
// experiment type.
func (s *Service) ListExperiments(ctx context.Context, token, projectIdentifier, experimentType string) ([]api.Experiment, error) {
	var out []api.Experiment
	err := s.read(ctx, "list_experiments", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		if err := check[string](req, authz.ProjectIdentifierPredicate(), authz.RoleSetObserver, projectIdentifier); err != nil {
			return err
		}
		experiments, err := listExperiments(view, projectIdentifier, experimentType)
		if err != nil {
			return err
		}
		out = req.tr.Experiments(experiments)
		return nil
	})
	return out, err
}

func listExperiments(view domain.TransactionView, projectIdentifier, experimentType string) ([]domain.Experiment, error) {
	id, err := domain.ParseProjectIdentifier(projectIdentifier)
	if err != nil {
		return nil, err
	}
	p, err := resolveProject(view, id)
	if err != nil {
		return nil, err
	}
	typeID := ""
	if experimentType != "" {
		t, ok := view.FindEntityTypeByCode(domain.KindExperiment, domain.NormalizeCode(experimentType))
		if !ok {
			return nil, domain.UserFailuref("Experiment type '%s' does not exist.", experimentType)
		}
		typeID = t.ID
	}
	return view.ListExperimentsByProject(p.ID, typeID), nil
}

func resolveProject(view domain.TransactionView, id domain.ProjectIdentifier) (domain.Project, error) {
	g, ok := view.FindGroupByCode(id.Group)
	if !ok {
		return domain.Project{}, domain.UserFailuref("Group '%s' does not exist.", id.Group)
	}
	p, ok := view.FindProjectByCode(g.ID, id.Project)
	if !ok {
		return domain.Project{}, domain.UserFailuref("Project '%s' does not exist.", id)
	}
	return p, nil
}

// GetExperiment returns an experiment with its attachments.
func (s *Service) GetExperiment(ctx context.Context, token, identifier string) (*api.Experiment, error) {
	var out *api.Experiment
	err := s.read(ctx, "get_experiment", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		if err := check[string](req, authz.ExperimentIdentifierPredicate(), authz.RoleSetObserver, identifier); err != nil {
			return err
		}
		e, err := findExperiment(view, identifier)
		if err != nil {
			return err
		}
		out = req.tr.Experiment(&e)
		return nil
	})
	return out, err
}

func findExperiment(view domain.TransactionView, identifier string) (domain.Experiment, error) {
	id, err := domain.ParseExperimentIdentifier(identifier)
	if err != nil {
		return domain.Experiment{}, err
	}
	p, err := resolveProject(view, id.ProjectIdentifier())
	if err != nil {
		return domain.Experiment{}, err
	}
	e, ok := view.FindExperimentByCode(p.ID, id.Experiment)
	if !ok {
		return domain.Experiment{}, domain.UserFailuref("Experiment '%s' does not exist.", id)
	}
	return e, nil
}

// RegisterExperiment creates an experiment with optional attachments.
func (s *Service) RegisterExperiment(ctx context.Context, token string, ne bo.NewExperiment, attachments []bo.NewAttachment) (*api.Experiment, error) {
	var out *api.Experiment
	err := s.operate(ctx, "register_experiment", token, authz.RoleSetUser, func(ctx context.Context, o *operation) error {
		if err := o.view(ctx, func(_ domain.TransactionView, req request) error {
			return check[bo.NewExperiment](req, authz.NewExperimentPredicate(), authz.RoleSetUser, ne)
		}); err != nil {
			return err
		}
		staged, err := o.stage(ctx, attachments)
		if err != nil {
			return err
		}
		return o.update(ctx, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
			if err := check[bo.NewExperiment](req, authz.NewExperimentPredicate(), authz.RoleSetUser, ne); err != nil {
				return err
			}
			ebo := bo.NewExperimentBO(tx, req.session)
			if err := ebo.Define(ne); err != nil {
				return err
			}
			if err := ebo.Save(); err != nil {
				return err
			}
			for _, st := range staged {
				if _, err := ebo.AddAttachment(st); err != nil {
					return err
				}
			}
			e, err := ebo.Experiment()
			if err != nil {
				return err
			}
			out = req.tr.Experiment(&e)
			fx.entityID = e.ID
			return nil
		})
	})
	return out, err
}

// UpdateExperiment edits properties and project of an experiment. The
// caller needs access to both the current and the new project.
func (s *Service) UpdateExperiment(ctx context.Context, token string, u bo.ExperimentUpdates) (*api.Experiment, error) {
	var out *api.Experiment
	err := s.write(ctx, "update_experiment", token, authz.RoleSetUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = u.ExperimentID
		e, ok := tx.FindExperiment(u.ExperimentID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordExperiment, ID: u.ExperimentID}
		}
		if err := checkExperiment(req, tx, e, authz.RoleSetUser); err != nil {
			return err
		}
		if u.ProjectIdentifier != "" {
			if err := check[string](req, authz.ProjectIdentifierPredicate(), authz.RoleSetUser, u.ProjectIdentifier); err != nil {
				return err
			}
		}
		ebo := bo.NewExperimentBO(tx, req.session)
		if err := ebo.Update(u); err != nil {
			return err
		}
		updated, err := ebo.Experiment()
		if err != nil {
			return err
		}
		out = req.tr.Experiment(&updated)
		return nil
	})
	return out, err
}

// DeleteExperiments removes experiments without samples or data sets.
func (s *Service) DeleteExperiments(ctx context.Context, token string, ids []string, reason string) error {
	return s.write(ctx, "delete_experiments", token, authz.RoleSetPowerUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = strings.Join(ids, ",")
		ebo := bo.NewExperimentBO(tx, req.session)
		for _, id := range ids {
			e, ok := tx.FindExperiment(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.RecordExperiment, ID: id}
			}
			if err := checkExperiment(req, tx, e, authz.RoleSetPowerUser); err != nil {
				return err
			}
			keys, err := ebo.DeleteByID(id, reason)
			if err != nil {
				return err
			}
			fx.obsolete = append(fx.obsolete, keys...)
		}
		return nil
	})
}

// ListSampleCriteria selects samples. With an experiment identifier the
// samples of that experiment are listed. Otherwise the group samples of
// GroupCode (every readable group when empty) are listed, plus the shared
// samples when IncludeShared is set.
type ListSampleCriteria struct {
	SampleType           string `json:"sample_type,omitempty"`
	GroupCode            string `json:"group_code,omitempty"`
	IncludeShared        bool   `json:"include_shared,omitempty"`
	ExperimentIdentifier string `json:"experiment_identifier,omitempty"`
}

// ListSamples returns the samples matching c that the caller may read.
func (s *Service) ListSamples(ctx context.Context, token string, c ListSampleCriteria) ([]api.Sample, error) {
	var out []api.Sample
	err := s.read(ctx, "list_samples", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		samples, err := selectSamples(view, req, c)
		if err != nil {
			return err
		}
		out = req.tr.Samples(samples)
		return nil
	})
	return out, err
}

func selectSamples(view domain.TransactionView, req request, c ListSampleCriteria) ([]domain.Sample, error) {
	typeID := ""
	if c.SampleType != "" {
		t, ok := view.FindEntityTypeByCode(domain.KindSample, domain.NormalizeCode(c.SampleType))
		if !ok {
			return nil, domain.UserFailuref("Sample type '%s' does not exist.", c.SampleType)
		}
		typeID = t.ID
	}
	byExperiment := c.ExperimentIdentifier != ""
	var candidates []domain.Sample
	switch {
	case byExperiment:
		if err := check[string](req, authz.ExperimentIdentifierPredicate(), authz.RoleSetObserver, c.ExperimentIdentifier); err != nil {
			return nil, err
		}
		e, err := findExperiment(view, c.ExperimentIdentifier)
		if err != nil {
			return nil, err
		}
		candidates = view.ListSamplesByExperiment(e.ID)
	case typeID != "":
		candidates = view.ListSamplesByType(typeID)
	default:
		candidates = view.ListSamples()
	}
	groupID := ""
	if c.GroupCode != "" && !byExperiment {
		g, ok := view.FindGroupByCode(domain.NormalizeCode(c.GroupCode))
		if !ok {
			return nil, domain.UserFailuref("Group '%s' does not exist.", c.GroupCode)
		}
		if err := checkGroup(req, view, g.ID, authz.RoleSetObserver); err != nil {
			return nil, err
		}
		groupID = g.ID
	}
	readable := readableGroups(req, view)
	var out []domain.Sample
	for _, smp := range candidates {
		switch {
		case typeID != "" && smp.TypeID != typeID:
		case smp.Shared():
			if byExperiment || c.IncludeShared {
				out = append(out, smp)
			}
		case !readable(*smp.GroupID):
		case groupID != "" && *smp.GroupID != groupID:
		default:
			out = append(out, smp)
		}
	}
	return out, nil
}

// GetSampleInfo returns a sample with its parents, containers and the
// samples derived from it.
func (s *Service) GetSampleInfo(ctx context.Context, token, sampleID string) (*api.SampleParentWithDerived, error) {
	var out *api.SampleParentWithDerived
	err := s.read(ctx, "get_sample_info", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		smp, ok := view.FindSample(sampleID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordSample, ID: sampleID}
		}
		if err := checkSample(req, view, smp, authz.RoleSetObserver); err != nil {
			return err
		}
		info, err := bo.GetSampleInfo(view, sampleID)
		if err != nil {
			return err
		}
		out = req.tr.SampleParentWithDerived(&info)
		return nil
	})
	return out, err
}

// TryGetSample returns the sample with the given identifier or nil.
func (s *Service) TryGetSample(ctx context.Context, token, identifier string) (*api.Sample, error) {
	var out *api.Sample
	err := s.read(ctx, "get_sample", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		if err := check[string](req, authz.SampleIdentifierPredicate(), authz.RoleSetObserver, identifier); err != nil {
			return err
		}
		id, err := domain.ParseSampleIdentifier(identifier)
		if err != nil {
			return err
		}
		var groupID *string
		if !id.Shared {
			code := id.Group
			if code == "" {
				code = req.principal.HomeGroupCode
			}
			g, ok := view.FindGroupByCode(domain.NormalizeCode(code))
			if !ok {
				return nil
			}
			groupID = &g.ID
		}
		if smp, ok := view.FindSampleByCode(groupID, domain.NormalizeCode(id.Code)); ok {
			out = req.tr.Sample(&smp)
		}
		return nil
	})
	return out, err
}

// RegisterSample creates a sample with optional attachments.
func (s *Service) RegisterSample(ctx context.Context, token string, ns bo.NewSample, attachments []bo.NewAttachment) (*api.Sample, error) {
	var out *api.Sample
	err := s.operate(ctx, "register_sample", token, authz.RoleSetUser, func(ctx context.Context, o *operation) error {
		if err := o.view(ctx, func(_ domain.TransactionView, req request) error {
			return check[bo.NewSample](req, authz.NewSamplePredicate(), authz.RoleSetUser, ns)
		}); err != nil {
			return err
		}
		staged, err := o.stage(ctx, attachments)
		if err != nil {
			return err
		}
		return o.update(ctx, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
			if err := check[bo.NewSample](req, authz.NewSamplePredicate(), authz.RoleSetUser, ns); err != nil {
				return err
			}
			sbo := bo.NewSampleBO(tx, req.session)
			if err := sbo.Define(ns); err != nil {
				return err
			}
			if err := sbo.Save(); err != nil {
				return err
			}
			for _, st := range staged {
				if _, err := sbo.AddAttachment(st); err != nil {
					return err
				}
			}
			smp, err := sbo.Sample()
			if err != nil {
				return err
			}
			out = req.tr.Sample(&smp)
			fx.entityID = smp.ID
			return nil
		})
	})
	return out, err
}

// RegisterSamples registers samples of one type in order. Either all of them
// are registered or none.
func (s *Service) RegisterSamples(ctx context.Context, token, sampleType string, samples []bo.NewSample) ([]api.Sample, error) {
	var out []api.Sample
	err := s.write(ctx, "register_samples", token, authz.RoleSetUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		for i := range samples {
			if samples[i].SampleType == "" {
				samples[i].SampleType = sampleType
			}
			if err := check[bo.NewSample](req, authz.NewSamplePredicate(), authz.RoleSetUser, samples[i]); err != nil {
				return err
			}
		}
		table := bo.NewSampleTable(tx, req.session)
		if err := table.Register(samples); err != nil {
			return err
		}
		registered := table.Samples()
		ids := make([]string, len(registered))
		for i, smp := range registered {
			ids[i] = smp.ID
		}
		fx.entityID = strings.Join(ids, ",")
		out = req.tr.Samples(registered)
		return nil
	})
	return out, err
}

// RegisterSamplesFromBatch parses a tab separated batch file and registers
// its samples.
func (s *Service) RegisterSamplesFromBatch(ctx context.Context, token, sampleType string, r io.Reader) ([]api.Sample, error) {
	samples, err := bo.ParseSampleBatch(r, sampleType)
	if err != nil {
		return nil, err
	}
	return s.RegisterSamples(ctx, token, sampleType, samples)
}

// UpdateSample edits a sample. Moving a sample to another owner needs
// access to the new owner as well.
func (s *Service) UpdateSample(ctx context.Context, token string, u bo.SampleUpdates) (*api.Sample, error) {
	var out *api.Sample
	err := s.write(ctx, "update_sample", token, authz.RoleSetUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = u.SampleID
		smp, ok := tx.FindSample(u.SampleID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordSample, ID: u.SampleID}
		}
		if err := checkSample(req, tx, smp, authz.RoleSetUser); err != nil {
			return err
		}
		if u.SampleIdentifier != "" {
			if err := check[string](req, authz.SampleIdentifierPredicate(), authz.RoleSetUser, u.SampleIdentifier); err != nil {
				return err
			}
		}
		if u.ExperimentIdentifier != "" {
			if err := check[string](req, authz.ExperimentIdentifierPredicate(), authz.RoleSetUser, u.ExperimentIdentifier); err != nil {
				return err
			}
		}
		sbo := bo.NewSampleBO(tx, req.session)
		if err := sbo.Update(u); err != nil {
			return err
		}
		updated, err := sbo.Sample()
		if err != nil {
			return err
		}
		out = req.tr.Sample(&updated)
		return nil
	})
	return out, err
}

// DeleteSamples removes samples without data sets or derived samples.
func (s *Service) DeleteSamples(ctx context.Context, token string, ids []string, reason string) error {
	return s.write(ctx, "delete_samples", token, authz.RoleSetPowerUser, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = strings.Join(ids, ",")
		sbo := bo.NewSampleBO(tx, req.session)
		for _, id := range ids {
			smp, ok := tx.FindSample(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.RecordSample, ID: id}
			}
			if err := checkSample(req, tx, smp, authz.RoleSetPowerUser); err != nil {
				return err
			}
			keys, err := sbo.DeleteByID(id, reason)
			if err != nil {
				return err
			}
			fx.obsolete = append(fx.obsolete, keys...)
		}
		return nil
	})
}

// ListMaterials returns the materials of one type.
func (s *Service) ListMaterials(ctx context.Context, token, materialType string) ([]api.Material, error) {
	var out []api.Material
	err := s.read(ctx, "list_materials", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		t, ok := view.FindEntityTypeByCode(domain.KindMaterial, domain.NormalizeCode(materialType))
		if !ok {
			return domain.UserFailuref("Material type '%s' does not exist.", materialType)
		}
		out = req.tr.Materials(view.ListMaterials(t.ID))
		return nil
	})
	return out, err
}

// RegisterMaterials creates materials of one type.
func (s *Service) RegisterMaterials(ctx context.Context, token, materialType string, materials []bo.NewMaterial) ([]api.Material, error) {
	var out []api.Material
	err := s.write(ctx, "register_materials", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		table := bo.NewMaterialTable(tx, req.session)
		if err := table.Register(materialType, materials); err != nil {
			return err
		}
		registered := table.Materials()
		ids := make([]string, len(registered))
		for i, m := range registered {
			ids[i] = m.ID
		}
		fx.entityID = strings.Join(ids, ",")
		out = req.tr.Materials(registered)
		return nil
	})
	return out, err
}

// DeleteMaterials removes materials no property refers to.
func (s *Service) DeleteMaterials(ctx context.Context, token string, ids []string, reason string) error {
	return s.write(ctx, "delete_materials", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = strings.Join(ids, ",")
		return bo.NewMaterialTable(tx, req.session).Delete(ids, reason)
	})
}
