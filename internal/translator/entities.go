package translator

import (
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// Experiment translates an experiment with its attachments.
func (t *Translator) Experiment(e *domain.Experiment) *api.Experiment {
	if e == nil {
		return nil
	}
	out := t.experiment(e)
	if atts := t.view.ListAttachments(domain.RecordExperiment, e.ID); len(atts) > 0 {
		out.Attachments = t.Attachments(atts)
	}
	return out
}

func (t *Translator) experiment(e *domain.Experiment) *api.Experiment {
	out := &api.Experiment{
		ID:               e.ID,
		Code:             escape(e.Code),
		Identifier:       escape(domain.IdentifyExperiment(t.view, *e).String()),
		PermID:           e.PermID,
		ExperimentType:   t.entityTypeByID(e.TypeID),
		Registrator:      t.personByID(e.RegistratorID),
		RegistrationDate: e.CreatedAt,
		ModificationDate: e.UpdatedAt,
		Properties:       t.Properties(e.Properties),
	}
	if p, ok := t.view.FindProject(e.ProjectID); ok {
		out.Project = t.Project(&p)
	}
	return out
}

// Experiments translates a list of experiments without their attachments.
func (t *Translator) Experiments(es []domain.Experiment) []api.Experiment {
	out := make([]api.Experiment, 0, len(es))
	for i := range es {
		out = append(out, *t.experiment(&es[i]))
	}
	return out
}

// Sample translates a sample with its references. The generated-from
// parent and the container are translated without references of their own.
func (t *Translator) Sample(s *domain.Sample) *api.Sample {
	if s == nil {
		return nil
	}
	out := t.shallowSample(s)
	if s.ExperimentID != nil {
		if e, ok := t.view.FindExperiment(*s.ExperimentID); ok {
			out.Experiment = t.experiment(&e)
		}
	}
	out.GeneratedFrom = t.sampleRef(s.GeneratedFromID)
	out.Container = t.sampleRef(s.ContainerID)
	return out
}

func (t *Translator) shallowSample(s *domain.Sample) *api.Sample {
	out := &api.Sample{
		ID:               s.ID,
		Code:             escape(s.Code),
		Identifier:       escape(domain.IdentifySample(t.view, *s).String()),
		PermID:           s.PermID,
		SampleType:       t.entityTypeByID(s.TypeID),
		Group:            t.groupByID(s.GroupID),
		Registrator:      t.personByID(s.RegistratorID),
		RegistrationDate: s.CreatedAt,
		ModificationDate: s.UpdatedAt,
		Properties:       t.Properties(s.Properties),
	}
	if s.GroupID == nil {
		out.Instance = t.instanceByID(s.InstanceID)
	}
	return out
}

func (t *Translator) sampleRef(id *string) *api.Sample {
	if id == nil {
		return nil
	}
	s, ok := t.view.FindSample(*id)
	if !ok {
		return nil
	}
	return t.shallowSample(&s)
}

// Samples translates a list of samples.
func (t *Translator) Samples(samples []domain.Sample) []api.Sample {
	out := make([]api.Sample, 0, len(samples))
	for i := range samples {
		out = append(out, *t.Sample(&samples[i]))
	}
	return out
}

// Material translates a material.
func (t *Translator) Material(m *domain.Material) *api.Material {
	if m == nil {
		return nil
	}
	return &api.Material{
		ID:               m.ID,
		Code:             escape(m.Code),
		Identifier:       escape(domain.IdentifyMaterial(t.view, *m).String()),
		MaterialType:     t.entityTypeByID(m.TypeID),
		Registrator:      t.personByID(m.RegistratorID),
		RegistrationDate: m.CreatedAt,
		ModificationDate: m.UpdatedAt,
		Properties:       t.Properties(m.Properties),
	}
}

// Materials translates a list of materials.
func (t *Translator) Materials(ms []domain.Material) []api.Material {
	out := make([]api.Material, 0, len(ms))
	for i := range ms {
		out = append(out, *t.Material(&ms[i]))
	}
	return out
}

// DataStore translates a data store. The session token is not exposed.
func (t *Translator) DataStore(ds *domain.DataStore) *api.DataStore {
	if ds == nil {
		return nil
	}
	return &api.DataStore{
		ID:          ds.ID,
		Code:        escape(ds.Code),
		DownloadURL: escape(ds.DownloadURL),
		RemoteURL:   escape(ds.RemoteURL),
	}
}

// DataStores translates a list of data stores.
func (t *Translator) DataStores(dss []domain.DataStore) []api.DataStore {
	out := make([]api.DataStore, 0, len(dss))
	for i := range dss {
		out = append(out, *t.DataStore(&dss[i]))
	}
	return out
}

// DataSet translates a data set.
func (t *Translator) DataSet(ds *domain.DataSet) *api.DataSet {
	if ds == nil {
		return nil
	}
	out := &api.DataSet{
		ID:               ds.ID,
		Code:             escape(ds.Code),
		DataSetType:      t.entityTypeByID(ds.TypeID),
		Location:         escape(ds.Location),
		Registrator:      t.personByID(ds.RegistratorID),
		RegistrationDate: ds.CreatedAt,
		Properties:       t.Properties(ds.Properties),
	}
	if e, ok := t.view.FindExperiment(ds.ExperimentID); ok {
		out.ExperimentIdentifier = escape(domain.IdentifyExperiment(t.view, e).String())
	}
	if ds.SampleID != nil {
		if s, ok := t.view.FindSample(*ds.SampleID); ok {
			out.SampleIdentifier = escape(domain.IdentifySample(t.view, s).String())
		}
	}
	if store, ok := t.view.FindDataStore(ds.DataStoreID); ok {
		out.DataStore = t.DataStore(&store)
	}
	for _, id := range ds.ParentIDs {
		if parent, ok := t.view.FindDataSet(id); ok {
			out.ParentCodes = append(out.ParentCodes, escape(parent.Code))
		}
	}
	return out
}

// DataSets translates a list of data sets.
func (t *Translator) DataSets(dss []domain.DataSet) []api.DataSet {
	out := make([]api.DataSet, 0, len(dss))
	for i := range dss {
		out = append(out, *t.DataSet(&dss[i]))
	}
	return out
}

// Attachment translates attachment metadata.
func (t *Translator) Attachment(a *domain.Attachment) *api.Attachment {
	if a == nil {
		return nil
	}
	return &api.Attachment{
		ID:               a.ID,
		HolderKind:       string(a.HolderKind),
		HolderID:         a.HolderID,
		FileName:         escape(a.FileName),
		Version:          a.Version,
		Title:            escape(a.Title),
		Description:      escape(a.Description),
		Size:             a.Size,
		Registrator:      t.personByID(a.RegistratorID),
		RegistrationDate: a.CreatedAt,
	}
}

// Attachments translates a list of attachments.
func (t *Translator) Attachments(as []domain.Attachment) []api.Attachment {
	out := make([]api.Attachment, 0, len(as))
	for i := range as {
		out = append(out, *t.Attachment(&as[i]))
	}
	return out
}

// Event translates an event.
func (t *Translator) Event(e *domain.Event) *api.Event {
	if e == nil {
		return nil
	}
	return &api.Event{
		ID:          e.ID,
		Type:        string(e.Type),
		Kind:        string(e.Kind),
		Identifier:  escape(e.Identifier),
		Reason:      escape(e.Reason),
		Registrator: t.personByID(e.RegistratorID),
		Date:        e.CreatedAt,
	}
}

// Events translates a list of events.
func (t *Translator) Events(es []domain.Event) []api.Event {
	out := make([]api.Event, 0, len(es))
	for i := range es {
		out = append(out, *t.Event(&es[i]))
	}
	return out
}
