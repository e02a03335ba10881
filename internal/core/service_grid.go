package core

import (
	"context"

	"openbis/internal/authz"
	"openbis/internal/grid"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// GridSource selects the rows of a grid. Kind picks which of the other
// fields apply: Samples for samples, ProjectIdentifier and ExperimentType
// for experiments, MaterialType for materials and DataSets for data sets.
type GridSource struct {
	Kind              domain.EntityKind  `json:"kind"`
	Samples           ListSampleCriteria `json:"samples,omitempty"`
	ProjectIdentifier string             `json:"project_identifier,omitempty"`
	ExperimentType    string             `json:"experiment_type,omitempty"`
	MaterialType      string             `json:"material_type,omitempty"`
	DataSets          DataSetHolder      `json:"data_sets,omitempty"`
}

// ExportRequest describes a TSV export of a grid.
type ExportRequest struct {
	Source        GridSource    `json:"source"`
	Criteria      grid.Criteria `json:"criteria"`
	LineSeparator string        `json:"line_separator,omitempty"`
}

func pageOf[T, D any](ctx context.Context, rows []T, columns []grid.ColumnDef[T], c grid.Criteria, translate func([]T) []D) (*api.ResultSet[D], error) {
	p, err := grid.Apply(ctx, rows, columns, c)
	if err != nil {
		return nil, err
	}
	return &api.ResultSet[D]{Rows: translate(p.Rows), TotalCount: p.TotalCount, Offset: p.Offset}, nil
}

// exportOf renders every matching row regardless of paging.
func exportOf[T any](ctx context.Context, rows []T, columns []grid.ColumnDef[T], c grid.Criteria, lineSeparator string) (string, error) {
	c.Offset, c.Limit = 0, 0
	p, err := grid.Apply(ctx, rows, columns, c)
	if err != nil {
		return "", err
	}
	return grid.RenderTSV(p.Rows, columns, lineSeparator), nil
}

func distinctTypeIDs[T any](rows []T, typeID func(T) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		if id := typeID(row); !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sampleGrid(view domain.TransactionView, req request, c ListSampleCriteria) ([]domain.Sample, []grid.ColumnDef[domain.Sample], error) {
	rows, err := selectSamples(view, req, c)
	if err != nil {
		return nil, nil, err
	}
	pts := grid.AssignedPropertyTypes(view, domain.KindSample, distinctTypeIDs(rows, func(s domain.Sample) string { return s.TypeID })...)
	return rows, grid.SampleColumns(view, pts), nil
}

func experimentGrid(view domain.TransactionView, req request, projectIdentifier, experimentType string) ([]domain.Experiment, []grid.ColumnDef[domain.Experiment], error) {
	if err := check[string](req, authz.ProjectIdentifierPredicate(), authz.RoleSetObserver, projectIdentifier); err != nil {
		return nil, nil, err
	}
	rows, err := listExperiments(view, projectIdentifier, experimentType)
	if err != nil {
		return nil, nil, err
	}
	pts := grid.AssignedPropertyTypes(view, domain.KindExperiment, distinctTypeIDs(rows, func(e domain.Experiment) string { return e.TypeID })...)
	return rows, grid.ExperimentColumns(view, pts), nil
}

func materialGrid(view domain.TransactionView, materialType string) ([]domain.Material, []grid.ColumnDef[domain.Material], error) {
	t, ok := view.FindEntityTypeByCode(domain.KindMaterial, domain.NormalizeCode(materialType))
	if !ok {
		return nil, nil, domain.UserFailuref("Material type '%s' does not exist.", materialType)
	}
	pts := grid.AssignedPropertyTypes(view, domain.KindMaterial, t.ID)
	return view.ListMaterials(t.ID), grid.MaterialColumns(view, pts), nil
}

func dataSetGrid(view domain.TransactionView, req request, holder DataSetHolder) ([]domain.DataSet, []grid.ColumnDef[domain.DataSet], error) {
	rows, err := holderDataSets(view, req, holder, authz.RoleSetObserver)
	if err != nil {
		return nil, nil, err
	}
	pts := grid.AssignedPropertyTypes(view, domain.KindDataSet, distinctTypeIDs(rows, func(d domain.DataSet) string { return d.TypeID })...)
	return rows, grid.DataSetColumns(view, pts), nil
}

// SampleGrid returns one page of samples.
func (s *Service) SampleGrid(ctx context.Context, token string, sc ListSampleCriteria, c grid.Criteria) (*api.ResultSet[api.Sample], error) {
	var out *api.ResultSet[api.Sample]
	err := s.read(ctx, "sample_grid", token, authz.RoleSetObserver, func(ctx context.Context, view domain.TransactionView, req request) error {
		rows, columns, err := sampleGrid(view, req, sc)
		if err != nil {
			return err
		}
		out, err = pageOf(ctx, rows, columns, c, req.tr.Samples)
		return err
	})
	return out, err
}

// ExperimentGrid returns one page of the experiments of a project.
func (s *Service) ExperimentGrid(ctx context.Context, token, projectIdentifier, experimentType string, c grid.Criteria) (*api.ResultSet[api.Experiment], error) {
	var out *api.ResultSet[api.Experiment]
	err := s.read(ctx, "experiment_grid", token, authz.RoleSetObserver, func(ctx context.Context, view domain.TransactionView, req request) error {
		rows, columns, err := experimentGrid(view, req, projectIdentifier, experimentType)
		if err != nil {
			return err
		}
		out, err = pageOf(ctx, rows, columns, c, req.tr.Experiments)
		return err
	})
	return out, err
}

// MaterialGrid returns one page of the materials of a type.
func (s *Service) MaterialGrid(ctx context.Context, token, materialType string, c grid.Criteria) (*api.ResultSet[api.Material], error) {
	var out *api.ResultSet[api.Material]
	err := s.read(ctx, "material_grid", token, authz.RoleSetObserver, func(ctx context.Context, view domain.TransactionView, req request) error {
		rows, columns, err := materialGrid(view, materialType)
		if err != nil {
			return err
		}
		out, err = pageOf(ctx, rows, columns, c, req.tr.Materials)
		return err
	})
	return out, err
}

// DataSetGrid returns one page of the data sets of a sample or experiment.
func (s *Service) DataSetGrid(ctx context.Context, token string, holder DataSetHolder, c grid.Criteria) (*api.ResultSet[api.DataSet], error) {
	var out *api.ResultSet[api.DataSet]
	err := s.read(ctx, "data_set_grid", token, authz.RoleSetObserver, func(ctx context.Context, view domain.TransactionView, req request) error {
		rows, columns, err := dataSetGrid(view, req, holder)
		if err != nil {
			return err
		}
		out, err = pageOf(ctx, rows, columns, c, req.tr.DataSets)
		return err
	})
	return out, err
}

// ExportTSV renders every row of a grid matching the criteria as tab
// separated values. The line separator defaults to "\n".
func (s *Service) ExportTSV(ctx context.Context, token string, r ExportRequest) (string, error) {
	sep := r.LineSeparator
	if sep == "" {
		sep = "\n"
	}
	var out string
	err := s.read(ctx, "export_tsv", token, authz.RoleSetObserver, func(ctx context.Context, view domain.TransactionView, req request) error {
		var err error
		switch r.Source.Kind {
		case domain.KindSample:
			rows, columns, gerr := sampleGrid(view, req, r.Source.Samples)
			if gerr != nil {
				return gerr
			}
			out, err = exportOf(ctx, rows, columns, r.Criteria, sep)
		case domain.KindExperiment:
			rows, columns, gerr := experimentGrid(view, req, r.Source.ProjectIdentifier, r.Source.ExperimentType)
			if gerr != nil {
				return gerr
			}
			out, err = exportOf(ctx, rows, columns, r.Criteria, sep)
		case domain.KindMaterial:
			rows, columns, gerr := materialGrid(view, r.Source.MaterialType)
			if gerr != nil {
				return gerr
			}
			out, err = exportOf(ctx, rows, columns, r.Criteria, sep)
		case domain.KindDataSet:
			rows, columns, gerr := dataSetGrid(view, req, r.Source.DataSets)
			if gerr != nil {
				return gerr
			}
			out, err = exportOf(ctx, rows, columns, r.Criteria, sep)
		default:
			return domain.UserFailuref("Cannot export entities of kind '%s'.", r.Source.Kind)
		}
		return err
	})
	return out, err
}
