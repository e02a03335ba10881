package grid

import (
	"strings"
	"time"

	"openbis/pkg/domain"
)

// Column identifiers shared by several column sets.
const (
	ColCode             = "CODE"
	ColDescription      = "DESCRIPTION"
	ColRegistrator      = "REGISTRATOR"
	ColRegistrationDate = "REGISTRATION_DATE"
	ColPermID           = "PERM_ID"
	// PropertyColumnPrefix starts the identifier of a property column.
	PropertyColumnPrefix = "property-"
)

const dateLayout = "2006-01-02 15:04:05"

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func registratorColumn[T any](view domain.TransactionView, id func(T) string) ColumnDef[T] {
	return ColumnDef[T]{Identifier: ColRegistrator, Header: "Registrator", Value: func(row T) string {
		if p, ok := view.FindPerson(id(row)); ok {
			return p.UserID
		}
		return ""
	}}
}

func entityTypeCode(view domain.TransactionView, id string) string {
	if t, ok := view.FindEntityType(id); ok {
		return t.Code
	}
	return ""
}

// PropertyColumns returns one column per property type, headed by its label.
func PropertyColumns[T any](propertyTypes []domain.PropertyType, props func(T) []domain.EntityProperty) []ColumnDef[T] {
	out := make([]ColumnDef[T], 0, len(propertyTypes))
	for _, pt := range propertyTypes {
		code := pt.Code
		out = append(out, ColumnDef[T]{
			Identifier: PropertyColumnPrefix + code,
			Header:     pt.Label,
			Value: func(row T) string {
				v, _ := domain.PropertyValue(props(row), code)
				return v
			},
		})
	}
	return out
}

// AssignedPropertyTypes collects the property types assigned to any of the
// given entity types, in assignment order and without duplicates.
func AssignedPropertyTypes(view domain.TransactionView, kind domain.EntityKind, typeIDs ...string) []domain.PropertyType {
	var out []domain.PropertyType
	seen := make(map[string]bool)
	for _, typeID := range typeIDs {
		for _, a := range view.ListAssignments(kind, typeID) {
			if seen[a.PropertyTypeID] {
				continue
			}
			if pt, ok := view.FindPropertyType(a.PropertyTypeID); ok {
				seen[pt.ID] = true
				out = append(out, pt)
			}
		}
	}
	return out
}

// EntityTypeColumns lists entity types.
func EntityTypeColumns() []ColumnDef[domain.EntityType] {
	return []ColumnDef[domain.EntityType]{
		{Identifier: ColCode, Header: "Code", Value: func(t domain.EntityType) string { return t.Code }},
		{Identifier: ColDescription, Header: "Description", Value: func(t domain.EntityType) string { return t.Description }},
	}
}

// SampleColumns lists samples, followed by one column per property type.
func SampleColumns(view domain.TransactionView, propertyTypes []domain.PropertyType) []ColumnDef[domain.Sample] {
	sampleRef := func(id *string) string {
		if id == nil {
			return ""
		}
		if s, ok := view.FindSample(*id); ok {
			return domain.IdentifySample(view, s).String()
		}
		return ""
	}
	experiment := func(s domain.Sample) (domain.Experiment, bool) {
		if s.ExperimentID == nil {
			return domain.Experiment{}, false
		}
		return view.FindExperiment(*s.ExperimentID)
	}
	cols := []ColumnDef[domain.Sample]{
		{Identifier: ColCode, Header: "Code", Value: func(s domain.Sample) string { return s.Code }},
		{Identifier: "SAMPLE_IDENTIFIER", Header: "Identifier", Value: func(s domain.Sample) string {
			return domain.IdentifySample(view, s).String()
		}},
		{Identifier: "SAMPLE_TYPE", Header: "Sample Type", Value: func(s domain.Sample) string { return entityTypeCode(view, s.TypeID) }},
		{Identifier: "GROUP", Header: "Group", Value: func(s domain.Sample) string {
			if s.GroupID == nil {
				return ""
			}
			if g, ok := view.FindGroup(*s.GroupID); ok {
				return g.Code
			}
			return ""
		}},
		{Identifier: "IS_INSTANCE_SAMPLE", Header: "Shared?", Value: func(s domain.Sample) string { return yesNo(s.Shared()) }},
		{Identifier: "EXPERIMENT", Header: "Experiment", Value: func(s domain.Sample) string {
			if e, ok := experiment(s); ok {
				return e.Code
			}
			return ""
		}},
		{Identifier: "EXPERIMENT_IDENTIFIER", Header: "Experiment Identifier", Value: func(s domain.Sample) string {
			if e, ok := experiment(s); ok {
				return domain.IdentifyExperiment(view, e).String()
			}
			return ""
		}},
		{Identifier: "GENERATED_FROM_PARENT", Header: "Parent", Value: func(s domain.Sample) string { return sampleRef(s.GeneratedFromID) }},
		{Identifier: "CONTAINER", Header: "Container", Value: func(s domain.Sample) string { return sampleRef(s.ContainerID) }},
		registratorColumn(view, func(s domain.Sample) string { return s.RegistratorID }),
		{Identifier: ColRegistrationDate, Header: "Registration Date", Value: func(s domain.Sample) string { return formatDate(s.CreatedAt) }},
		{Identifier: ColPermID, Header: "Perm ID", Value: func(s domain.Sample) string { return s.PermID }},
	}
	return append(cols, PropertyColumns(propertyTypes, func(s domain.Sample) []domain.EntityProperty { return s.Properties })...)
}

// ExperimentColumns lists experiments, followed by one column per property type.
func ExperimentColumns(view domain.TransactionView, propertyTypes []domain.PropertyType) []ColumnDef[domain.Experiment] {
	project := func(e domain.Experiment) (domain.Project, bool) { return view.FindProject(e.ProjectID) }
	cols := []ColumnDef[domain.Experiment]{
		{Identifier: ColCode, Header: "Code", Value: func(e domain.Experiment) string { return e.Code }},
		{Identifier: "EXPERIMENT_IDENTIFIER", Header: "Identifier", Value: func(e domain.Experiment) string {
			return domain.IdentifyExperiment(view, e).String()
		}},
		{Identifier: "EXPERIMENT_TYPE", Header: "Experiment Type", Value: func(e domain.Experiment) string { return entityTypeCode(view, e.TypeID) }},
		{Identifier: "PROJECT", Header: "Project", Value: func(e domain.Experiment) string {
			if p, ok := project(e); ok {
				return p.Code
			}
			return ""
		}},
		{Identifier: "GROUP", Header: "Group", Value: func(e domain.Experiment) string {
			if p, ok := project(e); ok {
				if g, ok := view.FindGroup(p.GroupID); ok {
					return g.Code
				}
			}
			return ""
		}},
		registratorColumn(view, func(e domain.Experiment) string { return e.RegistratorID }),
		{Identifier: ColRegistrationDate, Header: "Registration Date", Value: func(e domain.Experiment) string { return formatDate(e.CreatedAt) }},
		{Identifier: ColPermID, Header: "Perm ID", Value: func(e domain.Experiment) string { return e.PermID }},
	}
	return append(cols, PropertyColumns(propertyTypes, func(e domain.Experiment) []domain.EntityProperty { return e.Properties })...)
}

// MaterialColumns lists materials, followed by one column per property type.
func MaterialColumns(view domain.TransactionView, propertyTypes []domain.PropertyType) []ColumnDef[domain.Material] {
	cols := []ColumnDef[domain.Material]{
		{Identifier: ColCode, Header: "Code", Value: func(m domain.Material) string { return m.Code }},
		{Identifier: "MATERIAL_TYPE", Header: "Material Type", Value: func(m domain.Material) string { return entityTypeCode(view, m.TypeID) }},
		registratorColumn(view, func(m domain.Material) string { return m.RegistratorID }),
		{Identifier: ColRegistrationDate, Header: "Registration Date", Value: func(m domain.Material) string { return formatDate(m.CreatedAt) }},
	}
	return append(cols, PropertyColumns(propertyTypes, func(m domain.Material) []domain.EntityProperty { return m.Properties })...)
}

// DataSetColumns lists data sets, followed by one column per property type.
func DataSetColumns(view domain.TransactionView, propertyTypes []domain.PropertyType) []ColumnDef[domain.DataSet] {
	cols := []ColumnDef[domain.DataSet]{
		{Identifier: ColCode, Header: "Code", Value: func(d domain.DataSet) string { return d.Code }},
		{Identifier: "DATA_SET_TYPE", Header: "Data Set Type", Value: func(d domain.DataSet) string { return entityTypeCode(view, d.TypeID) }},
		{Identifier: "EXPERIMENT_IDENTIFIER", Header: "Experiment", Value: func(d domain.DataSet) string {
			if e, ok := view.FindExperiment(d.ExperimentID); ok {
				return domain.IdentifyExperiment(view, e).String()
			}
			return ""
		}},
		{Identifier: "SAMPLE_IDENTIFIER", Header: "Sample", Value: func(d domain.DataSet) string {
			if d.SampleID == nil {
				return ""
			}
			if s, ok := view.FindSample(*d.SampleID); ok {
				return domain.IdentifySample(view, s).String()
			}
			return ""
		}},
		{Identifier: "DATA_STORE_CODE", Header: "Data Store", Value: func(d domain.DataSet) string {
			if ds, ok := view.FindDataStore(d.DataStoreID); ok {
				return ds.Code
			}
			return ""
		}},
		{Identifier: "LOCATION", Header: "Location", Value: func(d domain.DataSet) string { return d.Location }},
		{Identifier: "PARENTS", Header: "Parents", Value: func(d domain.DataSet) string {
			codes := make([]string, 0, len(d.ParentIDs))
			for _, id := range d.ParentIDs {
				if p, ok := view.FindDataSet(id); ok {
					codes = append(codes, p.Code)
				}
			}
			return strings.Join(codes, ", ")
		}},
		registratorColumn(view, func(d domain.DataSet) string { return d.RegistratorID }),
		{Identifier: ColRegistrationDate, Header: "Registration Date", Value: func(d domain.DataSet) string { return formatDate(d.CreatedAt) }},
	}
	return append(cols, PropertyColumns(propertyTypes, func(d domain.DataSet) []domain.EntityProperty { return d.Properties })...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
