package bo

import (
	"openbis/pkg/domain"
)

// propertyHolder is an entity of any kind seen through its properties.
type propertyHolder struct {
	id         string
	properties []domain.EntityProperty
}

func listHolders(view domain.TransactionView, kind domain.EntityKind, typeID string) []propertyHolder {
	var out []propertyHolder
	switch kind {
	case domain.KindExperiment:
		for _, e := range view.ListExperimentsByType(typeID) {
			out = append(out, propertyHolder{id: e.ID, properties: e.Properties})
		}
	case domain.KindSample:
		for _, s := range view.ListSamplesByType(typeID) {
			out = append(out, propertyHolder{id: s.ID, properties: s.Properties})
		}
	case domain.KindMaterial:
		for _, m := range view.ListMaterials(typeID) {
			out = append(out, propertyHolder{id: m.ID, properties: m.Properties})
		}
	case domain.KindDataSet:
		for _, d := range view.ListDataSetsByType(typeID) {
			out = append(out, propertyHolder{id: d.ID, properties: d.Properties})
		}
	}
	return out
}

// listHoldersWithoutValue returns the entities of the type lacking a value
// for the property type code.
func listHoldersWithoutValue(view domain.TransactionView, kind domain.EntityKind, typeID, propertyCode string) []propertyHolder {
	var out []propertyHolder
	for _, h := range listHolders(view, kind, typeID) {
		if v, ok := domain.PropertyValue(h.properties, propertyCode); !ok || v == "" {
			out = append(out, h)
		}
	}
	return out
}

func updateHolderProperties(tx domain.Transaction, kind domain.EntityKind, id string, fn func([]domain.EntityProperty) []domain.EntityProperty) error {
	var err error
	switch kind {
	case domain.KindExperiment:
		_, err = tx.UpdateExperiment(id, func(e *domain.Experiment) error { e.Properties = fn(e.Properties); return nil })
	case domain.KindSample:
		_, err = tx.UpdateSample(id, func(s *domain.Sample) error { s.Properties = fn(s.Properties); return nil })
	case domain.KindMaterial:
		_, err = tx.UpdateMaterial(id, func(m *domain.Material) error { m.Properties = fn(m.Properties); return nil })
	case domain.KindDataSet:
		_, err = tx.UpdateDataSet(id, func(d *domain.DataSet) error { d.Properties = fn(d.Properties); return nil })
	}
	return err
}

// propertyInUse reports whether any entity holds value for the property type.
func propertyInUse(view domain.TransactionView, pt domain.PropertyType, value string) bool {
	for _, a := range view.ListAssignmentsByPropertyType(pt.ID) {
		for _, h := range listHolders(view, a.Kind, a.EntityTypeID) {
			if v, ok := domain.PropertyValue(h.properties, pt.Code); ok && (value == "" || v == value) {
				return true
			}
		}
	}
	return false
}
