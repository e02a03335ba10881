package translator

import (
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// EntityType translates an entity type, with its property type assignments
// when withAssignments is set.
func (t *Translator) EntityType(et *domain.EntityType, withAssignments bool) *api.EntityType {
	if et == nil {
		return nil
	}
	out := &api.EntityType{
		ID:                 et.ID,
		Kind:               string(et.Kind),
		Code:               escape(et.Code),
		Description:        escape(et.Description),
		Listable:           et.Listable,
		GeneratedFromDepth: et.GeneratedFromDepth,
		ContainerDepth:     et.ContainerDepth,
	}
	if withAssignments {
		for _, a := range t.view.ListAssignments(et.Kind, et.ID) {
			out.Assignments = append(out.Assignments, *t.Assignment(&a))
		}
	}
	return out
}

// EntityTypes translates a list of entity types.
func (t *Translator) EntityTypes(types []domain.EntityType, withAssignments bool) []api.EntityType {
	out := make([]api.EntityType, 0, len(types))
	for i := range types {
		out = append(out, *t.EntityType(&types[i], withAssignments))
	}
	return out
}

func (t *Translator) entityTypeByID(id string) *api.EntityType {
	et, ok := t.view.FindEntityType(id)
	if !ok {
		return nil
	}
	return t.EntityType(&et, false)
}

// Assignment translates an entity type / property type assignment.
func (t *Translator) Assignment(a *domain.Assignment) *api.EntityTypePropertyType {
	if a == nil {
		return nil
	}
	out := &api.EntityTypePropertyType{
		ID:           a.ID,
		PropertyType: t.propertyTypeByID(a.PropertyTypeID),
		Mandatory:    a.Mandatory,
		Ordinal:      a.Ordinal,
		Section:      escape(a.Section),
	}
	if et, ok := t.view.FindEntityType(a.EntityTypeID); ok {
		out.EntityTypeCode = escape(et.Code)
	}
	return out
}

// PropertyType translates a property type with its vocabulary or material type.
func (t *Translator) PropertyType(pt *domain.PropertyType) *api.PropertyType {
	if pt == nil {
		return nil
	}
	out := &api.PropertyType{
		ID:                pt.ID,
		Code:              escape(pt.Code),
		Label:             escape(pt.Label),
		Description:       escape(pt.Description),
		DataType:          string(pt.DataType),
		ManagedInternally: pt.ManagedInternally,
	}
	if pt.VocabularyID != nil {
		if v, ok := t.view.FindVocabulary(*pt.VocabularyID); ok {
			out.Vocabulary = t.Vocabulary(&v)
		}
	}
	if pt.MaterialTypeID != nil {
		out.MaterialType = t.entityTypeByID(*pt.MaterialTypeID)
	}
	return out
}

// PropertyTypes translates a list of property types.
func (t *Translator) PropertyTypes(pts []domain.PropertyType) []api.PropertyType {
	out := make([]api.PropertyType, 0, len(pts))
	for i := range pts {
		out = append(out, *t.PropertyType(&pts[i]))
	}
	return out
}

func (t *Translator) propertyTypeByID(id string) *api.PropertyType {
	if pt, ok := t.propertyTypes[id]; ok {
		return pt
	}
	pt, ok := t.view.FindPropertyType(id)
	if !ok {
		return nil
	}
	out := t.PropertyType(&pt)
	t.propertyTypes[id] = out
	return out
}

// Vocabulary translates a vocabulary with its terms.
func (t *Translator) Vocabulary(v *domain.Vocabulary) *api.Vocabulary {
	if v == nil {
		return nil
	}
	out := &api.Vocabulary{
		ID:                v.ID,
		Code:              escape(v.Code),
		Description:       escape(v.Description),
		ManagedInternally: v.ManagedInternally,
		Terms:             make([]api.VocabularyTerm, 0, len(v.Terms)),
	}
	for i := range v.Terms {
		out.Terms = append(out.Terms, *t.VocabularyTerm(&v.Terms[i]))
	}
	return out
}

// Vocabularies translates a list of vocabularies.
func (t *Translator) Vocabularies(vs []domain.Vocabulary) []api.Vocabulary {
	out := make([]api.Vocabulary, 0, len(vs))
	for i := range vs {
		out = append(out, *t.Vocabulary(&vs[i]))
	}
	return out
}

// VocabularyTerm translates a term.
func (t *Translator) VocabularyTerm(term *domain.VocabularyTerm) *api.VocabularyTerm {
	if term == nil {
		return nil
	}
	return &api.VocabularyTerm{
		Code:        escape(term.Code),
		Label:       escape(term.Label),
		Description: escape(term.Description),
		URL:         escape(term.URL),
		Ordinal:     term.Ordinal,
		Display:     escape(term.String()),
	}
}

// Properties translates entity properties. Controlled vocabulary values
// carry their term.
func (t *Translator) Properties(props []domain.EntityProperty) []api.Property {
	out := make([]api.Property, 0, len(props))
	for _, p := range props {
		prop := api.Property{Code: escape(p.PropertyTypeCode), Value: escape(p.Value)}
		if pt, ok := t.view.FindPropertyTypeByCode(p.PropertyTypeCode); ok {
			prop.Label = escape(pt.Label)
			prop.DataType = string(pt.DataType)
			if pt.DataType == domain.DataControlledVocabulary && pt.VocabularyID != nil {
				if v, ok := t.view.FindVocabulary(*pt.VocabularyID); ok {
					if term, ok := v.Term(p.Value); ok {
						prop.Term = t.VocabularyTerm(&term)
					}
				}
			}
		}
		out = append(out, prop)
	}
	return out
}
