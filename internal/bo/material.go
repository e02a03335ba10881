package bo

import (
	"openbis/pkg/domain"
)

// NewMaterial describes a material to register.
type NewMaterial struct {
	Code       string          `json:"code"`
	Properties []PropertyValue `json:"properties,omitempty"`
}

// MaterialTable registers and deletes materials of one type.
type MaterialTable struct {
	base
	converter *PropertiesConverter
	materials []domain.Material
}

// NewMaterialTable constructs a MaterialTable.
func NewMaterialTable(tx domain.Transaction, session Session) *MaterialTable {
	return &MaterialTable{
		base:      base{tx: tx, session: session},
		converter: NewPropertiesConverter(tx, domain.KindMaterial),
	}
}

// Register creates materials of materialType. Codes are unique per type,
// including within the batch.
func (t *MaterialTable) Register(materialType string, materials []NewMaterial) error {
	mt, err := t.findEntityType(domain.KindMaterial, materialType)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, nm := range materials {
		code := domain.NormalizeCode(nm.Code)
		if err := domain.ValidateCode(code); err != nil {
			return err
		}
		if _, exists := t.tx.FindMaterialByCode(mt.ID, code); exists || seen[code] {
			return domain.UserFailuref("Material '%s' already exists.", domain.MaterialIdentifier{Code: code, Type: mt.Code})
		}
		seen[code] = true
		props, err := t.converter.Convert(nm.Properties, mt.Code, t.registrator())
		if err != nil {
			return err
		}
		if err := t.converter.CheckMandatory(props, mt); err != nil {
			return err
		}
		created, err := t.tx.CreateMaterial(domain.Material{
			Code:          code,
			TypeID:        mt.ID,
			RegistratorID: t.registrator(),
			Properties:    props,
		})
		if err != nil {
			return err
		}
		t.materials = append(t.materials, created)
	}
	return nil
}

// Materials returns the materials registered by this table.
func (t *MaterialTable) Materials() []domain.Material {
	return append([]domain.Material(nil), t.materials...)
}

// Delete removes materials that no property refers to.
func (t *MaterialTable) Delete(ids []string, reason string) error {
	for _, id := range ids {
		m, ok := t.tx.FindMaterial(id)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordMaterial, ID: id}
		}
		identifier := domain.IdentifyMaterial(t.tx, m)
		for _, pt := range t.tx.ListPropertyTypes() {
			if pt.DataType == domain.DataMaterial && propertyInUse(t.tx, pt, identifier.String()) {
				return domain.UserFailuref("Material '%s' cannot be deleted because it is used by property '%s'.", identifier, pt.Code)
			}
		}
		if err := t.tx.DeleteMaterial(id); err != nil {
			return err
		}
		if err := t.deletionEvent(domain.RecordMaterial, identifier.String(), reason); err != nil {
			return err
		}
	}
	return nil
}
