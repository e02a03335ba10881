package bo

import (
	"strings"

	"openbis/pkg/domain"
)

// managedInternallyPrefix marks property type codes owned by the server.
const managedInternallyPrefix = "$"

// NewPropertyType describes a property type to register.
type NewPropertyType struct {
	Code           string              `json:"code"`
	Label          string              `json:"label"`
	Description    string              `json:"description,omitempty"`
	DataType       domain.DataTypeCode `json:"data_type"`
	VocabularyCode string              `json:"vocabulary_code,omitempty"`
	MaterialType   string              `json:"material_type,omitempty"`
}

// PropertyTypeBO registers, edits and deletes property types.
type PropertyTypeBO struct {
	base
}

// NewPropertyTypeBO constructs a PropertyTypeBO.
func NewPropertyTypeBO(tx domain.Transaction, session Session) *PropertyTypeBO {
	return &PropertyTypeBO{base: base{tx: tx, session: session}}
}

// Register creates a property type. Codes starting with "$" are managed
// internally.
func (b *PropertyTypeBO) Register(np NewPropertyType) (domain.PropertyType, error) {
	code := domain.NormalizeCode(np.Code)
	internal := strings.HasPrefix(code, managedInternallyPrefix)
	if err := domain.ValidateCode(strings.TrimPrefix(code, managedInternallyPrefix)); err != nil {
		return domain.PropertyType{}, err
	}
	if _, exists := b.tx.FindPropertyTypeByCode(code); exists {
		return domain.PropertyType{}, domain.UserFailuref("Property type '%s' already exists.", code)
	}
	if strings.TrimSpace(np.Label) == "" {
		return domain.PropertyType{}, domain.UserFailuref("Label of property type '%s' not specified.", code)
	}
	dataType := domain.DataTypeCode(strings.ToUpper(string(np.DataType)))
	if !dataType.Valid() {
		names := make([]string, len(domain.DataTypes))
		for i, dt := range domain.DataTypes {
			names[i] = string(dt)
		}
		return domain.PropertyType{}, domain.UserFailuref("Unknown data type '%s'.%s", np.DataType, didYouMean(string(dataType), names))
	}
	pt := domain.PropertyType{
		Code:              code,
		Label:             np.Label,
		Description:       np.Description,
		DataType:          dataType,
		ManagedInternally: internal,
		RegistratorID:     b.registrator(),
	}
	switch dataType {
	case domain.DataControlledVocabulary:
		if np.VocabularyCode == "" {
			return domain.PropertyType{}, domain.UserFailuref("Vocabulary must be specified for data type '%s'.", dataType)
		}
		v, ok := b.tx.FindVocabularyByCode(domain.NormalizeCode(np.VocabularyCode))
		if !ok {
			return domain.PropertyType{}, domain.UserFailuref("Vocabulary '%s' does not exist.", np.VocabularyCode)
		}
		pt.VocabularyID = &v.ID
	case domain.DataMaterial:
		if np.MaterialType != "" {
			mt, err := b.findEntityType(domain.KindMaterial, np.MaterialType)
			if err != nil {
				return domain.PropertyType{}, err
			}
			pt.MaterialTypeID = &mt.ID
		}
	}
	return b.tx.CreatePropertyType(pt)
}

// Update changes label and description of a property type.
func (b *PropertyTypeBO) Update(code, label, description string) (domain.PropertyType, error) {
	pt, err := b.load(code)
	if err != nil {
		return domain.PropertyType{}, err
	}
	if strings.TrimSpace(label) == "" {
		return domain.PropertyType{}, domain.UserFailuref("Label of property type '%s' not specified.", pt.Code)
	}
	return b.tx.UpdatePropertyType(pt.ID, func(p *domain.PropertyType) error {
		p.Label = label
		p.Description = description
		return nil
	})
}

// Delete removes a property type that is not assigned to any entity type.
func (b *PropertyTypeBO) Delete(code string) error {
	pt, err := b.load(code)
	if err != nil {
		return err
	}
	if n := len(b.tx.ListAssignmentsByPropertyType(pt.ID)); n > 0 {
		return domain.UserFailuref("Property type '%s' cannot be deleted because it is assigned to %d entity type%s.", pt.Code, n, plural(n))
	}
	return b.tx.DeletePropertyType(pt.ID)
}

func (b *PropertyTypeBO) load(code string) (domain.PropertyType, error) {
	pt, ok := b.tx.FindPropertyTypeByCode(domain.NormalizeCode(code))
	if !ok {
		return domain.PropertyType{}, domain.UserFailuref("Property type '%s' does not exist.", code)
	}
	if pt.ManagedInternally {
		return domain.PropertyType{}, domain.UserFailuref("Property type '%s' is managed internally.", pt.Code)
	}
	return pt, nil
}
