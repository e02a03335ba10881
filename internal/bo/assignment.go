package bo

import (
	"openbis/pkg/domain"
)

// EntityTypePropertyTypeBO assigns property types to entity types of one kind.
type EntityTypePropertyTypeBO struct {
	base
	kind       domain.EntityKind
	converter  *PropertiesConverter
	assignment *domain.Assignment
}

// NewEntityTypePropertyTypeBO constructs a business object for kind.
func NewEntityTypePropertyTypeBO(tx domain.Transaction, session Session, kind domain.EntityKind) *EntityTypePropertyTypeBO {
	return &EntityTypePropertyTypeBO{
		base:      base{tx: tx, session: session},
		kind:      kind,
		converter: NewPropertiesConverter(tx, kind),
	}
}

// LoadedAssignment returns the loaded assignment.
func (b *EntityTypePropertyTypeBO) LoadedAssignment() (domain.Assignment, error) {
	if b.assignment == nil {
		return domain.Assignment{}, domain.UserFailuref("No assignment loaded.")
	}
	return *b.assignment, nil
}

// LoadAssignment loads the assignment of the property type to the entity
// type. A missing assignment leaves nothing loaded.
func (b *EntityTypePropertyTypeBO) LoadAssignment(propertyTypeCode, entityTypeCode string) error {
	entityType, err := b.findEntityType(b.kind, entityTypeCode)
	if err != nil {
		return err
	}
	propertyType, err := b.findPropertyType(propertyTypeCode)
	if err != nil {
		return err
	}
	b.assignment = nil
	if a, ok := b.tx.FindAssignmentFor(b.kind, entityType.ID, propertyType.ID); ok {
		b.assignment = &a
	}
	return nil
}

// CreateAssignment assigns the property type to the entity type. A
// mandatory assignment needs defaultValue when entities of the type exist;
// a non-empty defaultValue is stored on every existing entity.
func (b *EntityTypePropertyTypeBO) CreateAssignment(propertyTypeCode, entityTypeCode string, mandatory bool, defaultValue string) error {
	entityType, err := b.findEntityType(b.kind, entityTypeCode)
	if err != nil {
		return err
	}
	propertyType, err := b.findPropertyType(propertyTypeCode)
	if err != nil {
		return err
	}
	if _, exists := b.tx.FindAssignmentFor(b.kind, entityType.ID, propertyType.ID); exists {
		return b.alreadyAssigned(entityType, propertyType)
	}
	ordinal := len(b.tx.ListAssignments(b.kind, entityType.ID)) + 1
	created, err := b.tx.CreateAssignment(domain.Assignment{
		Kind:           b.kind,
		EntityTypeID:   entityType.ID,
		PropertyTypeID: propertyType.ID,
		Mandatory:      mandatory,
		Ordinal:        ordinal,
		RegistratorID:  b.registrator(),
	})
	if err != nil {
		return err
	}
	b.assignment = &created
	if !mandatory && defaultValue == "" {
		return nil
	}
	const template = "Cannot create mandatory assignment. " +
		"Please specify 'Initial Value', which will be used for %d %s%s " +
		"of type '%s' already existing in the database."
	holders := listHolders(b.tx, b.kind, entityType.ID)
	return b.addPropertyWithDefaultValue(entityType, propertyType, defaultValue, holders, template)
}

// UpdateLoadedAssignment changes the mandatory flag. Switching to mandatory
// fills defaultValue into entities without a value.
func (b *EntityTypePropertyTypeBO) UpdateLoadedAssignment(mandatory bool, defaultValue string) error {
	current, err := b.LoadedAssignment()
	if err != nil {
		return err
	}
	updated, err := b.tx.UpdateAssignment(current.ID, func(a *domain.Assignment) error {
		a.Mandatory = mandatory
		return nil
	})
	if err != nil {
		return err
	}
	b.assignment = &updated
	if !mandatory {
		return nil
	}
	entityType, ok := b.tx.FindEntityType(updated.EntityTypeID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.RecordEntityType, ID: updated.EntityTypeID}
	}
	propertyType, ok := b.tx.FindPropertyType(updated.PropertyTypeID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.RecordPropertyType, ID: updated.PropertyTypeID}
	}
	const template = "Cannot change assignment to mandatory. " +
		"Please specify 'Update Value', which will be used for %d %s%s " +
		"of type '%s' already existing in the database " +
		"without any value for this property."
	holders := listHoldersWithoutValue(b.tx, b.kind, entityType.ID, propertyType.Code)
	return b.addPropertyWithDefaultValue(entityType, propertyType, defaultValue, holders, template)
}

// DeleteLoadedAssignment removes the loaded assignment and the property
// values it carried. Without a loaded assignment nothing happens.
func (b *EntityTypePropertyTypeBO) DeleteLoadedAssignment() error {
	if b.assignment == nil {
		return nil
	}
	a := *b.assignment
	if pt, ok := b.tx.FindPropertyType(a.PropertyTypeID); ok {
		for _, h := range listHolders(b.tx, b.kind, a.EntityTypeID) {
			if _, has := domain.PropertyValue(h.properties, pt.Code); !has {
				continue
			}
			if err := updateHolderProperties(b.tx, b.kind, h.id, func(props []domain.EntityProperty) []domain.EntityProperty {
				return domain.RemoveProperty(props, pt.Code)
			}); err != nil {
				return err
			}
		}
	}
	if err := b.tx.DeleteAssignment(a.ID); err != nil {
		return err
	}
	b.assignment = nil
	return nil
}

func (b *EntityTypePropertyTypeBO) addPropertyWithDefaultValue(entityType domain.EntityType, propertyType domain.PropertyType,
	defaultValue string, holders []propertyHolder, template string) error {
	if len(holders) > 0 && defaultValue == "" {
		return domain.UserFailuref(template, len(holders), b.kind.Label(), plural(len(holders)), entityType.Code)
	}
	if defaultValue != "" {
		if _, err := b.converter.ValidateValue(propertyType, defaultValue); err != nil {
			return err
		}
	}
	for _, h := range holders {
		prop, err := b.converter.CreateProperty(propertyType, *b.assignment, b.registrator(), defaultValue)
		if err != nil {
			return err
		}
		if prop == nil {
			continue
		}
		if err := updateHolderProperties(b.tx, b.kind, h.id, func(props []domain.EntityProperty) []domain.EntityProperty {
			return domain.SetProperty(props, *prop)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *EntityTypePropertyTypeBO) findPropertyType(code string) (domain.PropertyType, error) {
	pt, ok := b.tx.FindPropertyTypeByCode(domain.NormalizeCode(code))
	if !ok {
		return domain.PropertyType{}, domain.UserFailuref("Property type '%s' does not exist.", code)
	}
	if pt.ManagedInternally {
		return domain.PropertyType{}, domain.UserFailuref("Property type '%s' is managed internally.", code)
	}
	return pt, nil
}

func (b *EntityTypePropertyTypeBO) alreadyAssigned(entityType domain.EntityType, propertyType domain.PropertyType) error {
	return domain.UserFailuref("Property type '%s' is already assigned to %s type '%s'.",
		propertyType.Code, b.kind.Label(), entityType.Code)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
