package bo

import (
	"openbis/pkg/domain"
)

// NewEntityType describes an entity type to register.
type NewEntityType struct {
	Code               string `json:"code"`
	Description        string `json:"description,omitempty"`
	Listable           bool   `json:"listable"`
	GeneratedFromDepth int    `json:"generated_from_depth"`
	ContainerDepth     int    `json:"container_depth"`
}

// EntityTypeBO manages the types of one entity kind.
type EntityTypeBO struct {
	base
	kind domain.EntityKind
}

// NewEntityTypeBO constructs an EntityTypeBO.
func NewEntityTypeBO(tx domain.Transaction, session Session, kind domain.EntityKind) *EntityTypeBO {
	return &EntityTypeBO{base: base{tx: tx, session: session}, kind: kind}
}

// Register creates an entity type.
func (b *EntityTypeBO) Register(nt NewEntityType) (domain.EntityType, error) {
	if !b.kind.Valid() {
		return domain.EntityType{}, domain.UserFailuref("Unknown entity kind '%s'.", b.kind)
	}
	code := domain.NormalizeCode(nt.Code)
	if err := domain.ValidateCode(code); err != nil {
		return domain.EntityType{}, err
	}
	if _, exists := b.tx.FindEntityTypeByCode(b.kind, code); exists {
		return domain.EntityType{}, domain.UserFailuref("%s type '%s' already exists.", capitalize(b.kind.Label()), code)
	}
	if nt.GeneratedFromDepth < 0 || nt.ContainerDepth < 0 {
		return domain.EntityType{}, domain.UserFailuref("Hierarchy depths of %s type '%s' must not be negative.", b.kind.Label(), code)
	}
	return b.tx.CreateEntityType(domain.EntityType{
		Kind:               b.kind,
		Code:               code,
		Description:        nt.Description,
		Listable:           nt.Listable,
		GeneratedFromDepth: nt.GeneratedFromDepth,
		ContainerDepth:     nt.ContainerDepth,
	})
}

// Update changes the description and listing flag of an entity type.
func (b *EntityTypeBO) Update(code, description string, listable bool) (domain.EntityType, error) {
	t, err := b.findEntityType(b.kind, code)
	if err != nil {
		return domain.EntityType{}, err
	}
	return b.tx.UpdateEntityType(t.ID, func(et *domain.EntityType) error {
		et.Description = description
		et.Listable = listable
		return nil
	})
}

// Delete removes an unused entity type with its assignments.
func (b *EntityTypeBO) Delete(code string) error {
	t, err := b.findEntityType(b.kind, code)
	if err != nil {
		return err
	}
	if n := len(listHolders(b.tx, b.kind, t.ID)); n > 0 {
		return domain.UserFailuref("%s type '%s' cannot be deleted because it is used by %d %s%s.",
			capitalize(b.kind.Label()), t.Code, n, b.kind.Label(), plural(n))
	}
	for _, a := range b.tx.ListAssignments(b.kind, t.ID) {
		if err := b.tx.DeleteAssignment(a.ID); err != nil {
			return err
		}
	}
	return b.tx.DeleteEntityType(t.ID)
}

// EnsureBuiltinSampleTypes registers the built-in sample types that are
// missing. Hierarchy depths default to one level.
func EnsureBuiltinSampleTypes(tx domain.Transaction) ([]domain.EntityType, error) {
	var created []domain.EntityType
	for _, code := range domain.BuiltinSampleTypes() {
		if _, exists := tx.FindEntityTypeByCode(domain.KindSample, string(code)); exists {
			continue
		}
		t, err := tx.CreateEntityType(domain.EntityType{
			Kind:               domain.KindSample,
			Code:               string(code),
			Description:        code.Description(),
			Listable:           true,
			GeneratedFromDepth: 1,
			ContainerDepth:     1,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	return created, nil
}
