package core

import (
	"context"

	"openbis/internal/authz"
	"openbis/internal/bo"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// ListEntityTypes returns the types of one entity kind with their property
// assignments.
func (s *Service) ListEntityTypes(ctx context.Context, token string, kind domain.EntityKind) ([]api.EntityType, error) {
	var out []api.EntityType
	err := s.read(ctx, "list_entity_types", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		if !kind.Valid() {
			return domain.UserFailuref("Unknown entity kind '%s'.", kind)
		}
		out = req.tr.EntityTypes(view.ListEntityTypes(kind), true)
		return nil
	})
	return out, err
}

// RegisterEntityType creates an entity type.
func (s *Service) RegisterEntityType(ctx context.Context, token string, kind domain.EntityKind, nt bo.NewEntityType) (*api.EntityType, error) {
	var out *api.EntityType
	err := s.write(ctx, "register_entity_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		t, err := bo.NewEntityTypeBO(tx, req.session, kind).Register(nt)
		if err != nil {
			return err
		}
		out = req.tr.EntityType(&t, false)
		fx.entityID = t.ID
		return nil
	})
	return out, err
}

// UpdateEntityType changes the description and listing flag of a type.
func (s *Service) UpdateEntityType(ctx context.Context, token string, kind domain.EntityKind, code, description string, listable bool) (*api.EntityType, error) {
	var out *api.EntityType
	err := s.write(ctx, "update_entity_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		t, err := bo.NewEntityTypeBO(tx, req.session, kind).Update(code, description, listable)
		if err != nil {
			return err
		}
		out = req.tr.EntityType(&t, true)
		fx.entityID = t.ID
		return nil
	})
	return out, err
}

// DeleteEntityType removes an unused entity type.
func (s *Service) DeleteEntityType(ctx context.Context, token string, kind domain.EntityKind, code string) error {
	return s.write(ctx, "delete_entity_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = code
		return bo.NewEntityTypeBO(tx, req.session, kind).Delete(code)
	})
}

// ListPropertyTypes returns every property type.
func (s *Service) ListPropertyTypes(ctx context.Context, token string) ([]api.PropertyType, error) {
	var out []api.PropertyType
	err := s.read(ctx, "list_property_types", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.PropertyTypes(view.ListPropertyTypes())
		return nil
	})
	return out, err
}

// RegisterPropertyType creates a property type.
func (s *Service) RegisterPropertyType(ctx context.Context, token string, np bo.NewPropertyType) (*api.PropertyType, error) {
	var out *api.PropertyType
	err := s.write(ctx, "register_property_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		pt, err := bo.NewPropertyTypeBO(tx, req.session).Register(np)
		if err != nil {
			return err
		}
		out = req.tr.PropertyType(&pt)
		fx.entityID = pt.ID
		return nil
	})
	return out, err
}

// UpdatePropertyType changes the label and description of a property type.
func (s *Service) UpdatePropertyType(ctx context.Context, token, code, label, description string) (*api.PropertyType, error) {
	var out *api.PropertyType
	err := s.write(ctx, "update_property_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		pt, err := bo.NewPropertyTypeBO(tx, req.session).Update(code, label, description)
		if err != nil {
			return err
		}
		out = req.tr.PropertyType(&pt)
		fx.entityID = pt.ID
		return nil
	})
	return out, err
}

// DeletePropertyType removes an unassigned property type.
func (s *Service) DeletePropertyType(ctx context.Context, token, code string) error {
	return s.write(ctx, "delete_property_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = code
		return bo.NewPropertyTypeBO(tx, req.session).Delete(code)
	})
}

// AssignmentRequest names an assignment of a property type to an entity type.
type AssignmentRequest struct {
	Kind             domain.EntityKind `json:"kind"`
	PropertyTypeCode string            `json:"property_type_code"`
	EntityTypeCode   string            `json:"entity_type_code"`
	Mandatory        bool              `json:"mandatory"`
	DefaultValue     string            `json:"default_value,omitempty"`
}

// AssignPropertyType assigns a property type to an entity type, filling
// existing entities with the default value.
func (s *Service) AssignPropertyType(ctx context.Context, token string, r AssignmentRequest) (*api.EntityTypePropertyType, error) {
	var out *api.EntityTypePropertyType
	err := s.write(ctx, "assign_property_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		b := bo.NewEntityTypePropertyTypeBO(tx, req.session, r.Kind)
		if err := b.CreateAssignment(r.PropertyTypeCode, r.EntityTypeCode, r.Mandatory, r.DefaultValue); err != nil {
			return err
		}
		a, err := b.LoadedAssignment()
		if err != nil {
			return err
		}
		out = req.tr.Assignment(&a)
		fx.entityID = a.ID
		return nil
	})
	return out, err
}

// UpdateAssignment changes the mandatory flag of an assignment. Making it
// mandatory fills entities lacking the property with the default value.
func (s *Service) UpdateAssignment(ctx context.Context, token string, r AssignmentRequest) (*api.EntityTypePropertyType, error) {
	var out *api.EntityTypePropertyType
	err := s.write(ctx, "update_assignment", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		b := bo.NewEntityTypePropertyTypeBO(tx, req.session, r.Kind)
		if err := b.LoadAssignment(r.PropertyTypeCode, r.EntityTypeCode); err != nil {
			return err
		}
		if err := b.UpdateLoadedAssignment(r.Mandatory, r.DefaultValue); err != nil {
			return err
		}
		a, err := b.LoadedAssignment()
		if err != nil {
			return err
		}
		out = req.tr.Assignment(&a)
		fx.entityID = a.ID
		return nil
	})
	return out, err
}

// UnassignPropertyType removes an assignment and the property values of
// the affected entities.
func (s *Service) UnassignPropertyType(ctx context.Context, token string, kind domain.EntityKind, propertyTypeCode, entityTypeCode string) error {
	return s.write(ctx, "unassign_property_type", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		b := bo.NewEntityTypePropertyTypeBO(tx, req.session, kind)
		if err := b.LoadAssignment(propertyTypeCode, entityTypeCode); err != nil {
			return err
		}
		a, err := b.LoadedAssignment()
		if err != nil {
			return err
		}
		fx.entityID = a.ID
		return b.DeleteLoadedAssignment()
	})
}

// ListVocabularies returns every vocabulary with its terms.
func (s *Service) ListVocabularies(ctx context.Context, token string) ([]api.Vocabulary, error) {
	var out []api.Vocabulary
	err := s.read(ctx, "list_vocabularies", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.Vocabularies(view.ListVocabularies())
		return nil
	})
	return out, err
}

// RegisterVocabulary creates a vocabulary.
func (s *Service) RegisterVocabulary(ctx context.Context, token string, nv bo.NewVocabulary) (*api.Vocabulary, error) {
	var out *api.Vocabulary
	err := s.write(ctx, "register_vocabulary", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		vbo := bo.NewVocabularyBO(tx, req.session)
		if err := vbo.Register(nv); err != nil {
			return err
		}
		return vocabularyResult(vbo, req, fx, &out)
	})
	return out, err
}

// AddVocabularyTerms appends terms to a vocabulary.
func (s *Service) AddVocabularyTerms(ctx context.Context, token, code string, terms []domain.VocabularyTerm) (*api.Vocabulary, error) {
	var out *api.Vocabulary
	err := s.write(ctx, "add_vocabulary_terms", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		vbo := bo.NewVocabularyBO(tx, req.session)
		if err := vbo.Load(code); err != nil {
			return err
		}
		if err := vbo.AddTerms(terms); err != nil {
			return err
		}
		return vocabularyResult(vbo, req, fx, &out)
	})
	return out, err
}

// DeleteVocabularyTerms removes unused terms from a vocabulary.
func (s *Service) DeleteVocabularyTerms(ctx context.Context, token, code string, termCodes []string) (*api.Vocabulary, error) {
	var out *api.Vocabulary
	err := s.write(ctx, "delete_vocabulary_terms", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		vbo := bo.NewVocabularyBO(tx, req.session)
		if err := vbo.Load(code); err != nil {
			return err
		}
		if err := vbo.DeleteTerms(termCodes); err != nil {
			return err
		}
		return vocabularyResult(vbo, req, fx, &out)
	})
	return out, err
}

func vocabularyResult(vbo *bo.VocabularyBO, req request, fx *effects, out **api.Vocabulary) error {
	v, err := vbo.Vocabulary()
	if err != nil {
		return err
	}
	*out = req.tr.Vocabulary(&v)
	fx.entityID = v.ID
	return nil
}

// DeleteVocabulary removes a vocabulary no property type uses.
func (s *Service) DeleteVocabulary(ctx context.Context, token, code string) error {
	return s.write(ctx, "delete_vocabulary", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		vbo := bo.NewVocabularyBO(tx, req.session)
		if err := vbo.Load(code); err != nil {
			return err
		}
		fx.entityID = code
		return vbo.Delete()
	})
}
