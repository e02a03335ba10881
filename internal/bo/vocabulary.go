package bo

import (
	"strings"

	"openbis/pkg/domain"
)

// NewVocabulary describes a vocabulary to register.
type NewVocabulary struct {
	Code        string                  `json:"code"`
	Description string                  `json:"description,omitempty"`
	Terms       []domain.VocabularyTerm `json:"terms"`
}

// VocabularyBO manages controlled vocabularies and their terms.
type VocabularyBO struct {
	base
	vocabulary *domain.Vocabulary
}

// NewVocabularyBO constructs a VocabularyBO.
func NewVocabularyBO(tx domain.Transaction, session Session) *VocabularyBO {
	return &VocabularyBO{base: base{tx: tx, session: session}}
}

// Vocabulary returns the loaded vocabulary.
func (b *VocabularyBO) Vocabulary() (domain.Vocabulary, error) {
	if b.vocabulary == nil {
		return domain.Vocabulary{}, domain.UserFailuref("Unloaded vocabulary.")
	}
	return *b.vocabulary, nil
}

// Load loads a vocabulary by code.
func (b *VocabularyBO) Load(code string) error {
	v, ok := b.tx.FindVocabularyByCode(domain.NormalizeCode(code))
	if !ok {
		b.vocabulary = nil
		return domain.UserFailuref("Vocabulary '%s' does not exist.", code)
	}
	b.vocabulary = &v
	return nil
}

// Register creates a vocabulary with at least one term. Codes starting with
// "$" are managed internally.
func (b *VocabularyBO) Register(nv NewVocabulary) error {
	code := domain.NormalizeCode(nv.Code)
	internal := strings.HasPrefix(code, managedInternallyPrefix)
	if err := domain.ValidateCode(strings.TrimPrefix(code, managedInternallyPrefix)); err != nil {
		return err
	}
	if _, exists := b.tx.FindVocabularyByCode(code); exists {
		return domain.UserFailuref("Vocabulary '%s' already exists.", code)
	}
	if len(nv.Terms) == 0 {
		return domain.UserFailuref("Vocabulary '%s' needs at least one term.", code)
	}
	v := domain.Vocabulary{
		Code:              code,
		Description:       nv.Description,
		ManagedInternally: internal,
		RegistratorID:     b.registrator(),
	}
	terms, err := appendTerms(v, nv.Terms)
	if err != nil {
		return err
	}
	v.Terms = terms
	created, err := b.tx.CreateVocabulary(v)
	if err != nil {
		return err
	}
	b.vocabulary = &created
	return nil
}

// AddTerms appends terms to the loaded vocabulary, continuing the ordinals.
func (b *VocabularyBO) AddTerms(terms []domain.VocabularyTerm) error {
	v, err := b.Vocabulary()
	if err != nil {
		return err
	}
	merged, err := appendTerms(v, terms)
	if err != nil {
		return err
	}
	updated, err := b.tx.UpdateVocabulary(v.ID, func(target *domain.Vocabulary) error {
		target.Terms = merged
		return nil
	})
	if err != nil {
		return err
	}
	b.vocabulary = &updated
	return nil
}

func appendTerms(v domain.Vocabulary, terms []domain.VocabularyTerm) ([]domain.VocabularyTerm, error) {
	out := append([]domain.VocabularyTerm(nil), v.Terms...)
	ordinal := 0
	for _, t := range out {
		ordinal = max(ordinal, t.Ordinal)
	}
	for _, t := range terms {
		t.Code = domain.NormalizeCode(t.Code)
		if err := domain.ValidateCode(t.Code); err != nil {
			return nil, err
		}
		for _, existing := range out {
			if existing.Code == t.Code {
				return nil, domain.UserFailuref("Vocabulary term '%s' already exists in vocabulary '%s'.", t.Code, v.Code)
			}
		}
		ordinal++
		t.Ordinal = ordinal
		out = append(out, t)
	}
	return out, nil
}

// DeleteTerms removes terms of the loaded vocabulary that no entity uses.
// At least one term has to remain.
func (b *VocabularyBO) DeleteTerms(codes []string) error {
	v, err := b.Vocabulary()
	if err != nil {
		return err
	}
	drop := map[string]bool{}
	for _, c := range codes {
		code := domain.NormalizeCode(c)
		if _, ok := v.Term(code); !ok {
			return domain.UserFailuref("Vocabulary term '%s' does not exist in vocabulary '%s'.", c, v.Code)
		}
		drop[code] = true
	}
	var users []domain.PropertyType
	for _, pt := range b.tx.ListPropertyTypes() {
		if deref(pt.VocabularyID) == v.ID {
			users = append(users, pt)
		}
	}
	var kept []domain.VocabularyTerm
	for _, t := range v.Terms {
		if !drop[t.Code] {
			kept = append(kept, t)
			continue
		}
		for _, pt := range users {
			if propertyInUse(b.tx, pt, t.Code) {
				return domain.UserFailuref("Vocabulary term '%s' is used by property '%s' and cannot be deleted.", t.Code, pt.Code)
			}
		}
	}
	if len(kept) == 0 {
		return domain.UserFailuref("Vocabulary '%s' needs at least one term.", v.Code)
	}
	updated, err := b.tx.UpdateVocabulary(v.ID, func(target *domain.Vocabulary) error {
		target.Terms = kept
		return nil
	})
	if err != nil {
		return err
	}
	b.vocabulary = &updated
	return nil
}

// Delete removes the loaded vocabulary when no property type uses it.
func (b *VocabularyBO) Delete() error {
	v, err := b.Vocabulary()
	if err != nil {
		return err
	}
	if v.ManagedInternally {
		return domain.UserFailuref("Vocabulary '%s' is managed internally.", v.Code)
	}
	for _, pt := range b.tx.ListPropertyTypes() {
		if deref(pt.VocabularyID) == v.ID {
			return domain.UserFailuref("Vocabulary '%s' cannot be deleted because it is used by property type '%s'.", v.Code, pt.Code)
		}
	}
	if err := b.tx.DeleteVocabulary(v.ID); err != nil {
		return err
	}
	b.vocabulary = nil
	return nil
}
