package bo

import (
	"strings"

	"openbis/pkg/domain"
)

// NewPerson describes a person to register.
type NewPerson struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// PersonBO registers persons and changes their home group.
type PersonBO struct {
	base
	person *domain.Person
}

// NewPersonBO constructs a PersonBO.
func NewPersonBO(tx domain.Transaction, session Session) *PersonBO {
	return &PersonBO{base: base{tx: tx, session: session}}
}

// Person returns the loaded person.
func (b *PersonBO) Person() (domain.Person, error) {
	if b.person == nil {
		return domain.Person{}, domain.UserFailuref("Unloaded person.")
	}
	return *b.person, nil
}

// Register creates a person in the home database instance.
func (b *PersonBO) Register(np NewPerson) error {
	userID := strings.TrimSpace(np.UserID)
	if userID == "" {
		return domain.UserFailuref("User id not specified.")
	}
	if _, exists := b.tx.FindPersonByUserID(userID); exists {
		return domain.UserFailuref("Person '%s' already exists.", userID)
	}
	home, err := b.resolveInstance("")
	if err != nil {
		return err
	}
	created, err := b.tx.CreatePerson(domain.Person{
		UserID:        userID,
		FirstName:     np.FirstName,
		LastName:      np.LastName,
		Email:         np.Email,
		InstanceID:    home.ID,
		RegistratorID: b.registrator(),
	})
	if err != nil {
		return err
	}
	b.person = &created
	return nil
}

// ChangeHomeGroup sets the home group of a person. An empty group code
// clears it.
func (b *PersonBO) ChangeHomeGroup(userID, groupCode string) error {
	p, ok := b.tx.FindPersonByUserID(userID)
	if !ok {
		return domain.UserFailuref("Person '%s' does not exist.", userID)
	}
	var groupID *string
	if groupCode != "" {
		g, ok := b.tx.FindGroupByCode(domain.NormalizeCode(groupCode))
		if !ok {
			return domain.UserFailuref("Group '%s' does not exist.", groupCode)
		}
		groupID = &g.ID
	}
	updated, err := b.tx.UpdatePerson(p.ID, func(p *domain.Person) error {
		p.HomeGroupID = groupID
		return nil
	})
	if err != nil {
		return err
	}
	b.person = &updated
	return nil
}
