// Package bo holds the business objects of the openBIS server. Each business
// object validates user input and mutates persistence entities inside a
// single domain.Transaction on behalf of a Session.
package bo

import (
	"openbis/pkg/domain"
)

// Session identifies the person on whose behalf business objects act.
type Session struct {
	Token    string
	Person   domain.Person
	Instance domain.DatabaseInstance
}

// UserID returns the login of the session owner.
func (s Session) UserID() string { return s.Person.UserID }

// HomeGroupID returns the id of the session owner's home group, if any.
func (s Session) HomeGroupID() (string, bool) {
	if s.Person.HomeGroupID == nil {
		return "", false
	}
	return *s.Person.HomeGroupID, true
}

// base carries what every business object needs.
type base struct {
	tx      domain.Transaction
	session Session
}

func (b base) registrator() string { return b.session.Person.ID }

func (b base) deletionEvent(kind domain.RecordKind, identifier, reason string) error {
	_, err := b.tx.CreateEvent(domain.Event{
		Type:          domain.EventDeletion,
		Kind:          kind,
		Identifier:    identifier,
		Reason:        reason,
		RegistratorID: b.registrator(),
	})
	return err
}

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
