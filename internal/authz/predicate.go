package authz

import (
	"errors"
	"fmt"

	"openbis/internal/bo"
	"openbis/pkg/domain"
)

// ErrUnauthorized matches every authorization failure with errors.Is.
var ErrUnauthorized = errors.New("authorization failure")

// Error is an authorization failure with a message for the user.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is makes errors.Is(err, ErrUnauthorized) hold.
func (e *Error) Is(target error) bool { return target == ErrUnauthorized }

// Status is the outcome of a predicate. The zero value grants access.
type Status struct {
	denied  bool
	message string
}

// OK grants access.
var OK = Status{}

// Deny builds a failing status.
func Deny(format string, args ...any) Status {
	return Status{denied: true, message: fmt.Sprintf(format, args...)}
}

// Allowed reports whether access is granted.
func (s Status) Allowed() bool { return !s.denied }

// Message is the reason of a denial.
func (s Status) Message() string { return s.message }

// Err returns nil for an allowed status and an *Error otherwise.
func (s Status) Err() error {
	if !s.denied {
		return nil
	}
	return &Error{Message: s.message}
}

// Predicate checks one value of type T.
type Predicate[T any] interface {
	Evaluate(p Principal, allowed RoleSet, value T) Status
}

// Require checks that the principal holds any accepted role, for operations
// without an entity argument.
func Require(p Principal, allowed RoleSet) error {
	if p.HasAnyRole(allowed) {
		return nil
	}
	return Deny("User '%s' does not have enough privileges.", p.UserID).Err()
}

// RequireInstance checks for an accepted instance role.
func RequireInstance(p Principal, allowed RoleSet) error {
	if p.HasInstanceRole(allowed) {
		return nil
	}
	return instanceDenied(p)
}

func instanceDenied(p Principal) error {
	return Deny("User '%s' does not have enough privileges to access data in the instance level '%s'.", p.UserID, p.InstanceCode).Err()
}

func checkInstance(p Principal, instance string) Status {
	if instance != "" && p.InstanceCode != "" && domain.NormalizeCode(instance) != p.InstanceCode {
		return Deny("User '%s' does not have enough privileges to access data in the database instance '%s'.", p.UserID, instance)
	}
	return OK
}

// GroupIdentifierPredicate grants access to data of a group. An identifier
// without a group stands for the home group of the principal.
type GroupIdentifierPredicate struct{}

// Evaluate implements Predicate.
func (GroupIdentifierPredicate) Evaluate(p Principal, allowed RoleSet, id domain.GroupIdentifier) Status {
	if s := checkInstance(p, id.Instance); !s.Allowed() {
		return s
	}
	group := domain.NormalizeCode(id.Group)
	if group == "" {
		if p.HomeGroupCode == "" {
			return Deny("Home group of user '%s' is not defined.", p.UserID)
		}
		group = p.HomeGroupCode
	}
	if p.CanAccessGroup(allowed, group) {
		return OK
	}
	return Deny("User '%s' does not have enough privileges to access data in the group '%s'.", p.UserID, group)
}

// SampleOwnerIdentifierPredicate grants access to the owner of a sample.
// Shared samples need an instance role, except for reading: any accepted
// role may read shared samples.
type SampleOwnerIdentifierPredicate struct {
	groups GroupIdentifierPredicate
}

// Evaluate implements Predicate.
func (sp SampleOwnerIdentifierPredicate) Evaluate(p Principal, allowed RoleSet, id domain.SampleIdentifier) Status {
	if !id.Shared {
		return sp.groups.Evaluate(p, allowed, id.Owner())
	}
	if s := checkInstance(p, id.Instance); !s.Allowed() {
		return s
	}
	if p.HasInstanceRole(allowed) || (allowed.readOnly() && p.HasAnyRole(allowed)) {
		return OK
	}
	return Status{denied: true, message: instanceDenied(p).Error()}
}

// DelegatedPredicate converts a value and hands it to another predicate.
type DelegatedPredicate[From, To any] struct {
	delegate    Predicate[To]
	convert     func(From) (To, error)
	description string
}

// NewDelegatedPredicate combines a conversion with delegate. description
// names the candidate in conversion failures.
func NewDelegatedPredicate[From, To any](delegate Predicate[To], description string, convert func(From) (To, error)) DelegatedPredicate[From, To] {
	return DelegatedPredicate[From, To]{delegate: delegate, convert: convert, description: description}
}

// Evaluate implements Predicate.
func (d DelegatedPredicate[From, To]) Evaluate(p Principal, allowed RoleSet, value From) Status {
	converted, err := d.convert(value)
	if err != nil {
		return Deny("Cannot check access to %s: %v", d.description, err)
	}
	return d.delegate.Evaluate(p, allowed, converted)
}

// ExperimentIdentifierPredicate checks the group of an experiment identifier.
func ExperimentIdentifierPredicate() DelegatedPredicate[string, domain.GroupIdentifier] {
	return NewDelegatedPredicate(Predicate[domain.GroupIdentifier](GroupIdentifierPredicate{}), "experiment",
		func(identifier string) (domain.GroupIdentifier, error) {
			id, err := domain.ParseExperimentIdentifier(identifier)
			if err != nil {
				return domain.GroupIdentifier{}, err
			}
			return id.GroupIdentifier(), nil
		})
}

// ProjectIdentifierPredicate checks the group of a project identifier.
func ProjectIdentifierPredicate() DelegatedPredicate[string, domain.GroupIdentifier] {
	return NewDelegatedPredicate(Predicate[domain.GroupIdentifier](GroupIdentifierPredicate{}), "project",
		func(identifier string) (domain.GroupIdentifier, error) {
			id, err := domain.ParseProjectIdentifier(identifier)
			if err != nil {
				return domain.GroupIdentifier{}, err
			}
			return id.GroupIdentifier(), nil
		})
}

// NewExperimentPredicate checks the group a new experiment is registered in.
func NewExperimentPredicate() DelegatedPredicate[bo.NewExperiment, string] {
	return NewDelegatedPredicate(Predicate[string](ExperimentIdentifierPredicate()), "new experiment",
		func(ne bo.NewExperiment) (string, error) { return ne.Identifier, nil })
}

// SampleIdentifierPredicate checks the owner of a sample identifier.
func SampleIdentifierPredicate() DelegatedPredicate[string, domain.SampleIdentifier] {
	return NewDelegatedPredicate(Predicate[domain.SampleIdentifier](SampleOwnerIdentifierPredicate{}), "sample",
		domain.ParseSampleIdentifier)
}

// NewSamplePredicate checks the owner a new sample is registered for.
func NewSamplePredicate() DelegatedPredicate[bo.NewSample, string] {
	return NewDelegatedPredicate(Predicate[string](SampleIdentifierPredicate()), "new sample",
		func(ns bo.NewSample) (string, error) { return ns.Identifier, nil })
}
