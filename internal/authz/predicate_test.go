package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"openbis/internal/bo"
	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"
)

func principal(grants ...Grant) Principal {
	return Principal{UserID: "jane", InstanceCode: "DB", HomeGroupCode: "CISD", Grants: grants}
}

func TestGroupIdentifierPredicate(t *testing.T) {
	cases := []struct {
		name    string
		p       Principal
		allowed RoleSet
		id      domain.GroupIdentifier
		want    string
	}{
		{"group user reads own group", principal(Grant{domain.RoleGroupUser, "CISD"}), RoleSetObserver, domain.GroupIdentifier{Group: "cisd"}, ""},
		{"home group notation", principal(Grant{domain.RoleGroupUser, "CISD"}), RoleSetUser, domain.GroupIdentifier{}, ""},
		{"instance admin covers every group", principal(Grant{Role: domain.RoleInstanceAdmin}), RoleSetGroupAdmin, domain.GroupIdentifier{Group: "OTHER"}, ""},
		{"other group", principal(Grant{domain.RoleGroupAdmin, "CISD"}), RoleSetObserver, domain.GroupIdentifier{Group: "OTHER"},
			"User 'jane' does not have enough privileges to access data in the group 'OTHER'."},
		{"observer cannot write", principal(Grant{domain.RoleGroupObserver, "CISD"}), RoleSetUser, domain.GroupIdentifier{Group: "CISD"},
			"User 'jane' does not have enough privileges to access data in the group 'CISD'."},
		{"etl server is not a user", principal(Grant{domain.RoleGroupETLServer, "CISD"}), RoleSetUser, domain.GroupIdentifier{Group: "CISD"},
			"User 'jane' does not have enough privileges to access data in the group 'CISD'."},
		{"foreign instance", principal(Grant{Role: domain.RoleInstanceAdmin}), RoleSetObserver, domain.GroupIdentifier{Instance: "XX", Group: "CISD"},
			"User 'jane' does not have enough privileges to access data in the database instance 'XX'."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := GroupIdentifierPredicate{}.Evaluate(tc.p, tc.allowed, tc.id)
			if tc.want == "" {
				if !s.Allowed() {
					t.Fatalf("expected access, got %q", s.Message())
				}
				return
			}
			if s.Allowed() || s.Message() != tc.want {
				t.Fatalf("expected denial %q, got allowed=%v %q", tc.want, s.Allowed(), s.Message())
			}
			if !errors.Is(s.Err(), ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", s.Err())
			}
		})
	}

	noHome := principal(Grant{domain.RoleGroupUser, "CISD"})
	noHome.HomeGroupCode = ""
	if s := (GroupIdentifierPredicate{}).Evaluate(noHome, RoleSetUser, domain.GroupIdentifier{}); s.Message() != "Home group of user 'jane' is not defined." {
		t.Fatalf("unexpected status %q", s.Message())
	}
}

func TestSamplePredicates(t *testing.T) {
	groupUser := principal(Grant{domain.RoleGroupUser, "CISD"})
	shared := bo.NewSample{Identifier: "/MASTER"}
	if s := NewSamplePredicate().Evaluate(groupUser, RoleSetUser, shared); s.Allowed() {
		t.Fatalf("group user must not register shared samples")
	} else if s.Message() != "User 'jane' does not have enough privileges to access data in the instance level 'DB'." {
		t.Fatalf("unexpected message %q", s.Message())
	}
	if s := SampleIdentifierPredicate().Evaluate(groupUser, RoleSetObserver, "/MASTER"); !s.Allowed() {
		t.Fatalf("group user may read shared samples: %s", s.Message())
	}
	if s := NewSamplePredicate().Evaluate(groupUser, RoleSetUser, bo.NewSample{Identifier: "/CISD/P1"}); !s.Allowed() {
		t.Fatalf("expected access to own group: %s", s.Message())
	}
	if s := NewSamplePredicate().Evaluate(principal(Grant{Role: domain.RoleInstanceAdmin}), RoleSetUser, shared); !s.Allowed() {
		t.Fatalf("instance admin may register shared samples: %s", s.Message())
	}
	if s := SampleIdentifierPredicate().Evaluate(groupUser, RoleSetUser, "/A/B/C"); s.Allowed() {
		t.Fatalf("malformed identifiers must be denied")
	}
}

func TestExperimentPredicates(t *testing.T) {
	p := principal(Grant{domain.RoleGroupPowerUser, "CISD"})
	if s := NewExperimentPredicate().Evaluate(p, RoleSetUser, bo.NewExperiment{Identifier: "/CISD/NEMO/EXP1"}); !s.Allowed() {
		t.Fatalf("expected access: %s", s.Message())
	}
	s := ExperimentIdentifierPredicate().Evaluate(p, RoleSetUser, "/OTHER/FAR/EXP2")
	if s.Message() != "User 'jane' does not have enough privileges to access data in the group 'OTHER'." {
		t.Fatalf("unexpected status %q", s.Message())
	}
	if s := ProjectIdentifierPredicate().Evaluate(p, RoleSetGroupAdmin, "/CISD/NEMO"); s.Allowed() {
		t.Fatalf("power user is not a group admin")
	}
}

func TestRequire(t *testing.T) {
	p := principal(Grant{domain.RoleGroupAdmin, "CISD"}, Grant{Role: domain.RoleInstanceObserver})
	if err := Require(p, RoleSetObserver); err != nil {
		t.Fatalf("require observer: %v", err)
	}
	if err := RequireInstance(p, RoleSetInstanceAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := RequireInstance(p, RoleSetObserver); err != nil {
		t.Fatalf("instance observer reads instance data: %v", err)
	}
	groups, all := p.GroupCodes(RoleSetUser)
	if all || !cmp.Equal(groups, []string{"CISD"}) {
		t.Fatalf("unexpected groups %v %v", groups, all)
	}
	if _, all := p.GroupCodes(RoleSetObserver); !all {
		t.Fatalf("instance observer sees every group")
	}
}

func TestNewPrincipal(t *testing.T) {
	store := memory.NewStore(nil)
	var person domain.Person
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		inst, err := tx.CreateDatabaseInstance(domain.DatabaseInstance{Code: "DB", Home: true})
		if err != nil {
			return err
		}
		g, err := tx.CreateGroup(domain.Group{Code: "CISD", InstanceID: inst.ID})
		if err != nil {
			return err
		}
		if person, err = tx.CreatePerson(domain.Person{UserID: "jane", InstanceID: inst.ID, HomeGroupID: &g.ID}); err != nil {
			return err
		}
		if _, err := tx.CreateRoleAssignment(domain.RoleAssignment{PersonID: person.ID, Role: domain.RoleGroupUser, GroupID: &g.ID}); err != nil {
			return err
		}
		_, err = tx.CreateRoleAssignment(domain.RoleAssignment{PersonID: person.ID, Role: domain.RoleInstanceObserver})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var got Principal
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		got = NewPrincipal(v, person)
		return nil
	})
	want := Principal{
		UserID: "jane", InstanceCode: "DB", HomeGroupCode: "CISD",
		Grants: []Grant{{Role: domain.RoleGroupUser, GroupCode: "CISD"}, {Role: domain.RoleInstanceObserver}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("principal mismatch (-want +got):\n%s", diff)
	}
}
