package core

import (
	"context"
	"strings"

	"openbis/internal/authz"
	"openbis/internal/bo"
	"openbis/internal/translator"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// BootstrapRequest describes a fresh or upgraded installation.
type BootstrapRequest struct {
	InstanceCode string
	AdminUserID  string
}

// BootstrapReport tells what Bootstrap changed.
type BootstrapReport struct {
	Instance        api.DatabaseInstance
	InstanceCreated bool
	InstanceRenamed bool
	PreviousCode    string
	SampleTypes     []string
	AdminCreated    bool
}

// Bootstrap prepares the store: it ensures a home database instance,
// renaming SYSTEM_DEFAULT to InstanceCode, registers the built-in sample
// types and, when AdminUserID is set, makes that person an instance admin.
// Running it again changes nothing.
func (s *Service) Bootstrap(ctx context.Context, req BootstrapRequest) (BootstrapReport, error) {
	var report BootstrapReport
	err := s.run(ctx, "bootstrap", req.AdminUserID, func(ctx context.Context) (string, error) {
		_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			boot, err := bo.EnsureHomeDatabaseInstance(tx, req.InstanceCode)
			if err != nil {
				return err
			}
			report = BootstrapReport{
				InstanceCreated: boot.Created,
				InstanceRenamed: boot.Renamed,
				PreviousCode:    boot.PreviousCode,
			}
			types, err := bo.EnsureBuiltinSampleTypes(tx)
			if err != nil {
				return err
			}
			for _, t := range types {
				report.SampleTypes = append(report.SampleTypes, t.Code)
			}
			if userID := strings.TrimSpace(req.AdminUserID); userID != "" {
				report.AdminCreated, err = ensureInstanceAdmin(tx, boot.Instance, userID)
				if err != nil {
					return err
				}
			}
			report.Instance = *translateInstance(tx, boot.Instance)
			return nil
		})
		return report.Instance.Code, err
	})
	if err != nil {
		return report, err
	}
	if report.InstanceRenamed {
		s.logger.Info("database instance renamed", "from", report.PreviousCode, "to", report.Instance.Code)
	}
	if len(report.SampleTypes) > 0 {
		s.logger.Info("built-in sample types registered", "types", report.SampleTypes)
	}
	return report, nil
}

func translateInstance(view domain.TransactionView, inst domain.DatabaseInstance) *api.DatabaseInstance {
	return translator.New(view).DatabaseInstance(&inst)
}

func ensureInstanceAdmin(tx domain.Transaction, home domain.DatabaseInstance, userID string) (bool, error) {
	_, known := tx.FindPersonByUserID(userID)
	person, err := ensurePerson(tx, userID)
	if err != nil {
		return false, err
	}
	for _, ra := range tx.ListRoleAssignmentsByPerson(person.ID) {
		if ra.Role == domain.RoleInstanceAdmin {
			// A person registered just now got the role as the first person.
			return !known, nil
		}
	}
	roles := bo.NewRoleAssignmentTable(tx, bo.Session{Person: person, Instance: home})
	if _, err := roles.Add(domain.RoleInstanceAdmin, "", userID); err != nil {
		return false, err
	}
	return true, nil
}

// GetHomeDatabaseInstance returns the home database instance.
func (s *Service) GetHomeDatabaseInstance(ctx context.Context, token string) (*api.DatabaseInstance, error) {
	var out *api.DatabaseInstance
	err := s.read(ctx, "get_home_instance", token, authz.RoleSetObserver, func(_ context.Context, _ domain.TransactionView, req request) error {
		out = req.tr.DatabaseInstance(&req.session.Instance)
		return nil
	})
	return out, err
}

// ListGroups returns every group of the home instance.
func (s *Service) ListGroups(ctx context.Context, token string) ([]api.Group, error) {
	var out []api.Group
	err := s.read(ctx, "list_groups", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.Groups(view.ListGroups())
		return nil
	})
	return out, err
}

// RegisterGroup creates a group led by the caller.
func (s *Service) RegisterGroup(ctx context.Context, token, code, description string) (*api.Group, error) {
	var out *api.Group
	err := s.write(ctx, "register_group", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		gbo := bo.NewGroupBO(tx, req.session)
		if err := gbo.Register(code, description); err != nil {
			return err
		}
		g, err := gbo.Group()
		if err != nil {
			return err
		}
		out = req.tr.Group(&g)
		fx.entityID = g.ID
		return nil
	})
	return out, err
}

// UpdateGroup changes the description of a group. Group admins of that
// group may do so.
func (s *Service) UpdateGroup(ctx context.Context, token, groupID, description string) (*api.Group, error) {
	var out *api.Group
	err := s.write(ctx, "update_group", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = groupID
		g, ok := tx.FindGroup(groupID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.RecordGroup, ID: groupID}
		}
		if err := checkGroup(req, tx, g.ID, authz.RoleSetGroupAdmin); err != nil {
			return err
		}
		gbo := bo.NewGroupBO(tx, req.session)
		if err := gbo.UpdateDescription(groupID, description); err != nil {
			return err
		}
		updated, err := gbo.Group()
		if err != nil {
			return err
		}
		out = req.tr.Group(&updated)
		return nil
	})
	return out, err
}

// DeleteGroup removes an empty group.
func (s *Service) DeleteGroup(ctx context.Context, token, groupID, reason string) error {
	return s.write(ctx, "delete_group", token, authz.RoleSetInstanceAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = groupID
		return bo.NewGroupBO(tx, req.session).DeleteByID(groupID, reason)
	})
}

// ListPersons returns every registered person.
func (s *Service) ListPersons(ctx context.Context, token string) ([]api.Person, error) {
	var out []api.Person
	err := s.read(ctx, "list_persons", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.Persons(view.ListPersons())
		return nil
	})
	return out, err
}

// RegisterPerson registers a person ahead of their first login.
func (s *Service) RegisterPerson(ctx context.Context, token string, np bo.NewPerson) (*api.Person, error) {
	var out *api.Person
	err := s.write(ctx, "register_person", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		pbo := bo.NewPersonBO(tx, req.session)
		if err := pbo.Register(np); err != nil {
			return err
		}
		p, err := pbo.Person()
		if err != nil {
			return err
		}
		out = req.tr.Person(&p)
		fx.entityID = p.ID
		return nil
	})
	return out, err
}

// ChangeHomeGroup sets the home group of the caller. An empty code clears it.
func (s *Service) ChangeHomeGroup(ctx context.Context, token, groupCode string) (*api.Person, error) {
	var out *api.Person
	err := s.write(ctx, "change_home_group", token, authz.RoleSetObserver, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		fx.entityID = req.session.Person.ID
		pbo := bo.NewPersonBO(tx, req.session)
		if err := pbo.ChangeHomeGroup(req.session.Person.UserID, groupCode); err != nil {
			return err
		}
		p, err := pbo.Person()
		if err != nil {
			return err
		}
		out = req.tr.Person(&p)
		return nil
	})
	return out, err
}

// RoleRequest names a role assignment. GroupCode is empty for instance roles.
type RoleRequest struct {
	Role      domain.RoleCode `json:"role"`
	GroupCode string          `json:"group_code,omitempty"`
	UserID    string          `json:"user_id"`
}

// ListRoleAssignments returns every role assignment.
func (s *Service) ListRoleAssignments(ctx context.Context, token string) ([]api.RoleAssignment, error) {
	var out []api.RoleAssignment
	err := s.read(ctx, "list_roles", token, authz.RoleSetGroupAdmin, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.RoleAssignments(view.ListRoleAssignments())
		return nil
	})
	return out, err
}

// authorizeRole lets instance admins manage every role and group admins
// manage the group roles of their groups.
func authorizeRole(req request, r RoleRequest) error {
	if r.Role.InstanceLevel() || r.GroupCode == "" {
		return authz.RequireInstance(req.principal, authz.RoleSetInstanceAdmin)
	}
	return check(req, groupPredicate, authz.RoleSetGroupAdmin, domain.GroupIdentifier{Group: r.GroupCode})
}

// AddRole grants a role.
func (s *Service) AddRole(ctx context.Context, token string, r RoleRequest) (*api.RoleAssignment, error) {
	var out *api.RoleAssignment
	err := s.write(ctx, "add_role", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		if err := authorizeRole(req, r); err != nil {
			return err
		}
		ra, err := bo.NewRoleAssignmentTable(tx, req.session).Add(r.Role, r.GroupCode, r.UserID)
		if err != nil {
			return err
		}
		out = req.tr.RoleAssignment(&ra)
		fx.entityID = ra.ID
		return nil
	})
	return out, err
}

// DeleteRole revokes a role. Instance admins cannot revoke their own
// instance admin role.
func (s *Service) DeleteRole(ctx context.Context, token string, r RoleRequest) error {
	return s.write(ctx, "delete_role", token, authz.RoleSetGroupAdmin, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
		if err := authorizeRole(req, r); err != nil {
			return err
		}
		if r.Role == domain.RoleInstanceAdmin && r.UserID == req.session.Person.UserID {
			return domain.UserFailuref("For safety reason you cannot give away your own instance admin role.")
		}
		fx.entityID = r.UserID
		return bo.NewRoleAssignmentTable(tx, req.session).Delete(r.Role, r.GroupCode, r.UserID)
	})
}

// ListEvents returns the recorded deletion events.
func (s *Service) ListEvents(ctx context.Context, token string) ([]api.Event, error) {
	var out []api.Event
	err := s.read(ctx, "list_events", token, authz.RoleSetInstanceAdmin, func(_ context.Context, view domain.TransactionView, req request) error {
		out = req.tr.Events(view.ListEvents())
		return nil
	})
	return out, err
}
