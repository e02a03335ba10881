package httpapi

import (
	"net/http"

	"openbis/internal/bo"
	"openbis/internal/core"
	"openbis/pkg/domain"
)

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	req, err := decode[loginRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), req.UserID, req.Password)
	h.reply(w, r, http.StatusCreated, sess, err)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, http.StatusNoContent, nil, h.svc.Logout(r.Context(), token(r)))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, sess, err)
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request) {
	inst, err := h.svc.GetHomeDatabaseInstance(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, inst, err)
}

type groupRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// deleteRequest carries the reason recorded in deletion events.
type deleteRequest struct {
	IDs    []string `json:"ids"`
	Reason string   `json:"reason"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListGroups(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, groups, err)
}

func (h *Handler) registerGroup(w http.ResponseWriter, r *http.Request) {
	req, err := decode[groupRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.svc.RegisterGroup(r.Context(), token(r), req.Code, req.Description)
	h.reply(w, r, http.StatusCreated, g, err)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	req, err := decode[groupRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.svc.UpdateGroup(r.Context(), token(r), r.PathValue("id"), req.Description)
	h.reply(w, r, http.StatusOK, g, err)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteGroup(r.Context(), token(r), r.PathValue("id"), r.URL.Query().Get("reason"))
	h.reply(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) listPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.svc.ListPersons(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, persons, err)
}

func (h *Handler) registerPerson(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewPerson](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.RegisterPerson(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, p, err)
}

func (h *Handler) changeHomeGroup(w http.ResponseWriter, r *http.Request) {
	req, err := decode[struct {
		GroupCode string `json:"group_code"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.ChangeHomeGroup(r.Context(), token(r), req.GroupCode)
	h.reply(w, r, http.StatusOK, p, err)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoleAssignments(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, roles, err)
}

func (h *Handler) addRole(w http.ResponseWriter, r *http.Request) {
	req, err := decode[core.RoleRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ra, err := h.svc.AddRole(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, ra, err)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	req, err := decode[core.RoleRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteRole(r.Context(), token(r), req))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, events, err)
}

func (h *Handler) listEntityTypes(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	types, err := h.svc.ListEntityTypes(r.Context(), token(r), kind)
	h.reply(w, r, http.StatusOK, types, err)
}

func (h *Handler) registerEntityType(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decode[bo.NewEntityType](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.RegisterEntityType(r.Context(), token(r), kind, req)
	h.reply(w, r, http.StatusCreated, t, err)
}

func (h *Handler) updateEntityType(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := decode[struct {
		Description string `json:"description"`
		Listable    bool   `json:"listable"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.UpdateEntityType(r.Context(), token(r), kind, r.PathValue("code"), req.Description, req.Listable)
	h.reply(w, r, http.StatusOK, t, err)
}

func (h *Handler) deleteEntityType(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteEntityType(r.Context(), token(r), kind, r.PathValue("code")))
}

func (h *Handler) listPropertyTypes(w http.ResponseWriter, r *http.Request) {
	pts, err := h.svc.ListPropertyTypes(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, pts, err)
}

func (h *Handler) registerPropertyType(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewPropertyType](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pt, err := h.svc.RegisterPropertyType(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, pt, err)
}

func (h *Handler) updatePropertyType(w http.ResponseWriter, r *http.Request) {
	req, err := decode[struct {
		Label       string `json:"label"`
		Description string `json:"description"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pt, err := h.svc.UpdatePropertyType(r.Context(), token(r), r.PathValue("code"), req.Label, req.Description)
	h.reply(w, r, http.StatusOK, pt, err)
}

func (h *Handler) deletePropertyType(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeletePropertyType(r.Context(), token(r), r.PathValue("code")))
}

func (h *Handler) assignPropertyType(w http.ResponseWriter, r *http.Request) {
	req, err := decode[core.AssignmentRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.AssignPropertyType(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, a, err)
}

func (h *Handler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	req, err := decode[core.AssignmentRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.UpdateAssignment(r.Context(), token(r), req)
	h.reply(w, r, http.StatusOK, a, err)
}

func (h *Handler) unassignPropertyType(w http.ResponseWriter, r *http.Request) {
	kind, err := entityKind(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.UnassignPropertyType(r.Context(), token(r), kind, r.PathValue("propertyType"), r.PathValue("entityType"))
	h.reply(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) listVocabularies(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.ListVocabularies(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, vs, err)
}

func (h *Handler) registerVocabulary(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewVocabulary](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.RegisterVocabulary(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, v, err)
}

func (h *Handler) addVocabularyTerms(w http.ResponseWriter, r *http.Request) {
	req, err := decode[[]domain.VocabularyTerm](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.AddVocabularyTerms(r.Context(), token(r), r.PathValue("code"), req)
	h.reply(w, r, http.StatusOK, v, err)
}

func (h *Handler) deleteVocabularyTerms(w http.ResponseWriter, r *http.Request) {
	req, err := decode[[]string](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.svc.DeleteVocabularyTerms(r.Context(), token(r), r.PathValue("code"), req)
	h.reply(w, r, http.StatusOK, v, err)
}

func (h *Handler) deleteVocabulary(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteVocabulary(r.Context(), token(r), r.PathValue("code")))
}
