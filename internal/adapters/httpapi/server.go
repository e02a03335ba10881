// Package httpapi exposes the service as JSON over HTTP under /api/v1. The
// session token travels in the Authorization header as a bearer token.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"openbis/internal/adapters/exports"
	"openbis/internal/authz"
	"openbis/internal/blob"
	"openbis/internal/core"
	"openbis/pkg/domain"
)

const maxBodyBytes = 32 << 20

// Handler serves the API.
type Handler struct {
	svc     *core.Service
	exports *exports.Worker
	metrics http.Handler
	logger  core.Logger
	mux     *http.ServeMux
}

// Option customizes a Handler.
type Option func(*Handler)

// WithExports enables the asynchronous export endpoints.
func WithExports(w *exports.Worker) Option {
	return func(h *Handler) { h.exports = w }
}

// WithMetricsHandler serves m under /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger used for responses that fail on the server.
func WithLogger(l core.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler builds the routing table over svc.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, logger: nopLogger{}, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	m := h.mux
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		m.Handle("GET /metrics", h.metrics)
	}

	m.HandleFunc("POST /api/v1/sessions", h.login)
	m.HandleFunc("DELETE /api/v1/sessions", h.logout)
	m.HandleFunc("GET /api/v1/session", h.session)
	m.HandleFunc("GET /api/v1/instance", h.instance)

	m.HandleFunc("GET /api/v1/groups", h.listGroups)
	m.HandleFunc("POST /api/v1/groups", h.registerGroup)
	m.HandleFunc("PUT /api/v1/groups/{id}", h.updateGroup)
	m.HandleFunc("DELETE /api/v1/groups/{id}", h.deleteGroup)
	m.HandleFunc("GET /api/v1/persons", h.listPersons)
	m.HandleFunc("POST /api/v1/persons", h.registerPerson)
	m.HandleFunc("PUT /api/v1/persons/me/home-group", h.changeHomeGroup)
	m.HandleFunc("GET /api/v1/roles", h.listRoles)
	m.HandleFunc("POST /api/v1/roles", h.addRole)
	m.HandleFunc("DELETE /api/v1/roles", h.deleteRole)
	m.HandleFunc("GET /api/v1/events", h.listEvents)

	m.HandleFunc("GET /api/v1/types/{kind}", h.listEntityTypes)
	m.HandleFunc("POST /api/v1/types/{kind}", h.registerEntityType)
	m.HandleFunc("PUT /api/v1/types/{kind}/{code}", h.updateEntityType)
	m.HandleFunc("DELETE /api/v1/types/{kind}/{code}", h.deleteEntityType)
	m.HandleFunc("GET /api/v1/property-types", h.listPropertyTypes)
	m.HandleFunc("POST /api/v1/property-types", h.registerPropertyType)
	m.HandleFunc("PUT /api/v1/property-types/{code}", h.updatePropertyType)
	m.HandleFunc("DELETE /api/v1/property-types/{code}", h.deletePropertyType)
	m.HandleFunc("POST /api/v1/assignments", h.assignPropertyType)
	m.HandleFunc("PUT /api/v1/assignments", h.updateAssignment)
	m.HandleFunc("DELETE /api/v1/assignments/{kind}/{propertyType}/{entityType}", h.unassignPropertyType)
	m.HandleFunc("GET /api/v1/vocabularies", h.listVocabularies)
	m.HandleFunc("POST /api/v1/vocabularies", h.registerVocabulary)
	m.HandleFunc("POST /api/v1/vocabularies/{code}/terms", h.addVocabularyTerms)
	m.HandleFunc("POST /api/v1/vocabularies/{code}/terms/delete", h.deleteVocabularyTerms)
	m.HandleFunc("DELETE /api/v1/vocabularies/{code}", h.deleteVocabulary)

	m.HandleFunc("GET /api/v1/projects", h.listProjects)
	m.HandleFunc("POST /api/v1/projects", h.registerProject)
	m.HandleFunc("PUT /api/v1/projects/{id}", h.updateProject)
	m.HandleFunc("DELETE /api/v1/projects/{id}", h.deleteProject)
	m.HandleFunc("GET /api/v1/experiments", h.listExperiments)
	m.HandleFunc("GET /api/v1/experiments/lookup", h.getExperiment)
	m.HandleFunc("POST /api/v1/experiments", h.registerExperiment)
	m.HandleFunc("PUT /api/v1/experiments/{id}", h.updateExperiment)
	m.HandleFunc("POST /api/v1/experiments/delete", h.deleteExperiments)
	m.HandleFunc("GET /api/v1/samples", h.listSamples)
	m.HandleFunc("GET /api/v1/samples/lookup", h.tryGetSample)
	m.HandleFunc("GET /api/v1/samples/{id}/info", h.sampleInfo)
	m.HandleFunc("POST /api/v1/samples", h.registerSample)
	m.HandleFunc("POST /api/v1/samples/bulk", h.registerSamples)
	m.HandleFunc("POST /api/v1/samples/batch", h.registerSampleBatch)
	m.HandleFunc("PUT /api/v1/samples/{id}", h.updateSample)
	m.HandleFunc("POST /api/v1/samples/delete", h.deleteSamples)
	m.HandleFunc("GET /api/v1/materials", h.listMaterials)
	m.HandleFunc("POST /api/v1/materials", h.registerMaterials)
	m.HandleFunc("POST /api/v1/materials/delete", h.deleteMaterials)

	m.HandleFunc("GET /api/v1/data-stores", h.listDataStores)
	m.HandleFunc("POST /api/v1/data-stores", h.registerDataStore)
	m.HandleFunc("GET /api/v1/data-sets", h.listDataSets)
	m.HandleFunc("POST /api/v1/data-sets", h.registerDataSet)
	m.HandleFunc("POST /api/v1/data-sets/delete", h.deleteDataSets)
	m.HandleFunc("POST /api/v1/data-sets/upload", h.uploadDataSets)

	m.HandleFunc("GET /api/v1/attachments/{kind}/{id}", h.listAttachments)
	m.HandleFunc("POST /api/v1/attachments/{kind}/{id}", h.addAttachment)
	m.HandleFunc("GET /api/v1/attachments/{kind}/{id}/{file}", h.downloadAttachment)
	m.HandleFunc("GET /api/v1/attachments/{kind}/{id}/{file}/url", h.attachmentURL)

	m.HandleFunc("POST /api/v1/grids/{kind}", h.gridPage)
	m.HandleFunc("POST /api/v1/grids/{kind}/tsv", h.exportTSV)
	m.HandleFunc("POST /api/v1/exports", h.enqueueExport)
	m.HandleFunc("GET /api/v1/exports/{id}", h.getExport)
	m.HandleFunc("GET /api/v1/exports/{id}/content", h.exportContent)
}

// token extracts the bearer token of the request.
func token(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

// decode reads a JSON body into a T. An empty body leaves the zero value.
func decode[T any](r *http.Request) (T, error) {
	var v T
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&v)
	if err != nil && !errors.Is(err, io.EOF) {
		return v, badRequest{msg: "invalid request payload: " + err.Error()}
	}
	return v, nil
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func entityKind(r *http.Request) (domain.EntityKind, error) {
	kind := domain.EntityKind(strings.ToUpper(strings.ReplaceAll(r.PathValue("kind"), "-", "_")))
	if !kind.Valid() {
		return "", badRequest{msg: "unknown entity kind " + r.PathValue("kind")}
	}
	return kind, nil
}

func recordKind(r *http.Request) domain.RecordKind {
	return domainRecordKind(r.PathValue("kind"))
}

// domainRecordKind accepts "data-set", "DATA_SET" and "data_set" alike.
func domainRecordKind(s string) domain.RecordKind {
	return domain.RecordKind(strings.ToLower(strings.ReplaceAll(s, "-", "_")))
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest{msg: "invalid " + name + ": " + v}
	}
	return n, nil
}

// status maps service errors to HTTP status codes.
func status(err error) int {
	var (
		bad      badRequest
		notFound domain.ErrNotFound
		stale    domain.StaleModificationError
		rules    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &bad), domain.IsUserFailure(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, authz.ErrUnauthorized):
		return http.StatusForbidden
	case errors.As(err, &notFound), errors.Is(err, exports.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stale), errors.Is(err, exports.ErrNotReady):
		return http.StatusConflict
	case errors.As(err, &rules):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exports.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Internal errors are logged and
// answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, code, http.StatusText(code))
		return
	}
	writeError(w, code, err.Error())
}

// reply writes v with status on success and maps err otherwise.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, code int, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, code, v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
