package httpapi

import (
	"net/http"
	"strconv"

	"openbis/internal/bo"
	"openbis/internal/core"
	"openbis/internal/datastore"
)

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, projects, err)
}

func (h *Handler) registerProject(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewProject](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.RegisterProject(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, p, err)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.ProjectUpdates](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.ProjectID = r.PathValue("id")
	p, err := h.svc.UpdateProject(r.Context(), token(r), req)
	h.reply(w, r, http.StatusOK, p, err)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteProject(r.Context(), token(r), r.PathValue("id"), r.URL.Query().Get("reason"))
	h.reply(w, r, http.StatusNoContent, nil, err)
}

func (h *Handler) listExperiments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	es, err := h.svc.ListExperiments(r.Context(), token(r), q.Get("project"), q.Get("type"))
	h.reply(w, r, http.StatusOK, es, err)
}

func (h *Handler) getExperiment(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetExperiment(r.Context(), token(r), r.URL.Query().Get("identifier"))
	h.reply(w, r, http.StatusOK, e, err)
}

type newExperimentRequest struct {
	bo.NewExperiment
	Attachments []bo.NewAttachment `json:"attachments,omitempty"`
}

func (h *Handler) registerExperiment(w http.ResponseWriter, r *http.Request) {
	req, err := decode[newExperimentRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.svc.RegisterExperiment(r.Context(), token(r), req.NewExperiment, req.Attachments)
	h.reply(w, r, http.StatusCreated, e, err)
}

func (h *Handler) updateExperiment(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.ExperimentUpdates](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.ExperimentID = r.PathValue("id")
	e, err := h.svc.UpdateExperiment(r.Context(), token(r), req)
	h.reply(w, r, http.StatusOK, e, err)
}

func (h *Handler) deleteExperiments(w http.ResponseWriter, r *http.Request) {
	req, err := decode[deleteRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteExperiments(r.Context(), token(r), req.IDs, req.Reason))
}

func sampleCriteria(r *http.Request) (core.ListSampleCriteria, error) {
	q := r.URL.Query()
	c := core.ListSampleCriteria{
		SampleType:           q.Get("type"),
		GroupCode:            q.Get("group"),
		ExperimentIdentifier: q.Get("experiment"),
	}
	if v := q.Get("shared"); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			return c, badRequest{msg: "invalid shared: " + v}
		}
		c.IncludeShared = shared
	}
	return c, nil
}

func (h *Handler) listSamples(w http.ResponseWriter, r *http.Request) {
	c, err := sampleCriteria(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	samples, err := h.svc.ListSamples(r.Context(), token(r), c)
	h.reply(w, r, http.StatusOK, samples, err)
}

func (h *Handler) tryGetSample(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.TryGetSample(r.Context(), token(r), r.URL.Query().Get("identifier"))
	if err == nil && s == nil {
		writeError(w, http.StatusNotFound, "sample not found")
		return
	}
	h.reply(w, r, http.StatusOK, s, err)
}

func (h *Handler) sampleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetSampleInfo(r.Context(), token(r), r.PathValue("id"))
	h.reply(w, r, http.StatusOK, info, err)
}

type newSampleRequest struct {
	bo.NewSample
	Attachments []bo.NewAttachment `json:"attachments,omitempty"`
}

func (h *Handler) registerSample(w http.ResponseWriter, r *http.Request) {
	req, err := decode[newSampleRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.svc.RegisterSample(r.Context(), token(r), req.NewSample, req.Attachments)
	h.reply(w, r, http.StatusCreated, s, err)
}

func (h *Handler) registerSamples(w http.ResponseWriter, r *http.Request) {
	req, err := decode[struct {
		SampleType string         `json:"sample_type"`
		Samples    []bo.NewSample `json:"samples"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	samples, err := h.svc.RegisterSamples(r.Context(), token(r), req.SampleType, req.Samples)
	h.reply(w, r, http.StatusCreated, samples, err)
}

// registerSampleBatch takes a tab separated batch file as the request body.
func (h *Handler) registerSampleBatch(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	samples, err := h.svc.RegisterSamplesFromBatch(r.Context(), token(r), r.URL.Query().Get("type"), body)
	h.reply(w, r, http.StatusCreated, samples, err)
}

func (h *Handler) updateSample(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.SampleUpdates](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req.SampleID = r.PathValue("id")
	s, err := h.svc.UpdateSample(r.Context(), token(r), req)
	h.reply(w, r, http.StatusOK, s, err)
}

func (h *Handler) deleteSamples(w http.ResponseWriter, r *http.Request) {
	req, err := decode[deleteRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteSamples(r.Context(), token(r), req.IDs, req.Reason))
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.ListMaterials(r.Context(), token(r), r.URL.Query().Get("type"))
	h.reply(w, r, http.StatusOK, ms, err)
}

func (h *Handler) registerMaterials(w http.ResponseWriter, r *http.Request) {
	req, err := decode[struct {
		MaterialType string           `json:"material_type"`
		Materials    []bo.NewMaterial `json:"materials"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ms, err := h.svc.RegisterMaterials(r.Context(), token(r), req.MaterialType, req.Materials)
	h.reply(w, r, http.StatusCreated, ms, err)
}

func (h *Handler) deleteMaterials(w http.ResponseWriter, r *http.Request) {
	req, err := decode[deleteRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteMaterials(r.Context(), token(r), req.IDs, req.Reason))
}

func (h *Handler) listDataStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.ListDataStores(r.Context(), token(r))
	h.reply(w, r, http.StatusOK, stores, err)
}

func (h *Handler) registerDataStore(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewDataStore](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ds, err := h.svc.RegisterDataStore(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, ds, err)
}

func dataSetHolder(r *http.Request) core.DataSetHolder {
	q := r.URL.Query()
	return core.DataSetHolder{Kind: domainRecordKind(q.Get("holder_kind")), ID: q.Get("holder_id")}
}

func (h *Handler) listDataSets(w http.ResponseWriter, r *http.Request) {
	dss, err := h.svc.ListDataSets(r.Context(), token(r), dataSetHolder(r))
	h.reply(w, r, http.StatusOK, dss, err)
}

func (h *Handler) registerDataSet(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewDataSet](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ds, err := h.svc.RegisterDataSet(r.Context(), token(r), req)
	h.reply(w, r, http.StatusCreated, ds, err)
}

type dataSetCodesRequest struct {
	Codes  []string                `json:"codes"`
	Reason string                  `json:"reason,omitempty"`
	Upload datastore.UploadContext `json:"upload"`
}

func (h *Handler) deleteDataSets(w http.ResponseWriter, r *http.Request) {
	req, err := decode[dataSetCodesRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, http.StatusNoContent, nil, h.svc.DeleteDataSets(r.Context(), token(r), req.Codes, req.Reason))
}

func (h *Handler) uploadDataSets(w http.ResponseWriter, r *http.Request) {
	req, err := decode[dataSetCodesRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	message, err := h.svc.UploadDataSets(r.Context(), token(r), req.Codes, req.Upload)
	h.reply(w, r, http.StatusOK, map[string]string{"message": message}, err)
}
