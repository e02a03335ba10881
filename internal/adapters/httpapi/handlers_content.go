package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"openbis/internal/bo"
	"openbis/internal/core"
	"openbis/internal/grid"
	"openbis/pkg/domain"
)

func attachmentHolder(r *http.Request) core.AttachmentHolder {
	return core.AttachmentHolder{Kind: recordKind(r), ID: r.PathValue("id")}
}

func (h *Handler) listAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := h.svc.ListAttachments(r.Context(), token(r), attachmentHolder(r))
	h.reply(w, r, http.StatusOK, atts, err)
}

func (h *Handler) addAttachment(w http.ResponseWriter, r *http.Request) {
	req, err := decode[bo.NewAttachment](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	a, err := h.svc.AddAttachment(r.Context(), token(r), attachmentHolder(r), req)
	h.reply(w, r, http.StatusCreated, a, err)
}

func (h *Handler) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	version, err := queryInt(r, "version")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	content, err := h.svc.DownloadAttachment(r.Context(), token(r), attachmentHolder(r), r.PathValue("file"), version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() { _ = content.Content.Close() }()
	contentType := content.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+content.Attachment.FileName+`"`)
	w.Header().Set("X-Attachment-Version", strconv.Itoa(content.Attachment.Version))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Content); err != nil {
		h.logger.Warn("attachment download interrupted", "file", content.Attachment.FileName, "error", err)
	}
}

func (h *Handler) attachmentURL(w http.ResponseWriter, r *http.Request) {
	version, err := queryInt(r, "version")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	url, err := h.svc.AttachmentURL(r.Context(), token(r), attachmentHolder(r), r.PathValue("file"), version)
	h.reply(w, r, http.StatusOK, map[string]string{"url": url}, err)
}

// gridRequest is the body of the grid endpoints. The entity kind comes from
// the path.
type gridRequest struct {
	Source        core.GridSource `json:"source"`
	Criteria      grid.Criteria   `json:"criteria"`
	LineSeparator string          `json:"line_separator,omitempty"`
}

func decodeGrid(r *http.Request) (gridRequest, error) {
	kind, err := entityKind(r)
	if err != nil {
		return gridRequest{}, err
	}
	req, err := decode[gridRequest](r)
	if err != nil {
		return req, err
	}
	req.Source.Kind = kind
	return req, nil
}

func (h *Handler) gridPage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGrid(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, tok, src := r.Context(), token(r), req.Source
	var page any
	switch src.Kind {
	case domain.KindSample:
		page, err = h.svc.SampleGrid(ctx, tok, src.Samples, req.Criteria)
	case domain.KindExperiment:
		page, err = h.svc.ExperimentGrid(ctx, tok, src.ProjectIdentifier, src.ExperimentType, req.Criteria)
	case domain.KindMaterial:
		page, err = h.svc.MaterialGrid(ctx, tok, src.MaterialType, req.Criteria)
	case domain.KindDataSet:
		page, err = h.svc.DataSetGrid(ctx, tok, src.DataSets, req.Criteria)
	}
	h.reply(w, r, http.StatusOK, page, err)
}

func (h *Handler) exportTSV(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGrid(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tsv, err := h.svc.ExportTSV(r.Context(), token(r), core.ExportRequest{
		Source:        req.Source,
		Criteria:      req.Criteria,
		LineSeparator: req.LineSeparator,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/tab-separated-values")
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ToLower(string(req.Source.Kind))+`.tsv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, tsv)
}

func (h *Handler) enqueueExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	req, err := decode[core.ExportRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	record, err := h.exports.Enqueue(r.Context(), token(r), req)
	h.reply(w, r, http.StatusAccepted, record, err)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	record, err := h.exports.Get(r.Context(), token(r), r.PathValue("id"))
	h.reply(w, r, http.StatusOK, record, err)
}

func (h *Handler) exportContent(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.NotFound(w, r)
		return
	}
	record, rc, err := h.exports.Open(r.Context(), token(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()
	w.Header().Set("Content-Type", record.Artifact.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+record.ID+`.tsv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("export download interrupted", "export", record.ID, "error", err)
	}
}
