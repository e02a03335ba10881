package core

import (
	"context"
	"fmt"
	"io"

	"openbis/internal/authz"
	"openbis/internal/blob"
	"openbis/internal/bo"
	"openbis/pkg/api"
	"openbis/pkg/domain"
)

// AttachmentHolder names the project, experiment or sample owning attachments.
type AttachmentHolder struct {
	Kind domain.RecordKind `json:"kind"`
	ID   string            `json:"id"`
}

func checkHolder(req request, view domain.TransactionView, h AttachmentHolder, allowed authz.RoleSet) error {
	switch h.Kind {
	case domain.RecordProject:
		p, ok := view.FindProject(h.ID)
		if !ok {
			return domain.ErrNotFound{Entity: h.Kind, ID: h.ID}
		}
		return checkProject(req, view, p, allowed)
	case domain.RecordExperiment:
		e, ok := view.FindExperiment(h.ID)
		if !ok {
			return domain.ErrNotFound{Entity: h.Kind, ID: h.ID}
		}
		return checkExperiment(req, view, e, allowed)
	case domain.RecordSample:
		smp, ok := view.FindSample(h.ID)
		if !ok {
			return domain.ErrNotFound{Entity: h.Kind, ID: h.ID}
		}
		return checkSample(req, view, smp, allowed)
	default:
		return domain.UserFailuref("Entities of kind '%s' cannot hold attachments.", h.Kind)
	}
}

// AddAttachment stores a new version of a file for the holder.
func (s *Service) AddAttachment(ctx context.Context, token string, h AttachmentHolder, na bo.NewAttachment) (*api.Attachment, error) {
	var out *api.Attachment
	err := s.operate(ctx, "add_attachment", token, authz.RoleSetUser, func(ctx context.Context, o *operation) error {
		o.fx.entityID = h.ID
		if err := o.view(ctx, func(view domain.TransactionView, req request) error {
			return checkHolder(req, view, h, authz.RoleSetUser)
		}); err != nil {
			return err
		}
		staged, err := o.stage(ctx, []bo.NewAttachment{na})
		if err != nil {
			return err
		}
		return o.update(ctx, func(_ context.Context, tx domain.Transaction, req request, fx *effects) error {
			if err := checkHolder(req, tx, h, authz.RoleSetUser); err != nil {
				return err
			}
			a, err := bo.NewAttachmentBO(tx, req.session).Add(h.Kind, h.ID, staged[0])
			if err != nil {
				return err
			}
			fx.entityID = a.ID
			out = req.tr.Attachment(&a)
			return nil
		})
	})
	return out, err
}

// ListAttachments returns every version of every file of the holder.
func (s *Service) ListAttachments(ctx context.Context, token string, h AttachmentHolder) ([]api.Attachment, error) {
	var out []api.Attachment
	err := s.read(ctx, "list_attachments", token, authz.RoleSetObserver, func(_ context.Context, view domain.TransactionView, req request) error {
		if err := checkHolder(req, view, h, authz.RoleSetObserver); err != nil {
			return err
		}
		out = req.tr.Attachments(view.ListAttachments(h.Kind, h.ID))
		return nil
	})
	return out, err
}

// AttachmentContent is a downloaded attachment. The caller closes Content.
type AttachmentContent struct {
	Attachment  *api.Attachment
	ContentType string
	Content     io.ReadCloser
}

// DownloadAttachment opens one version of a file, the latest when version
// is 0.
func (s *Service) DownloadAttachment(ctx context.Context, token string, h AttachmentHolder, fileName string, version int) (*AttachmentContent, error) {
	var out *AttachmentContent
	err := s.operate(ctx, "download_attachment", token, authz.RoleSetObserver, func(ctx context.Context, o *operation) error {
		var a domain.Attachment
		var dto *api.Attachment
		if err := o.view(ctx, func(view domain.TransactionView, req request) error {
			var err error
			if a, err = findHolderAttachment(req, view, h, fileName, version); err != nil {
				return err
			}
			dto = req.tr.Attachment(&a)
			return nil
		}); err != nil {
			return err
		}
		info, rc, err := s.blobs.Get(ctx, a.BlobKey)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", a.BlobKey, err)
		}
		out = &AttachmentContent{Attachment: dto, ContentType: info.ContentType, Content: rc}
		return nil
	})
	return out, err
}

// AttachmentURL returns a presigned download URL for drivers that support
// one; other drivers report blob.ErrUnsupported.
func (s *Service) AttachmentURL(ctx context.Context, token string, h AttachmentHolder, fileName string, version int) (string, error) {
	var url string
	err := s.operate(ctx, "attachment_url", token, authz.RoleSetObserver, func(ctx context.Context, o *operation) error {
		var a domain.Attachment
		if err := o.view(ctx, func(view domain.TransactionView, req request) error {
			var err error
			a, err = findHolderAttachment(req, view, h, fileName, version)
			return err
		}); err != nil {
			return err
		}
		var err error
		url, err = s.blobs.PresignURL(ctx, a.BlobKey, blob.SignedURLOptions{Method: "GET"})
		return err
	})
	return url, err
}

func findHolderAttachment(req request, view domain.TransactionView, h AttachmentHolder, fileName string, version int) (domain.Attachment, error) {
	if err := checkHolder(req, view, h, authz.RoleSetObserver); err != nil {
		return domain.Attachment{}, err
	}
	return bo.FindAttachment(view, h.Kind, h.ID, fileName, version)
}
