package bo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"openbis/internal/blob"
	"openbis/pkg/domain"
)

// AttachmentBlobs is the part of a blob store attachments need.
type AttachmentBlobs interface {
	Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error)
	Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// NewAttachment is a file to attach to a project, experiment or sample.
type NewAttachment struct {
	FileName    string `json:"file_name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"content"`
}

// StagedAttachment is attachment content already in the blob store that
// waits for AttachmentBO.Add to record it.
type StagedAttachment struct {
	FileName    string
	Title       string
	Description string
	BlobKey     string
	Size        int64
}

// StageAttachment writes the content of na under a fresh key. It runs before
// the transaction that records the attachment; a caller whose transaction
// fails deletes the staged blob.
func StageAttachment(ctx context.Context, blobs AttachmentBlobs, na NewAttachment) (StagedAttachment, error) {
	name, err := attachmentFileName(na.FileName)
	if err != nil {
		return StagedAttachment{}, err
	}
	if blobs == nil {
		return StagedAttachment{}, fmt.Errorf("no attachment store configured")
	}
	key := fmt.Sprintf("attachments/%s/%s", uuid.NewString(), name)
	info, err := blobs.Put(ctx, key, bytes.NewReader(na.Content), blob.PutOptions{
		ContentType: na.ContentType,
		Metadata:    map[string]string{"file_name": name},
	})
	if err != nil {
		return StagedAttachment{}, fmt.Errorf("store attachment content: %w", err)
	}
	return StagedAttachment{
		FileName:    name,
		Title:       na.Title,
		Description: na.Description,
		BlobKey:     key,
		Size:        info.Size,
	}, nil
}

func attachmentFileName(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", domain.UserFailuref("Invalid attachment file name '%s'.", fileName)
	}
	return name, nil
}

// AttachmentBO records versioned attachments. Metadata lives in the
// transaction, content in the blob store.
type AttachmentBO struct {
	base
}

// NewAttachmentBO constructs an AttachmentBO.
func NewAttachmentBO(tx domain.Transaction, session Session) *AttachmentBO {
	return &AttachmentBO{base: base{tx: tx, session: session}}
}

var attachmentHolders = map[domain.RecordKind]bool{
	domain.RecordProject:    true,
	domain.RecordExperiment: true,
	domain.RecordSample:     true,
}

func (b *AttachmentBO) holderExists(kind domain.RecordKind, id string) bool {
	switch kind {
	case domain.RecordProject:
		_, ok := b.tx.FindProject(id)
		return ok
	case domain.RecordExperiment:
		_, ok := b.tx.FindExperiment(id)
		return ok
	case domain.RecordSample:
		_, ok := b.tx.FindSample(id)
		return ok
	}
	return false
}

// Add records staged content as the next version of its file for the
// holder. Versions start at 1 and increase per file name.
func (b *AttachmentBO) Add(kind domain.RecordKind, holderID string, st StagedAttachment) (domain.Attachment, error) {
	if !attachmentHolders[kind] {
		return domain.Attachment{}, fmt.Errorf("%s cannot hold attachments", kind)
	}
	if !b.holderExists(kind, holderID) {
		return domain.Attachment{}, domain.ErrNotFound{Entity: kind, ID: holderID}
	}
	name, err := attachmentFileName(st.FileName)
	if err != nil {
		return domain.Attachment{}, err
	}
	if st.BlobKey == "" {
		return domain.Attachment{}, fmt.Errorf("attachment %s has no content", name)
	}
	version := 1
	for _, a := range b.tx.ListAttachments(kind, holderID) {
		if a.FileName == name && a.Version >= version {
			version = a.Version + 1
		}
	}
	return b.tx.CreateAttachment(domain.Attachment{
		HolderKind:    kind,
		HolderID:      holderID,
		FileName:      name,
		Version:       version,
		Title:         st.Title,
		Description:   st.Description,
		BlobKey:       st.BlobKey,
		Size:          st.Size,
		RegistratorID: b.registrator(),
	})
}

// Find returns the requested version of a file, or the latest one when version is 0.
func (b *AttachmentBO) Find(kind domain.RecordKind, holderID, fileName string, version int) (domain.Attachment, error) {
	return FindAttachment(b.tx, kind, holderID, fileName, version)
}

// FindAttachment looks an attachment version up in view. Version 0 selects
// the latest version.
func FindAttachment(view domain.TransactionView, kind domain.RecordKind, holderID, fileName string, version int) (domain.Attachment, error) {
	var found *domain.Attachment
	for _, a := range view.ListAttachments(kind, holderID) {
		if a.FileName != fileName {
			continue
		}
		if version > 0 && a.Version == version {
			return a, nil
		}
		if version == 0 && (found == nil || a.Version > found.Version) {
			found = &a
		}
	}
	if found == nil {
		return domain.Attachment{}, domain.UserFailuref("Attachment '%s' (version %d) does not exist.", fileName, version)
	}
	return *found, nil
}

// DeleteAll removes attachment metadata of the holder and returns the blob
// keys of the removed content.
func (b *AttachmentBO) DeleteAll(kind domain.RecordKind, holderID string) ([]string, error) {
	var keys []string
	for _, a := range b.tx.ListAttachments(kind, holderID) {
		if err := b.tx.DeleteAttachment(a.ID); err != nil {
			return nil, err
		}
		keys = append(keys, a.BlobKey)
	}
	return keys, nil
}
