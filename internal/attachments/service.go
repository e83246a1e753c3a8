package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	approvalmodel "github.com/OpenPMS/pms/internal/approval/model"
	"github.com/OpenPMS/pms/internal/model"
)

// AttachmentService stores supporting documents for approval requests. The
// binary goes through the configured StorageDriver; the metadata row lands in
// the same database as the request it belongs to.
type AttachmentService struct {
	db     *gorm.DB
	driver StorageDriver
}

func NewAttachmentService(db *gorm.DB, driver StorageDriver) *AttachmentService {
	return &AttachmentService{db: db, driver: driver}
}

// Attach saves the file and records its metadata against the request. Only
// open requests accept new attachments; a closed request's evidence set is
// frozen with it.
func (s *AttachmentService) Attach(ctx context.Context, requestID uuid.UUID, actor model.Actor, filename string, reader io.Reader, size int64, mime string) (*AttachmentDTO, error) {
	var request approvalmodel.ApprovalRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", requestID).Error; err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	if request.Status.IsTerminal() {
		return nil, approval.ErrRequestNotPending
	}

	if mime == "" {
		mime = "application/octet-stream"
	}

	attachment := &Attachment{
		ApprovalRequestID: requestID,
		UploadedByID:      actor.UserID,
		FileName:          filename,
		StorageKey:        fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(filename)),
		ContentType:       mime,
		SizeBytes:         size,
	}

	if err := s.driver.Save(ctx, attachment.StorageKey, reader, mime); err != nil {
		return nil, fmt.Errorf("storage driver failed: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		if delErr := s.driver.Delete(ctx, attachment.StorageKey); delErr != nil {
			slog.WarnContext(ctx, "failed to clean up orphaned attachment binary",
				"key", attachment.StorageKey, "error", delErr)
		}
		return nil, fmt.Errorf("failed to save attachment metadata: %w", err)
	}

	slog.InfoContext(ctx, "attachment stored",
		"attachment_id", attachment.ID,
		"request_id", requestID,
		"file_name", filename,
	)
	return s.toDTO(ctx, attachment)
}

// ListForRequest returns the metadata of every attachment on the request.
func (s *AttachmentService) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]AttachmentDTO, error) {
	var rows []Attachment
	err := s.db.WithContext(ctx).
		Where("approval_request_id = ?", requestID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	dtos := make([]AttachmentDTO, 0, len(rows))
	for i := range rows {
		dto, err := s.toDTO(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, *dto)
	}
	return dtos, nil
}

// Open streams an attachment back. Returns the content along with its content
// type and original file name for the Content-Disposition header.
func (s *AttachmentService) Open(ctx context.Context, attachmentID uuid.UUID) (io.ReadCloser, string, string, error) {
	var attachment Attachment
	if err := s.db.WithContext(ctx).First(&attachment, "id = ?", attachmentID).Error; err != nil {
		return nil, "", "", fmt.Errorf("failed to load attachment: %w", err)
	}

	reader, contentType, err := s.driver.Get(ctx, attachment.StorageKey)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to open attachment binary: %w", err)
	}
	return reader, contentType, attachment.FileName, nil
}

// Remove deletes an attachment. Only the uploader or an administrator may
// remove one, and only while the request is still open.
func (s *AttachmentService) Remove(ctx context.Context, attachmentID uuid.UUID, actor model.Actor) error {
	var attachment Attachment
	if err := s.db.WithContext(ctx).First(&attachment, "id = ?", attachmentID).Error; err != nil {
		return fmt.Errorf("failed to load attachment: %w", err)
	}

	if attachment.UploadedByID != actor.UserID && !actor.IsAdministrator {
		return approval.ErrUnauthorized
	}

	var request approvalmodel.ApprovalRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", attachment.ApprovalRequestID).Error; err != nil {
		return fmt.Errorf("failed to load approval request: %w", err)
	}
	if request.Status.IsTerminal() {
		return approval.ErrRequestNotPending
	}

	if err := s.db.WithContext(ctx).Delete(&attachment).Error; err != nil {
		return fmt.Errorf("failed to delete attachment metadata: %w", err)
	}
	if err := s.driver.Delete(ctx, attachment.StorageKey); err != nil {
		// Metadata row is gone; an orphaned binary is harmless but worth noting.
		slog.WarnContext(ctx, "failed to delete attachment binary",
			"key", attachment.StorageKey, "error", err)
	}
	return nil
}

func (s *AttachmentService) toDTO(ctx context.Context, attachment *Attachment) (*AttachmentDTO, error) {
	url, err := s.driver.GenerateURL(ctx, attachment.StorageKey, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate attachment URL: %w", err)
	}
	return &AttachmentDTO{
		ID:                attachment.ID,
		ApprovalRequestID: attachment.ApprovalRequestID,
		UploadedByID:      attachment.UploadedByID,
		FileName:          attachment.FileName,
		ContentType:       attachment.ContentType,
		SizeBytes:         attachment.SizeBytes,
		URL:               url,
	}, nil
}
