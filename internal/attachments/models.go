package attachments

import (
	"github.com/google/uuid"

	base "github.com/OpenPMS/pms/internal/model"
)

// Attachment is the metadata row for a file attached to an approval request.
// The binary itself lives behind the configured StorageDriver.
type Attachment struct {
	base.BaseModel
	ApprovalRequestID uuid.UUID `gorm:"type:uuid;not null;index:idx_attachments_request" json:"approvalRequestId"`
	UploadedByID      uuid.UUID `gorm:"type:uuid;not null" json:"uploadedById"`
	FileName          string    `gorm:"not null" json:"fileName"`
	StorageKey        string    `gorm:"not null;uniqueIndex" json:"-"`
	ContentType       string    `gorm:"not null" json:"contentType"`
	SizeBytes         int64     `gorm:"not null" json:"sizeBytes"`
}

// AttachmentDTO is the API representation of an attachment, including a
// resolvable download URL.
type AttachmentDTO struct {
	ID                uuid.UUID `json:"id"`
	ApprovalRequestID uuid.UUID `json:"approvalRequestId"`
	UploadedByID      uuid.UUID `json:"uploadedById"`
	FileName          string    `json:"fileName"`
	ContentType       string    `json:"contentType"`
	SizeBytes         int64     `json:"sizeBytes"`
	URL               string    `json:"url"`
}
