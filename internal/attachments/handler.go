package attachments

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenPMS/pms/internal/approval"
	"github.com/OpenPMS/pms/internal/auth"
)

// maxUploadBytes caps multipart uploads at 32MB.
const maxUploadBytes = 32 << 20

type Handler struct {
	service *AttachmentService
}

func NewHandler(service *AttachmentService) *Handler {
	return &Handler{service: service}
}

// Register mounts the attachment endpoints on the given router group.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/approval-requests/:requestID/attachments", h.HandleUpload)
	api.GET("/approval-requests/:requestID/attachments", h.HandleList)
	api.GET("/attachments/:attachmentID/download", h.HandleDownload)
	api.DELETE("/attachments/:attachmentID", h.HandleDelete)
}

// HandleUpload handles POST /api/approval-requests/{requestID}/attachments
// Multipart form field: file
func (h *Handler) HandleUpload(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	dto, err := h.service.Attach(c.Request.Context(), requestID, actor,
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		h.renderError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, dto)
}

// HandleList handles GET /api/approval-requests/{requestID}/attachments
func (h *Handler) HandleList(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	requestID, err := uuid.Parse(c.Param("requestID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	dtos, err := h.service.ListForRequest(c.Request.Context(), requestID)
	if err != nil {
		h.renderError(c, err, "failed to list attachments")
		return
	}
	c.JSON(http.StatusOK, dtos)
}

// HandleDownload handles GET /api/attachments/{attachmentID}/download
func (h *Handler) HandleDownload(c *gin.Context) {
	if _, ok := auth.MustActor(c); !ok {
		return
	}

	attachmentID, err := uuid.Parse(c.Param("attachmentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment ID"})
		return
	}

	reader, contentType, fileName, err := h.service.Open(c.Request.Context(), attachmentID)
	if err != nil {
		h.renderError(c, err, "failed to open attachment")
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to stream attachment",
			"attachment_id", attachmentID, "error", err)
	}
}

// HandleDelete handles DELETE /api/attachments/{attachmentID}
func (h *Handler) HandleDelete(c *gin.Context) {
	actor, ok := auth.MustActor(c)
	if !ok {
		return
	}

	attachmentID, err := uuid.Parse(c.Param("attachmentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attachment ID"})
		return
	}

	if err := h.service.Remove(c.Request.Context(), attachmentID, actor); err != nil {
		h.renderError(c, err, "failed to delete attachment")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) renderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, approval.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "approval request is closed"})
	case errors.Is(err, approval.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	default:
		slog.ErrorContext(c.Request.Context(), fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
