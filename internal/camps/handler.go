package camps

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/response"
	"github.com/medcamp-hub/backend/pkg/storage"
)

// CreateRequest is the body for POST /camps.
type CreateRequest struct {
	Title                  string   `json:"title"`
	Date                   string   `json:"date"`
	Time                   string   `json:"time"`
	Location               string   `json:"location"`
	Fees                   float64  `json:"fees"`
	HealthcareProfessional string   `json:"healthcareProfessional"`
	Description            string   `json:"description"`
	Images                 []string `json:"images"`
}

// UploadURLRequest is the body for POST /camps/images/upload-url.
type UploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// ImageStore uploads camp images. *storage.S3 implements it.
type ImageStore interface {
	UploadImage(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	PresignImageUpload(ctx context.Context, key, contentType string) (uploadURL, publicURL string, err error)
}

// Handler handles camp HTTP endpoints.
type Handler struct {
	registry *Registry
	images   ImageStore
	logger   *zap.Logger
}

// NewHandler creates a camp handler. images may be nil when S3 is not configured.
func NewHandler(registry *Registry, images ImageStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, images: images, logger: logger}
}

// Create handles POST /camps (organizer only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	camp := &models.Camp{
		Title:                  req.Title,
		Date:                   req.Date,
		Time:                   req.Time,
		Location:               req.Location,
		Fees:                   req.Fees,
		HealthcareProfessional: req.HealthcareProfessional,
		Description:            req.Description,
		Images:                 req.Images,
		OrganizerEmail:         models.NormalizeEmail(middleware.UserEmail(c)),
	}
	if err := h.registry.Create(c.Request.Context(), camp); err != nil {
		h.logError("create camp failed", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"insertedId": camp.ID, "camp": camp})
}

// List handles GET /camps.
func (h *Handler) List(c *gin.Context) {
	list, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logError("list camps failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /camps/:id.
func (h *Handler) GetByID(c *gin.Context) {
	camp, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, camp)
}

// Update handles PUT /camps/:id. Unknown ids are created.
func (h *Handler) Update(c *gin.Context) {
	var p Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id := c.Param("id")
	upserted, err := h.registry.Update(c.Request.Context(), id, p)
	if err != nil {
		h.logError("update camp failed", err, zap.String("camp_id", id))
		response.Error(c, err)
		return
	}
	camp, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"upserted": upserted, "camp": camp})
}

// Delete handles DELETE /camps/:id and cascades to the camp's registrations.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	res, err := h.registry.Delete(c.Request.Context(), id)
	if err != nil {
		h.logError("delete camp failed", err, zap.String("camp_id", id))
		response.Error(c, err)
		return
	}
	h.logger.Info("camp deleted", zap.String("camp_id", id), zap.Int64("registrations_deleted", res.RegistrationsDeleted))
	response.OK(c, res)
}

// Reconcile handles POST /camps/:id/reconcile: recount participant_count from registrations.
func (h *Handler) Reconcile(c *gin.Context) {
	id := c.Param("id")
	n, err := h.registry.Reconcile(c.Request.Context(), id)
	if err != nil {
		h.logError("reconcile camp failed", err, zap.String("camp_id", id))
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"campId": id, "participant_count": n})
}

// UploadImage handles POST /camps/images (multipart field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+1024*1024)
	fh, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file required")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, "image exceeds 5MB")
		return
	}
	contentType, ok := storage.ImageContentType(fh.Header.Get("Content-Type"), fh.Filename)
	if !ok {
		response.BadRequest(c, "unsupported image type")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read image")
		return
	}
	defer f.Close()

	key := storage.CampImageKey(uuid.NewString(), fh.Filename, time.Now().UTC())
	url, err := h.images.UploadImage(c.Request.Context(), key, contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("camp image upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload image")
		return
	}
	response.Created(c, gin.H{"url": url, "key": key})
}

// ImageUploadURL handles POST /camps/images/upload-url: a presigned PUT for direct upload.
func (h *Handler) ImageUploadURL(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contentType, ok := storage.ImageContentType(req.ContentType, req.Filename)
	if !ok {
		response.BadRequest(c, "unsupported image type")
		return
	}
	key := storage.CampImageKey(uuid.NewString(), req.Filename, time.Now().UTC())
	uploadURL, publicURL, err := h.images.PresignImageUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign camp image failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate upload url")
		return
	}
	response.OK(c, gin.H{"upload_url": uploadURL, "url": publicURL, "key": key, "content_type": contentType})
}

// logError logs store failures; client errors are already visible in the request log.
func (h *Handler) logError(msg string, err error, fields ...zap.Field) {
	if apperr.KindOf(err) == apperr.KindUpstream {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}
