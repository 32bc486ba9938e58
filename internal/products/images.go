package products

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/pkg/response"
	"github.com/stocktally/backend/pkg/storage"
)

// UploadImage handles POST /products/:id/image (multipart form field
// "file"). The object is uploaded server-side; no presigned upload URLs.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	orgID := middleware.OrganizationID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}

	p, err := h.store.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("load product for image upload", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to upload image")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	if !storage.ValidateImageFileType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "invalid file type: only jpg, png, webp, gif allowed")
		return
	}

	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := file.Header.Get("Content-Type"); ct != "" {
		if _, ok := storage.AllowedImageTypes[ct]; ok {
			contentType = ct
		}
	}

	key := storage.ProductImageKey(orgID.String(), id.String(), file.Filename)
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	if err := h.s3.Upload(c.Request.Context(), h.s3.ImagesBucket(), key, contentType, rc, file.Size); err != nil {
		h.logger.Error("upload image", zap.Error(err), zap.String("product_id", id.String()), zap.String("key", key))
		response.Internal(c, "failed to upload image to storage")
		return
	}

	oldKey := p.ImageKey
	if _, err := h.store.SetImageKey(c.Request.Context(), orgID, id, key); err != nil {
		h.logger.Error("store image key", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to upload image")
		return
	}
	// Replaced image: removing the old object is best-effort.
	if oldKey != "" && oldKey != key {
		if err := h.s3.DeleteImage(c.Request.Context(), oldKey); err != nil {
			h.logger.Warn("delete replaced image", zap.Error(err), zap.String("key", oldKey))
		}
	}

	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ImagesBucket(), key, expire)
	if err != nil {
		h.logger.Warn("presign uploaded image", zap.Error(err), zap.String("key", key))
	}

	response.Created(c, gin.H{
		"image_key":  key,
		"url":        url,
		"expires_in": int(expire.Seconds()),
	})
}

// GetImage handles GET /products/:id/image: returns a presigned download
// URL for the product's image.
func (h *Handler) GetImage(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	orgID := middleware.OrganizationID(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}

	p, err := h.store.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "product not found")
			return
		}
		h.logger.Error("load product for image", zap.Error(err), zap.String("product_id", id.String()))
		response.Internal(c, "failed to load image")
		return
	}
	if p.ImageKey == "" {
		response.NotFound(c, "product has no image")
		return
	}

	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ImagesBucket(), p.ImageKey, expire)
	if err != nil {
		h.logger.Error("presign image", zap.Error(err), zap.String("key", p.ImageKey))
		response.Internal(c, "failed to generate image URL")
		return
	}

	response.OK(c, gin.H{
		"url":        url,
		"expires_in": int(expire.Seconds()),
	})
}
