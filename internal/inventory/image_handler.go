package inventory

import (
	"errors"
	"fmt"
	"mime/multipart"
	"slices"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"
	"kasa-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxUploadSize = 5 << 20 // 5MB

// ImageTypes: ürün görselleri için izin verilen tipler
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// UploadFile: multipart "file" alanını depoya yükler, public URL döner.
// Alım fişi yüklemesi de aynı yolu kullanır.
func UploadFile(c *fiber.Ctx, up storage.Uploader, prefix string, allowed []string) (string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "file alanı zorunlu")
	}
	if fh.Size == 0 || fh.Size > maxUploadSize {
		return "", fiber.NewError(fiber.StatusBadRequest, "Dosya boyutu 0 ile 5MB arasında olmalı")
	}

	contentType := strings.ToLower(fh.Header.Get("Content-Type"))
	if !slices.Contains(allowed, contentType) {
		return "", fiber.NewError(fiber.StatusBadRequest, "Desteklenmeyen dosya tipi: "+strings.Join(allowed, ", "))
	}

	return uploadMultipart(c, up, fh, storage.ObjectKey(prefix, fh.Filename), contentType)
}

func uploadMultipart(c *fiber.Ctx, up storage.Uploader, fh *multipart.FileHeader, key, contentType string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Dosya okunamadı")
	}
	defer f.Close()

	url, err := up.Upload(c.UserContext(), key, f, fh.Size, contentType)
	if errors.Is(err, storage.ErrNotConfigured) {
		return "", fiber.NewError(fiber.StatusServiceUnavailable, "Dosya deposu yapılandırılmamış")
	}
	if err != nil {
		zap.L().Error("dosya yüklenemedi", zap.String("key", key), zap.Error(err))
		return "", fiber.NewError(fiber.StatusBadGateway, "Dosya yüklenemedi")
	}
	return url, nil
}

// POST /api/admin/products/:id/image (multipart, alan adı: file)
func UploadProductImageHandler(up storage.Uploader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Preload("BaseUnit").First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		oldURL := p.ImageURL

		url, err := UploadFile(c, up, fmt.Sprintf("products/%d", p.ID), ImageTypes)
		if err != nil {
			return err
		}

		if err := database.DB.Model(&p).Update("image_url", url).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Görsel kaydedilemedi")
		}
		p.ImageURL = url

		audit.Record(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Ürün görseli güncellendi: %s", p.Name),
			Before:      fiber.Map{"image_url": oldURL},
			After:       fiber.Map{"image_url": url},
		})

		return c.JSON(toProductResponse(p))
	}
}
