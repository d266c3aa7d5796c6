package inventory

import (
	"fmt"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateSupplierRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Note  string `json:"note"`
}

type SupplierResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

func toSupplierResponse(s models.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:        s.ID,
		Name:      s.Name,
		Phone:     s.Phone,
		Note:      s.Note,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GET /api/suppliers
func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var suppliers []models.Supplier
		if err := database.DB.Order("name asc").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçiler listelenemedi")
		}

		res := make([]SupplierResponse, 0, len(suppliers))
		for _, s := range suppliers {
			res = append(res, toSupplierResponse(s))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/suppliers
func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSupplierRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "isim boş olamaz")
		}

		var count int64
		if err := database.DB.Model(&models.Supplier{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçiler okunamadı")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Bu isimde bir tedarikçi zaten var")
		}

		s := models.Supplier{
			Name:  name,
			Phone: strings.TrimSpace(body.Phone),
			Note:  strings.TrimSpace(body.Note),
		}
		if err := database.DB.Create(&s).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçi kaydedilemedi")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "supplier",
			EntityID:    s.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Tedarikçi eklendi: %s", s.Name),
			After:       toSupplierResponse(s),
		})

		return c.Status(fiber.StatusCreated).JSON(toSupplierResponse(s))
	}
}

// DELETE /api/admin/suppliers/:id
func DeleteSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var s models.Supplier
		if err := database.DB.First(&s, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Tedarikçi bulunamadı")
		}

		var used int64
		if err := database.DB.Model(&models.Purchase{}).Where("supplier_id = ?", id).Count(&used).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanım kontrolü yapılamadı")
		}
		if used > 0 {
			return fiber.NewError(fiber.StatusConflict, "Alım kaydı olan tedarikçi silinemez")
		}

		if err := database.DB.Delete(&s).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Tedarikçi silinemedi")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "supplier",
			EntityID:    s.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Tedarikçi silindi: %s", s.Name),
			Before:      toSupplierResponse(s),
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}
