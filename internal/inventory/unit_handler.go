package inventory

import (
	"fmt"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UnitRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type UnitResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

func toUnitResponse(u models.Unit) UnitResponse {
	return UnitResponse{ID: u.ID, Name: u.Name, Abbreviation: u.Abbreviation}
}

func unitNameTaken(name string, exceptID uint) bool {
	var count int64
	database.DB.Model(&models.Unit{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).Count(&count)
	return count > 0
}

// unitInUse: temel birim, dönüşüm kenarı veya alım kalemi olarak kullanılıyor mu
func unitInUse(id uint) (bool, error) {
	checks := []*gorm.DB{
		database.DB.Model(&models.Product{}).Where("base_unit_id = ?", id),
		database.DB.Model(&models.UnitConversion{}).Where("from_unit_id = ? OR to_unit_id = ?", id, id),
		database.DB.Model(&models.PurchaseItem{}).Where("purchase_unit_id = ?", id),
		database.DB.Model(&models.PurchaseReturnItem{}).Where("purchase_unit_id = ?", id),
	}
	for _, q := range checks {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// GET /api/units
func ListUnitsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var units []models.Unit
		if err := database.DB.Order("name asc").Find(&units).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birimler listelenemedi")
		}

		res := make([]UnitResponse, 0, len(units))
		for _, u := range units {
			res = append(res, toUnitResponse(u))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/units
func CreateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Birim adı boş olamaz")
		}
		if unitNameTaken(name, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "Bu isimde bir birim zaten var")
		}

		u := models.Unit{Name: name, Abbreviation: strings.TrimSpace(body.Abbreviation)}
		if err := database.DB.Create(&u).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim oluşturulamadı")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "unit",
			EntityID:    u.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Birim eklendi: %s", u.Name),
			After:       toUnitResponse(u),
		})

		return c.Status(fiber.StatusCreated).JSON(toUnitResponse(u))
	}
}

// PUT /api/admin/units/:id
func UpdateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var u models.Unit
		if err := database.DB.First(&u, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Birim bulunamadı")
		}
		before := toUnitResponse(u)

		var body UnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Birim adı boş olamaz")
		}
		if unitNameTaken(name, u.ID) {
			return fiber.NewError(fiber.StatusBadRequest, "Bu isimde bir birim zaten var")
		}

		u.Name = name
		u.Abbreviation = strings.TrimSpace(body.Abbreviation)
		if err := database.DB.Save(&u).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim güncellenemedi")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "unit",
			EntityID:    u.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Birim güncellendi: %s", u.Name),
			Before:      before,
			After:       toUnitResponse(u),
		})

		return c.JSON(toUnitResponse(u))
	}
}

// DELETE /api/admin/units/:id
// Ürün, dönüşüm veya alım satırında geçen birim silinemez.
func DeleteUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var u models.Unit
		if err := database.DB.First(&u, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Birim bulunamadı")
		}

		used, err := unitInUse(id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanım kontrolü yapılamadı")
		}
		if used {
			return fiber.NewError(fiber.StatusConflict, "Kullanımda olan birim silinemez")
		}

		if err := database.DB.Delete(&u).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Birim silinemedi")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "unit",
			EntityID:    u.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Birim silindi: %s", u.Name),
			Before:      toUnitResponse(u),
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}
