package audit

import (
	"encoding/json"
	"fmt"

	"kasa-backend/internal/auth"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// Record: istekteki kullanıcı adına log yazar. Hata isteği bozmaz, sadece loglanır.
func Record(c *fiber.Ctx, opts LogOptions) {
	userID, userName, err := auth.CurrentUser(c)
	if err != nil {
		zap.L().Warn("audit log için kullanıcı alınamadı", zap.Error(err))
		return
	}
	opts.UserID = userID
	opts.UserName = userName

	if err := WriteLog(opts); err != nil {
		zap.L().Error("audit log yazılamadı",
			zap.String("entity_type", opts.EntityType),
			zap.Uint("entity_id", opts.EntityID),
			zap.Error(err),
		)
	}
}
