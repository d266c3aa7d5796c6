package audit

import (
	"fmt"

	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  string             `json:"before_data"`
	AfterData   string             `json:"after_data"`
}

// GET /api/audit-logs?entity_type=product&entity_id=1&user_id=2&limit=100
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		entityType := c.Query("entity_type")
		entityIDStr := c.Query("entity_id")
		userIDStr := c.Query("user_id")

		dbq := database.DB.Model(&models.AuditLog{})

		if userIDStr != "" {
			var uid uint
			if _, err := fmt.Sscan(userIDStr, &uid); err == nil && uid > 0 {
				dbq = dbq.Where("user_id = ?", uid)
			}
		}

		if entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}

		if entityIDStr != "" {
			var eid uint
			if _, err := fmt.Sscan(entityIDStr, &eid); err == nil && eid > 0 {
				dbq = dbq.Where("entity_id = ?", eid)
			}
		}

		limit := c.QueryInt("limit", 200)
		if limit <= 0 || limit > 1000 {
			limit = 200
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar listelenemedi")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				BeforeData:  log.BeforeData,
				AfterData:   log.AfterData,
			})
		}

		return c.JSON(resp)
	}
}
