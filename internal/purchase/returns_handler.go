package purchase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ReturnRequest struct {
	PurchaseID *uint       `json:"purchase_id"`
	SupplierID *uint       `json:"supplier_id"` // purchase_id varsa alımın tedarikçisi kullanılır
	Date       string      `json:"date"`
	Reason     string      `json:"reason"`
	Lines      []LineInput `json:"lines"`
}

type PurchaseReturnResponse struct {
	ID           uint                   `json:"id"`
	PurchaseID   *uint                  `json:"purchase_id"`
	SupplierID   *uint                  `json:"supplier_id"`
	SupplierName string                 `json:"supplier_name"`
	Date         string                 `json:"date"`
	Reason       string                 `json:"reason"`
	TotalAmount  float64                `json:"total_amount"`
	CreatedBy    uint                   `json:"created_by"`
	CreatedAt    string                 `json:"created_at"`
	Items        []PurchaseItemResponse `json:"items"`
}

func toReturnResponse(r models.PurchaseReturn) PurchaseReturnResponse {
	res := PurchaseReturnResponse{
		ID:          r.ID,
		PurchaseID:  r.PurchaseID,
		SupplierID:  r.SupplierID,
		Date:        r.Date.Format("2006-01-02"),
		Reason:      r.Reason,
		TotalAmount: r.TotalAmount,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Items:       make([]PurchaseItemResponse, 0, len(r.Items)),
	}
	if r.Supplier != nil {
		res.SupplierName = r.Supplier.Name
	}
	for _, it := range r.Items {
		res.Items = append(res.Items, PurchaseItemResponse{
			ID:               it.ID,
			ProductID:        it.ProductID,
			ProductName:      it.Product.Name,
			Quantity:         it.Quantity,
			UnitCost:         it.UnitCost,
			PurchaseUnitID:   it.PurchaseUnitID,
			ConversionFactor: it.ConversionFactor,
			BaseQuantity:     it.Quantity * it.ConversionFactor,
			TotalCost:        it.TotalCost,
		})
	}
	return res
}

// POST /api/purchase-returns
func CreatePurchaseReturnHandler(svc *Service, guard *SubmitGuard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ReturnRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		date, err := parseDate(body.Date, time.Now())
		if err != nil {
			return err
		}

		userID, _ := c.Locals(auth.CtxUserIDKey).(uint)
		release, err := guard.Acquire("return:" + submitKey(c, userID))
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Bu iade zaten kaydediliyor, lütfen bekleyin")
		}
		defer release()

		r, err := svc.CreateReturn(c.UserContext(), ReturnInput{
			PurchaseID: body.PurchaseID,
			SupplierID: body.SupplierID,
			Date:       date,
			Reason:     body.Reason,
			Lines:      body.Lines,
		}, userID)
		if err != nil {
			return toHTTPError(err)
		}
		metrics.PurchaseReturnsCreated.Inc()

		if full, err := svc.GetReturn(c.UserContext(), r.ID); err == nil {
			r = full
		}
		res := toReturnResponse(*r)

		audit.Record(c, audit.LogOptions{
			EntityType:  "purchase_return",
			EntityID:    r.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("İade kaydedildi: %d kalem, toplam %.2f (%s)", len(r.Items), r.TotalAmount, trimReason(r.Reason)),
			After:       res,
		})

		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/purchase-returns?from=2025-12-01&to=2025-12-31&purchase_id=4
func ListPurchaseReturnsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := parseRange(c)
		if err != nil {
			return err
		}
		purchaseID := c.QueryInt("purchase_id", 0)
		if purchaseID < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz purchase_id")
		}

		rows, err := svc.ListReturns(c.UserContext(), from, to, uint(purchaseID))
		if err != nil {
			return toHTTPError(err)
		}

		res := make([]PurchaseReturnResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, toReturnResponse(r))
		}
		return c.JSON(res)
	}
}

// GET /api/purchase-returns/:id
func GetPurchaseReturnHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ID")
		}

		r, err := svc.GetReturn(c.UserContext(), uint(id))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "İade bulunamadı")
		}
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(toReturnResponse(*r))
	}
}

// trimReason: audit açıklamalarında uzun gerekçeleri kısaltır
func trimReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > 60 {
		return string([]rune(reason)[:60]) + "…"
	}
	return reason
}
