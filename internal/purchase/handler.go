package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/inventory"
	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"
	"kasa-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReceiptTypes: fiş/fatura için görsel veya PDF
var ReceiptTypes = append([]string{"application/pdf"}, inventory.ImageTypes...)

type PurchaseRequest struct {
	SupplierID    *uint       `json:"supplier_id"`
	Date          string      `json:"date"` // "2025-12-09", boşsa bugün
	InvoiceNumber string      `json:"invoice_number"`
	Note          string      `json:"note"`
	Lines         []LineInput `json:"lines"`
}

type QuoteResponse struct {
	Lines []Line  `json:"lines"`
	Total float64 `json:"total"`
}

type PurchaseItemResponse struct {
	ID               uint    `json:"id"`
	ProductID        uint    `json:"product_id"`
	ProductName      string  `json:"product_name"`
	Quantity         float64 `json:"quantity"`
	UnitCost         float64 `json:"unit_cost"`
	PurchaseUnitID   uint    `json:"purchase_unit_id"`
	ConversionFactor float64 `json:"conversion_factor"`
	BaseQuantity     float64 `json:"base_quantity"`
	TotalCost        float64 `json:"total_cost"`
}

type PurchaseResponse struct {
	ID            uint                   `json:"id"`
	SupplierID    *uint                  `json:"supplier_id"`
	SupplierName  string                 `json:"supplier_name"`
	Date          string                 `json:"date"`
	InvoiceNumber string                 `json:"invoice_number"`
	TotalAmount   float64                `json:"total_amount"`
	Note          string                 `json:"note"`
	ReceiptURL    string                 `json:"receipt_url"`
	CreatedBy     uint                   `json:"created_by"`
	CreatedAt     string                 `json:"created_at"`
	Items         []PurchaseItemResponse `json:"items"`
}

func toPurchaseResponse(p models.Purchase) PurchaseResponse {
	res := PurchaseResponse{
		ID:            p.ID,
		SupplierID:    p.SupplierID,
		Date:          p.Date.Format("2006-01-02"),
		InvoiceNumber: p.InvoiceNumber,
		TotalAmount:   p.TotalAmount,
		Note:          p.Note,
		ReceiptURL:    p.ReceiptURL,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Items:         make([]PurchaseItemResponse, 0, len(p.Items)),
	}
	if p.Supplier != nil {
		res.SupplierName = p.Supplier.Name
	}
	for _, it := range p.Items {
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

// toHTTPError: servis hatalarını kullanıcıya dönecek hataya çevirir
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrUnknownProduct),
		errors.Is(err, ErrUnknownUnit),
		errors.Is(err, ErrUnknownSupplier),
		errors.Is(err, ErrNoReason),
		errors.Is(err, ErrUnknownPurchase),
		errors.Is(err, ErrExceedsPurchased),
		errors.Is(err, ErrInsufficientStock):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Alım bulunamadı")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusServiceUnavailable, "İstek zaman aşımına uğradı")
	default:
		zap.L().Error("alım işlemi başarısız", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Alım işlenemedi")
	}
}

func parseDate(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "Tarih formatı YYYY-MM-DD olmalı")
	}
	return d, nil
}

// submitKey: Idempotency-Key yoksa kullanıcı başına tek kayıt
func submitKey(c *fiber.Ctx, userID uint) string {
	if k := strings.TrimSpace(c.Get("Idempotency-Key")); k != "" {
		return "key:" + k
	}
	return fmt.Sprintf("user:%d", userID)
}

// POST /api/purchases/quote
// Satırları hesaplar, hiçbir şey yazmaz.
func QuotePurchaseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PurchaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		form, err := svc.BuildForm(c.UserContext(), body.Lines)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(QuoteResponse{Lines: form.Rows(), Total: form.Total()})
	}
}

// POST /api/purchases
func CreatePurchaseHandler(svc *Service, guard *SubmitGuard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PurchaseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		date, err := parseDate(body.Date, time.Now())
		if err != nil {
			return err
		}

		userID, _ := c.Locals(auth.CtxUserIDKey).(uint)
		release, err := guard.Acquire(submitKey(c, userID))
		if err != nil {
			metrics.PurchaseSubmitDuration.WithLabelValues("conflict").Observe(0)
			return fiber.NewError(fiber.StatusConflict, "Bu alım zaten kaydediliyor, lütfen bekleyin")
		}
		defer release()

		start := time.Now()
		p, err := svc.Create(c.UserContext(), CreateInput{
			SupplierID:    body.SupplierID,
			Date:          date,
			InvoiceNumber: strings.TrimSpace(body.InvoiceNumber),
			Note:          strings.TrimSpace(body.Note),
			Lines:         body.Lines,
		}, userID)
		if err != nil {
			metrics.PurchaseSubmitDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return toHTTPError(err)
		}
		metrics.PurchaseSubmitDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		metrics.PurchasesCreated.Inc()

		// Ürün/tedarikçi adlarıyla birlikte dön
		if full, err := svc.Get(c.UserContext(), p.ID); err == nil {
			p = full
		}
		res := toPurchaseResponse(*p)

		audit.Record(c, audit.LogOptions{
			EntityType:  "purchase",
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Alım kaydedildi: %d kalem, toplam %.2f", len(p.Items), p.TotalAmount),
			After:       res,
		})

		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/purchases?from=2025-12-01&to=2025-12-31&supplier_id=3
func ListPurchasesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := parseRange(c)
		if err != nil {
			return err
		}

		rows, err := svc.List(c.UserContext(), from, to, uint(c.QueryInt("supplier_id", 0)))
		if err != nil {
			return toHTTPError(err)
		}

		res := make([]PurchaseResponse, 0, len(rows))
		for _, p := range rows {
			res = append(res, toPurchaseResponse(p))
		}
		return c.JSON(res)
	}
}

// GET /api/purchases/:id
func GetPurchaseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ID")
		}

		p, err := svc.Get(c.UserContext(), uint(id))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(toPurchaseResponse(*p))
	}
}

// POST /api/purchases/:id/receipt (multipart, alan adı: file)
func UploadReceiptHandler(svc *Service, up storage.Uploader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ID")
		}

		p, err := svc.Get(c.UserContext(), uint(id))
		if err != nil {
			return toHTTPError(err)
		}
		oldURL := p.ReceiptURL

		url, err := inventory.UploadFile(c, up, fmt.Sprintf("receipts/%d", p.ID), ReceiptTypes)
		if err != nil {
			return err
		}
		if err := svc.SetReceiptURL(c.UserContext(), p.ID, url); err != nil {
			return toHTTPError(err)
		}
		p.ReceiptURL = url

		audit.Record(c, audit.LogOptions{
			EntityType:  "purchase",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Alım fişi yüklendi: #%d", p.ID),
			Before:      fiber.Map{"receipt_url": oldURL},
			After:       fiber.Map{"receipt_url": url},
		})

		return c.JSON(toPurchaseResponse(*p))
	}
}

// GET /api/purchases/export?from=2025-12-01&to=2025-12-31
func ExportPurchasesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := parseRange(c)
		if err != nil {
			return err
		}

		rows, err := svc.List(c.UserContext(), from, to, uint(c.QueryInt("supplier_id", 0)))
		if err != nil {
			return toHTTPError(err)
		}
		units, err := svc.UnitNames(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}

		data, err := ExportXLSX(rows, units)
		if err != nil {
			zap.L().Error("alım raporu oluşturulamadı", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Rapor oluşturulamadı")
		}

		name := "alimlar.xlsx"
		if !from.IsZero() || !to.IsZero() {
			name = fmt.Sprintf("alimlar_%s_%s.xlsx", c.Query("from", "baslangic"), c.Query("to", "bugun"))
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Send(data)
	}
}

// parseRange: to günü dahil edilir
func parseRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	from, err := parseDate(c.Query("from"), time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(c.Query("to"), time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !to.IsZero() {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "Bitiş tarihi başlangıçtan önce olamaz")
	}
	return from, to, nil
}
