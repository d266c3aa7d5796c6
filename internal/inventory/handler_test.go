package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"

	"kasa-backend/internal/auth"
	"kasa-backend/internal/database/dbtest"
	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"
	"kasa-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingInvalidator struct {
	ids []uint
}

func (r *recordingInvalidator) Invalidate(productID uint) {
	r.ids = append(r.ids, productID)
}

type memUploader struct {
	keys []string
}

func (m *memUploader) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return storage.PublicURL("http://minio:9000/kasa", key), nil
}

type env struct {
	db      *gorm.DB
	app     *fiber.App
	cache   *recordingInvalidator
	up      *memUploader
	pcs     models.Unit
	box     models.Unit
	product models.Product
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)

	e := &env{db: db, cache: &recordingInvalidator{}, up: &memUploader{}}
	require.NoError(t, db.Create(&models.User{Name: "Ayşe", Email: "ayse@kasa.local", PasswordHash: "x", Role: models.RoleAdmin}).Error)

	e.pcs = models.Unit{Name: "Adet"}
	e.box = models.Unit{Name: "Koli"}
	require.NoError(t, db.Create(&e.pcs).Error)
	require.NoError(t, db.Create(&e.box).Error)

	e.product = models.Product{Name: "Kola", BaseUnitID: e.pcs.ID, SellingPrice: 25, Stock: 10, IsActive: true}
	require.NoError(t, db.Create(&e.product).Error)

	table := pricing.NewConversionTable(pricing.NewGormSource(db), 0)
	resolver := pricing.NewConversionResolver(table, zap.NewNop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(1))
		c.Locals(auth.CtxUserRoleKey, models.RoleAdmin)
		return c.Next()
	})
	app.Get("/units", ListUnitsHandler())
	app.Post("/units", CreateUnitHandler())
	app.Delete("/units/:id", DeleteUnitHandler())
	app.Put("/products/:id/conversions", SaveConversionsHandler(e.cache))
	app.Put("/products/:id/price-variants", SavePriceVariantsHandler())
	app.Get("/products/:id/conversion-factor", ConversionFactorHandler(resolver))
	app.Post("/products/:id/image", UploadProductImageHandler(e.up))
	app.Post("/stock-adjustments", CreateStockAdjustmentHandler())
	app.Get("/stock-adjustments", ListStockAdjustmentsHandler())
	app.Post("/suppliers", CreateSupplierHandler())
	app.Delete("/suppliers/:id", DeleteSupplierHandler())
	e.app = app
	return e
}

func (e *env) do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader = strings.NewReader("")
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func id(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func TestSaveConversions_ReplacesAndInvalidates(t *testing.T) {
	e := newEnv(t)
	url := "/products/" + id(e.product.ID) + "/conversions"

	status, _ := e.do(t, "PUT", url, SaveConversionsRequest{Conversions: []ConversionRequest{
		{FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 24},
	}})
	require.Equal(t, fiber.StatusOK, status)

	status, body := e.do(t, "PUT", url, SaveConversionsRequest{Conversions: []ConversionRequest{
		{FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 12},
	}})
	require.Equal(t, fiber.StatusOK, status)

	var res []ConversionResponse
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res, 1)
	assert.Equal(t, 12.0, res[0].ConversionFactor)

	var count int64
	e.db.Model(&models.UnitConversion{}).Where("product_id = ?", e.product.ID).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []uint{e.product.ID, e.product.ID}, e.cache.ids)

	// Audit kaydı yazılır
	var logs int64
	e.db.Model(&models.AuditLog{}).Where("entity_type = ?", "product_conversions").Count(&logs)
	assert.Equal(t, int64(2), logs)
}

func TestSaveConversions_Validation(t *testing.T) {
	e := newEnv(t)
	url := "/products/" + id(e.product.ID) + "/conversions"

	cases := map[string][]ConversionRequest{
		"aynı birim":     {{FromUnitID: e.pcs.ID, ToUnitID: e.pcs.ID, ConversionFactor: 2}},
		"sıfır katsayı":  {{FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 0}},
		"tanımsız birim": {{FromUnitID: 999, ToUnitID: e.pcs.ID, ConversionFactor: 2}},
		"tekrar": {
			{FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 2},
			{FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 3},
		},
	}
	for name, conv := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := e.do(t, "PUT", url, SaveConversionsRequest{Conversions: conv})
			assert.Equal(t, fiber.StatusBadRequest, status)
		})
	}
	assert.Empty(t, e.cache.ids)

	status, _ := e.do(t, "PUT", "/products/999/conversions", SaveConversionsRequest{})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestConversionFactor_Explain(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Create(&models.UnitConversion{
		ProductID: e.product.ID, FromUnitID: e.box.ID, ToUnitID: e.pcs.ID, ConversionFactor: 12,
	}).Error)
	base := "/products/" + id(e.product.ID) + "/conversion-factor"

	status, body := e.do(t, "GET", base+"?from="+id(e.box.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	var res map[string]any
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, 12.0, res["factor"])
	assert.Equal(t, string(pricing.MethodDirect), res["method"])

	_, body = e.do(t, "GET", base+"?from="+id(e.pcs.ID)+"&to="+id(e.box.ID), nil)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.InDelta(t, 1.0/12, res["factor"], 1e-12)
	assert.Equal(t, string(pricing.MethodReverse), res["method"])
}

func TestConversionFactor_NegativeUnitRejected(t *testing.T) {
	e := newEnv(t)
	base := "/products/" + id(e.product.ID) + "/conversion-factor"

	status, _ := e.do(t, "GET", base+"?from=-1", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do(t, "GET", base+"?from="+id(e.box.ID)+"&to=-7", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSavePriceVariants_KeepsInactive(t *testing.T) {
	e := newEnv(t)
	off := false

	status, _ := e.do(t, "PUT", "/products/"+id(e.product.ID)+"/price-variants", SavePriceVariantsRequest{
		Variants: []PriceVariantRequest{
			{Name: "Koli", MinimumQuantity: 12, Price: 20},
			{Name: "Kampanya", MinimumQuantity: 6, Price: 1, IsActive: &off},
		},
	})
	require.Equal(t, fiber.StatusOK, status)

	var variants []models.PriceVariant
	require.NoError(t, e.db.Order("id asc").Find(&variants, "product_id = ?", e.product.ID).Error)
	require.Len(t, variants, 2)
	assert.True(t, variants[0].IsActive)
	assert.False(t, variants[1].IsActive)

	status, _ = e.do(t, "PUT", "/products/"+id(e.product.ID)+"/price-variants", SavePriceVariantsRequest{
		Variants: []PriceVariantRequest{{Name: "", MinimumQuantity: 1, Price: 1}},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStockAdjustment_BelowZeroRejected(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, "POST", "/stock-adjustments", CreateStockAdjustmentRequest{
		ProductID: e.product.ID, Delta: -11, Reason: "sayım",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	var p models.Product
	require.NoError(t, e.db.First(&p, e.product.ID).Error)
	assert.Equal(t, 10.0, p.Stock)
	var count int64
	e.db.Model(&models.StockAdjustment{}).Count(&count)
	assert.Zero(t, count)

	status, body := e.do(t, "POST", "/stock-adjustments", CreateStockAdjustmentRequest{
		ProductID: e.product.ID, Delta: -10, Reason: "fire",
	})
	require.Equal(t, fiber.StatusCreated, status)
	var res StockAdjustmentResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, uint(1), res.UserID)

	require.NoError(t, e.db.First(&p, e.product.ID).Error)
	assert.Equal(t, 0.0, p.Stock)

	status, body = e.do(t, "GET", "/stock-adjustments?product_id="+id(e.product.ID), nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []StockAdjustmentResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Kola", list[0].ProductName)
}

func TestStockAdjustment_ConcurrentWithdrawalsStopAtZero(t *testing.T) {
	e := newEnv(t)

	const workers = 15
	statuses := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/stock-adjustments",
				strings.NewReader(`{"product_id":`+id(e.product.ID)+`,"delta":-1,"reason":"satış"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := e.app.Test(req, -1)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	created, rejected := 0, 0
	for s := range statuses {
		switch s {
		case fiber.StatusCreated:
			created++
		case fiber.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 10, created)
	assert.Equal(t, 5, rejected)

	var p models.Product
	require.NoError(t, e.db.First(&p, e.product.ID).Error)
	assert.Equal(t, 0.0, p.Stock)

	var count int64
	e.db.Model(&models.StockAdjustment{}).Count(&count)
	assert.Equal(t, int64(10), count)
}

func TestDeleteUnit_InUse(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, "DELETE", "/units/"+id(e.pcs.ID), nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = e.do(t, "DELETE", "/units/"+id(e.box.ID), nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = e.do(t, "POST", "/units", UnitRequest{Name: "adet"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSupplier_CreateAndDelete(t *testing.T) {
	e := newEnv(t)

	status, body := e.do(t, "POST", "/suppliers", CreateSupplierRequest{Name: " Toptancı "})
	require.Equal(t, fiber.StatusCreated, status)
	var s SupplierResponse
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, "Toptancı", s.Name)

	status, _ = e.do(t, "POST", "/suppliers", CreateSupplierRequest{Name: "Toptancı"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do(t, "DELETE", "/suppliers/"+id(s.ID), nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestUploadProductImage(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="kola.PNG"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/products/"+id(e.product.ID)+"/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, e.up.keys, 1)
	assert.True(t, strings.HasPrefix(e.up.keys[0], "products/"+id(e.product.ID)+"/"))
	assert.True(t, strings.HasSuffix(e.up.keys[0], ".png"))

	var p models.Product
	require.NoError(t, e.db.First(&p, e.product.ID).Error)
	assert.Equal(t, "http://minio:9000/kasa/"+e.up.keys[0], p.ImageURL)
}

func TestUploadProductImage_StorageDisabled(t *testing.T) {
	e := newEnv(t)
	e.app.Post("/disabled/:id/image", UploadProductImageHandler(storage.Disabled{}))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="a.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/disabled/"+id(e.product.ID)+"/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
