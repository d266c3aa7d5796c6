package pricing

import (
	"testing"

	"kasa-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredProduct() models.Product {
	return models.Product{
		ID:           1,
		SellingPrice: 100,
		PriceVariants: []models.PriceVariant{
			{ID: 1, Name: "Toptan 10+", MinimumQuantity: 10, Price: 80, IsActive: true},
			{ID: 2, Name: "Toptan 5+", MinimumQuantity: 5, Price: 90, IsActive: true},
		},
	}
}

func TestBestPrice_TierSelection(t *testing.T) {
	p := tieredProduct()

	q := BestPrice(p, 1)
	assert.Equal(t, 100.0, q.Price)
	assert.False(t, q.IsWholesale)
	assert.Nil(t, q.VariantName)
	assert.Equal(t, 1.0, q.MinQuantity)

	q = BestPrice(p, 5)
	assert.Equal(t, 90.0, q.Price)
	assert.True(t, q.IsWholesale)
	assert.Equal(t, 5.0, q.MinQuantity)
	require.NotNil(t, q.VariantName)
	assert.Equal(t, "Toptan 5+", *q.VariantName)

	q = BestPrice(p, 12)
	assert.Equal(t, 80.0, q.Price)
	assert.True(t, q.IsWholesale)
	assert.Equal(t, 10.0, q.MinQuantity)
}

func TestBestPrice_NoActiveVariants(t *testing.T) {
	p := tieredProduct()
	for i := range p.PriceVariants {
		p.PriceVariants[i].IsActive = false
	}
	assert.Equal(t, PriceQuote{Price: 100, MinQuantity: 1}, BestPrice(p, 50))

	p.PriceVariants = nil
	assert.Equal(t, PriceQuote{Price: 100, MinQuantity: 1}, BestPrice(p, 50))
}

func TestBestPrice_InactiveTierIsSkipped(t *testing.T) {
	p := tieredProduct()
	p.PriceVariants[0].IsActive = false

	q := BestPrice(p, 12)
	assert.Equal(t, 90.0, q.Price)
	assert.Equal(t, 5.0, q.MinQuantity)
}

func TestBestPrice_IsPureAndIdempotent(t *testing.T) {
	p := tieredProduct()
	p.PriceVariants[0], p.PriceVariants[1] = p.PriceVariants[1], p.PriceVariants[0]
	before := append([]models.PriceVariant(nil), p.PriceVariants...)

	first := BestPrice(p, 7)
	second := BestPrice(p, 7)

	assert.Equal(t, first, second)
	assert.Equal(t, before, p.PriceVariants, "kademe sırası değişmemeli")
	assert.Equal(t, 100.0, p.SellingPrice)
}

func TestBestPrice_DuplicateMinimumPicksLowerPrice(t *testing.T) {
	p := models.Product{
		SellingPrice: 100,
		PriceVariants: []models.PriceVariant{
			{ID: 3, Name: "B", MinimumQuantity: 5, Price: 95, IsActive: true},
			{ID: 4, Name: "A", MinimumQuantity: 5, Price: 85, IsActive: true},
		},
	}
	q := BestPrice(p, 6)
	assert.Equal(t, 85.0, q.Price)
	require.NotNil(t, q.VariantName)
	assert.Equal(t, "A", *q.VariantName)
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 6000.0, LineTotal(3, 1000, 2))
	assert.Equal(t, 8000.0, LineTotal(4, 1000, 2))
	assert.Equal(t, -10.0, LineTotal(-1, 10, 1), "girdiler doğrulanmaz")
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, 0.3, SumMoney(0.1, 0.2))
	assert.Equal(t, 10.13, RoundMoney(10.125))
	assert.Equal(t, 0.0, SumMoney())
}
