package pricing

import (
	"cmp"
	"slices"

	"kasa-backend/internal/models"
)

// PriceQuote: istenen miktar için geçerli satış fiyatı
type PriceQuote struct {
	Price       float64 `json:"price"`
	IsWholesale bool    `json:"is_wholesale"`
	VariantName *string `json:"variant_name"`
	MinQuantity float64 `json:"min_quantity"`
}

// BestPrice: aktif kademeler minimum miktara göre büyükten küçüğe sıralanır,
// miktarı karşılayan ilk kademe uygulanır. Hiçbiri karşılanmazsa ürünün
// satış fiyatı döner. Aynı minimumda düşük fiyat, sonra düşük ID önce gelir.
// product ve kademeleri değiştirilmez.
func BestPrice(product models.Product, quantity float64) PriceQuote {
	base := PriceQuote{
		Price:       product.SellingPrice,
		IsWholesale: false,
		VariantName: nil,
		MinQuantity: 1,
	}

	active := make([]models.PriceVariant, 0, len(product.PriceVariants))
	for _, v := range product.PriceVariants {
		if v.IsActive {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return base
	}

	slices.SortFunc(active, func(a, b models.PriceVariant) int {
		if c := cmp.Compare(b.MinimumQuantity, a.MinimumQuantity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Price, b.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	for _, v := range active {
		if v.MinimumQuantity <= quantity {
			name := v.Name
			return PriceQuote{
				Price:       v.Price,
				IsWholesale: true,
				VariantName: &name,
				MinQuantity: v.MinimumQuantity,
			}
		}
	}
	return base
}
