package pricing

import "github.com/shopspring/decimal"

// LineTotal: alım kalemi tutarı. Girdiler doğrulanmaz, negatif değerler olduğu gibi çarpılır.
func LineTotal(quantity, unitCost, conversionFactor float64) float64 {
	return quantity * unitCost * conversionFactor
}

// RoundMoney: kalıcı kayıt ve yanıtlar için 2 haneye yuvarlar
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// SumMoney: float toplama hatası birikmesin diye decimal ile toplar
func SumMoney(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}
