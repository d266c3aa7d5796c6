package pricing

import (
	"context"
	"math"

	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"

	"go.uber.org/zap"
)

// ConversionLookup: ConversionTable'ın resolver'ın ihtiyaç duyduğu kısmı
type ConversionLookup interface {
	Lookup(ctx context.Context, productID uint) ([]models.UnitConversion, error)
}

type Method string

const (
	MethodIdentity Method = "identity" // aynı birim veya birim yok
	MethodDirect   Method = "direct"
	MethodReverse  Method = "reverse"
	MethodFallback Method = "fallback" // kenar yok, katsayı 1 kabul edildi
)

// Resolution: katsayı ve nasıl bulunduğu
type Resolution struct {
	Factor float64 `json:"factor"`
	Method Method  `json:"method"`
	// Eşleşen ama katsayısı pozitif olmayan kenar atlandı
	Malformed bool `json:"malformed"`
}

// ConversionResolver: kaynak birimden hedef (temel) birime çarpan bulur.
// Sadece doğrudan ve ters kenar denenir, zincirleme çözüm yapılmaz.
// Bilinmeyen veya bozuk dönüşüm alımı engellemez: katsayı 1 döner.
type ConversionResolver struct {
	table  ConversionLookup
	logger *zap.Logger
}

func NewConversionResolver(table ConversionLookup, logger *zap.Logger) *ConversionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionResolver{table: table, logger: logger}
}

// Resolve: sadece katsayıyı döner. Hata yalnızca depo okunamazsa oluşur.
func (r *ConversionResolver) Resolve(ctx context.Context, productID, sourceUnitID, targetUnitID uint) (float64, error) {
	res, err := r.Explain(ctx, productID, sourceUnitID, targetUnitID)
	if err != nil {
		return 0, err
	}
	return res.Factor, nil
}

func (r *ConversionResolver) Explain(ctx context.Context, productID, sourceUnitID, targetUnitID uint) (Resolution, error) {
	if sourceUnitID == 0 || targetUnitID == 0 || sourceUnitID == targetUnitID {
		return r.done(productID, Resolution{Factor: 1, Method: MethodIdentity}), nil
	}

	edges, err := r.table.Lookup(ctx, productID)
	if err != nil {
		return Resolution{}, err
	}

	malformed := false

	if e, ok := findEdge(edges, sourceUnitID, targetUnitID); ok {
		if validFactor(e.ConversionFactor) {
			return r.done(productID, Resolution{Factor: e.ConversionFactor, Method: MethodDirect}), nil
		}
		malformed = true
	}

	if e, ok := findEdge(edges, targetUnitID, sourceUnitID); ok {
		if validFactor(e.ConversionFactor) && validFactor(1/e.ConversionFactor) {
			return r.done(productID, Resolution{Factor: 1 / e.ConversionFactor, Method: MethodReverse, Malformed: malformed}), nil
		}
		malformed = true
	}

	if malformed {
		metrics.MalformedConversions.Inc()
		r.logger.Warn("geçersiz dönüşüm katsayısı atlandı",
			zap.Uint("product_id", productID),
			zap.Uint("source_unit_id", sourceUnitID),
			zap.Uint("target_unit_id", targetUnitID),
		)
	}
	return r.done(productID, Resolution{Factor: 1, Method: MethodFallback, Malformed: malformed}), nil
}

func (r *ConversionResolver) done(productID uint, res Resolution) Resolution {
	metrics.ConversionResolutions.WithLabelValues(string(res.Method)).Inc()
	r.logger.Debug("dönüşüm çözüldü",
		zap.Uint("product_id", productID),
		zap.String("method", string(res.Method)),
		zap.Float64("factor", res.Factor),
	)
	return res
}

// findEdge: listedeki ilk from->to kenarı
func findEdge(edges []models.UnitConversion, from, to uint) (models.UnitConversion, bool) {
	for _, e := range edges {
		if e.FromUnitID == from && e.ToUnitID == to {
			return e, true
		}
	}
	return models.UnitConversion{}, false
}

func validFactor(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
