package purchase

import (
	"context"
	"errors"
	"sync"

	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"github.com/google/uuid"
)

var (
	ErrRowNotFound = errors.New("alım satırı bulunamadı")
	ErrNoProduct   = errors.New("satırda ürün seçili değil")
	// Birim çözülürken satırın ürünü veya birimi tekrar değişti
	ErrSuperseded = errors.New("satır değişti, eski dönüşüm sonucu uygulanmadı")
)

type State string

const (
	StateNoProduct       State = "no_product"
	StateProductSelected State = "product_selected"
	StateUnitOverridden  State = "unit_overridden"
)

// Resolver: ConversionResolver'ın form tarafından kullanılan kısmı
type Resolver interface {
	Resolve(ctx context.Context, productID, sourceUnitID, targetUnitID uint) (float64, error)
}

// Line: formdaki tek alım satırı. TotalCost her zaman türetilir.
type Line struct {
	ID               string  `json:"id"`
	State            State   `json:"state"`
	ProductID        uint    `json:"product_id"`
	BaseUnitID       uint    `json:"base_unit_id"`
	Quantity         float64 `json:"quantity"`
	UnitCost         float64 `json:"unit_cost"`
	PurchaseUnitID   uint    `json:"purchase_unit_id"`
	ConversionFactor float64 `json:"conversion_factor"`
	TotalCost        float64 `json:"total_cost"`

	generation uint64
}

func (l *Line) recompute() {
	l.TotalCost = pricing.LineTotal(l.Quantity, l.UnitCost, l.ConversionFactor)
}

// Form: alım girişindeki satırlar. Satırlar sabit ID ile adreslenir,
// her işlem yalnızca kendi satırını değiştirir.
type Form struct {
	resolver Resolver

	mu    sync.Mutex
	order []string
	rows  map[string]*Line
}

func NewForm(resolver Resolver) *Form {
	return &Form{
		resolver: resolver,
		rows:     make(map[string]*Line),
	}
}

// AddRow: boş satır ekler (miktar 1, maliyet 0, katsayı 1)
func (f *Form) AddRow() Line {
	f.mu.Lock()
	defer f.mu.Unlock()

	l := &Line{
		ID:               uuid.NewString(),
		State:            StateNoProduct,
		Quantity:         1,
		ConversionFactor: 1,
	}
	l.recompute()
	f.rows[l.ID] = l
	f.order = append(f.order, l.ID)
	return *l
}

func (f *Form) RemoveRow(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rows[id]; !ok {
		return ErrRowNotFound
	}
	delete(f.rows, id)
	for i, rid := range f.order {
		if rid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// AssignProduct: satıra ürün atar, alım birimini ürünün temel birimine ve
// katsayıyı 1'e sıfırlar. Devam eden birim çözümleri geçersiz olur.
func (f *Form) AssignProduct(id string, product models.Product) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.rows[id]
	if !ok {
		return Line{}, ErrRowNotFound
	}
	l.generation++
	l.ProductID = product.ID
	l.BaseUnitID = product.BaseUnitID
	l.PurchaseUnitID = product.BaseUnitID
	l.ConversionFactor = 1
	l.State = StateProductSelected
	l.recompute()
	return *l, nil
}

// SelectUnit: alım birimini değiştirir, katsayıyı temel birime göre yeniden
// çözer. Çözüm beklenirken satıra başka ürün/birim atanırsa sonuç atılır.
func (f *Form) SelectUnit(ctx context.Context, id string, unitID uint) (Line, error) {
	f.mu.Lock()
	l, ok := f.rows[id]
	if !ok {
		f.mu.Unlock()
		return Line{}, ErrRowNotFound
	}
	if l.State == StateNoProduct {
		f.mu.Unlock()
		return Line{}, ErrNoProduct
	}
	l.generation++
	gen, productID, baseUnitID := l.generation, l.ProductID, l.BaseUnitID
	f.mu.Unlock()

	factor, err := f.resolver.Resolve(ctx, productID, unitID, baseUnitID)
	if err != nil {
		return Line{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok = f.rows[id]
	if !ok {
		return Line{}, ErrRowNotFound
	}
	if l.generation != gen || l.ProductID != productID {
		return Line{}, ErrSuperseded
	}
	l.PurchaseUnitID = unitID
	l.ConversionFactor = factor
	l.State = StateUnitOverridden
	l.recompute()
	return *l, nil
}

// SetQuantity: kayıtlı katsayı ile yeniden hesaplar, dönüşüm çözülmez
func (f *Form) SetQuantity(id string, quantity float64) (Line, error) {
	return f.edit(id, func(l *Line) { l.Quantity = quantity })
}

func (f *Form) SetUnitCost(id string, unitCost float64) (Line, error) {
	return f.edit(id, func(l *Line) { l.UnitCost = unitCost })
}

func (f *Form) edit(id string, apply func(*Line)) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.rows[id]
	if !ok {
		return Line{}, ErrRowNotFound
	}
	apply(l)
	l.recompute()
	return *l, nil
}

func (f *Form) Row(id string) (Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.rows[id]
	if !ok {
		return Line{}, ErrRowNotFound
	}
	return *l, nil
}

// Rows: ekleme sırasıyla satırların kopyası
func (f *Form) Rows() []Line {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Line, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.rows[id])
	}
	return out
}

func (f *Form) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

// Total: 2 haneye yuvarlanmış satır tutarlarının toplamı.
// Kaydedilen kalem tutarlarının toplamına her zaman eşittir.
func (f *Form) Total() float64 {
	rows := f.Rows()
	totals := make([]float64, 0, len(rows))
	for _, l := range rows {
		totals = append(totals, pricing.RoundMoney(l.TotalCost))
	}
	return pricing.SumMoney(totals...)
}
