package pricing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"

	"golang.org/x/sync/singleflight"
)

// ConversionSource: ürünün dönüşüm kenarlarını kalıcı depodan okur
type ConversionSource interface {
	ListConversions(ctx context.Context, productID uint) ([]models.UnitConversion, error)
}

type cacheEntry struct {
	edges     []models.UnitConversion
	fetchedAt time.Time
}

// fetchToken: fetch başladığında alınır, sonuç yalnızca token hâlâ güncelse cache'e yazılır
type fetchToken struct {
	epoch uint64
	gen   uint64
}

// ConversionTable: ürün bazlı dönüşüm listesi cache'i (anahtar: product_id).
// Aynı ürün için eşzamanlı istekler tek fetch'i paylaşır.
// Invalidate/Clear sonrası biten eski fetch'ler cache'e yazılmaz.
type ConversionTable struct {
	source ConversionSource
	ttl    time.Duration // <= 0 ise süresiz
	now    func() time.Time

	mu          sync.RWMutex
	entries     map[uint]cacheEntry
	generations map[uint]uint64
	epoch       uint64

	group singleflight.Group
}

func NewConversionTable(source ConversionSource, ttl time.Duration) *ConversionTable {
	return &ConversionTable{
		source:      source,
		ttl:         ttl,
		now:         time.Now,
		entries:     make(map[uint]cacheEntry),
		generations: make(map[uint]uint64),
	}
}

// Lookup: ürünün dönüşüm kenarlarını döndürür, gerekirse depodan çeker.
// Depo hatası cache'lenmez ve çağırana döner.
func (t *ConversionTable) Lookup(ctx context.Context, productID uint) ([]models.UnitConversion, error) {
	if edges, ok := t.cached(productID); ok {
		metrics.ConversionCacheLookups.WithLabelValues("hit").Inc()
		return edges, nil
	}

	token := t.token(productID)
	key := fmt.Sprintf("%d:%d:%d", productID, token.epoch, token.gen)

	ch := t.group.DoChan(key, func() (any, error) {
		// Paylaşılan fetch ilk çağıranın iptaline bağlı kalmasın
		edges, err := t.source.ListConversions(context.WithoutCancel(ctx), productID)
		if err != nil {
			metrics.ConversionFetchErrors.Inc()
			return nil, fmt.Errorf("ürün %d dönüşümleri okunamadı: %w", productID, err)
		}
		edges = slices.Clone(edges)
		t.store(productID, token, edges)
		return edges, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.ConversionCacheLookups.WithLabelValues("shared").Inc()
		} else {
			metrics.ConversionCacheLookups.WithLabelValues("miss").Inc()
		}
		return slices.Clone(res.Val.([]models.UnitConversion)), nil
	}
}

// Invalidate: ürünün dönüşümleri kaydedildiğinde çağrılır
func (t *ConversionTable) Invalidate(productID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, productID)
	t.generations[productID]++
}

// Purge: süresi dolmuş kayıtları siler, silinen kayıt sayısını döner
func (t *ConversionTable) Purge() int {
	if t.ttl <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := t.now()
	for id, e := range t.entries {
		if now.Sub(e.fetchedAt) >= t.ttl {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Clear: tüm cache'i boşaltır (kapanışta)
func (t *ConversionTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[uint]cacheEntry)
	t.epoch++
}

// Len: cache'teki ürün sayısı
func (t *ConversionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *ConversionTable) cached(productID uint) ([]models.UnitConversion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[productID]
	if !ok {
		return nil, false
	}
	if t.ttl > 0 && t.now().Sub(e.fetchedAt) >= t.ttl {
		return nil, false
	}
	return slices.Clone(e.edges), true
}

func (t *ConversionTable) token(productID uint) fetchToken {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fetchToken{epoch: t.epoch, gen: t.generations[productID]}
}

func (t *ConversionTable) store(productID uint, token fetchToken, edges []models.UnitConversion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token.epoch != t.epoch || token.gen != t.generations[productID] {
		return
	}
	t.entries[productID] = cacheEntry{edges: edges, fetchedAt: t.now()}
}
