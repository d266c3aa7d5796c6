package purchase

import (
	"errors"
	"sync"
)

var ErrSubmitInFlight = errors.New("aynı alım zaten kaydediliyor")

// SubmitGuard: aynı anahtarla ikinci kaydı, ilki bitene kadar reddeder
type SubmitGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSubmitGuard() *SubmitGuard {
	return &SubmitGuard{inflight: make(map[string]struct{})}
}

// Acquire: başarılıysa release fonksiyonu döner, release birden fazla çağrılabilir
func (g *SubmitGuard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[key]; busy {
		return nil, ErrSubmitInFlight
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, nil
}
