package purchase

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitGuard_RejectsSecondSubmit(t *testing.T) {
	g := NewSubmitGuard()

	release, err := g.Acquire("user:1")
	require.NoError(t, err)

	_, err = g.Acquire("user:1")
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	// Farklı anahtar etkilenmez
	other, err := g.Acquire("user:2")
	require.NoError(t, err)
	other()

	release()
	again, err := g.Acquire("user:1")
	require.NoError(t, err)
	again()
}

func TestSubmitGuard_ReleaseIsIdempotent(t *testing.T) {
	g := NewSubmitGuard()

	first, err := g.Acquire("k")
	require.NoError(t, err)
	first()

	second, err := g.Acquire("k")
	require.NoError(t, err)

	// İlk release tekrar çağrılınca ikinci sahibin kilidi düşmemeli
	first()
	_, err = g.Acquire("k")
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	second()
}

func TestSubmitGuard_ConcurrentAcquire(t *testing.T) {
	g := NewSubmitGuard()

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("same"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
