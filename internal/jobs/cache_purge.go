package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger: süresi dolmuş cache kayıtlarını temizleyen herhangi bir yapı
type Purger interface {
	Purge() int
}

// StartCachePurge: schedule'a göre Purge çağırır. Dönen cron'u kapanışta Stop et.
func StartCachePurge(schedule string, target Purger, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := target.Purge(); n > 0 {
			logger.Debug("dönüşüm cache temizlendi", zap.Int("removed", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache temizleme zamanlaması geçersiz (%q): %w", schedule, err)
	}
	c.Start()
	return c, nil
}
