package workflow

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
	"bitbucket.org/mmdatafocus/fees_backend/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FineSweeper periodically walks every active tenant and applies the day's
// late payment fines. The per-tenant redis lock keeps concurrent replicas
// from double-sweeping; the per-day idempotency guard in the fine path is the
// real safety net if the lock is lost.
type FineSweeper struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewFineSweeper(db *gorm.DB, logger *logrus.Logger) *FineSweeper {
	return &FineSweeper{db: db, logger: logger}
}

func sweepInterval() time.Duration {
	if v := os.Getenv("FINE_SWEEP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Hour
}

func (s *FineSweeper) Run(ctx context.Context) {
	if !config.AutoFineSweepEnabled() {
		s.logger.WithFields(logrus.Fields{"field": "fineSweeper"}).Info("auto fine sweep disabled")
		return
	}

	interval := sweepInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll(ctx)
		}
	}
}

func (s *FineSweeper) sweepAll(ctx context.Context) {
	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		config.LogError(s.logger, "fineSweeper.go", "sweepAll", "load tenants", nil, err)
		return
	}

	for _, tenant := range tenants {
		s.sweepTenant(ctx, tenant.ID)
	}
}

func (s *FineSweeper) sweepTenant(ctx context.Context, tenantId int) {
	locker := config.GetRedisLock()
	var lock *redislock.Lock
	if locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, fmt.Sprintf("fine-sweep:%d", tenantId), 5*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			// another replica holds the sweep for this tenant
			return
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"field":     "fineSweeper",
				"tenant_id": tenantId,
			}).Warn("could not obtain sweep lock; proceeding without it: " + err.Error())
			lock = nil
		}
	}
	defer func() {
		if lock != nil {
			if err := lock.Release(ctx); err != nil {
				s.logger.WithFields(logrus.Fields{
					"field":     "fineSweeper",
					"tenant_id": tenantId,
				}).Warn("failed to release sweep lock: " + err.Error())
			}
		}
	}()

	count, err := models.AutoApplyLateFines(ctx, tenantId)
	if err != nil {
		config.LogError(s.logger, "fineSweeper.go", "sweepTenant", "AutoApplyLateFines", tenantId, err)
		return
	}
	if count > 0 {
		s.logger.WithFields(logrus.Fields{
			"field":     "fineSweeper",
			"tenant_id": tenantId,
			"count":     count,
		}).Info("applied late payment fines")
	}
}
