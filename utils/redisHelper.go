package utils

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/fees_backend/config"
)

var mutex sync.Mutex

// get type name of generic type
func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// GetMonthlySequence hands out the next per-tenant per-calendar-month sequence
// number for T, backed by a redis counter. The counter is seeded lazily from
// the DB's max(sequence_no) for the month, so a cold cache (or flushed redis)
// resumes where the table left off.
//
// The returned value is a candidate only: callers must still confirm
// uniqueness before insert and rely on the storage unique index as the final
// arbiter.
func GetMonthlySequence[T any](ctx context.Context, tenantId int, dateColumn string, monthStart, monthEnd time.Time) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()

	cacheKey := fmt.Sprintf("t%d-%s-%s_seq", tenantId, strings.ToLower(GetTypeName[T]()), monthStart.Format("200601"))
	db := config.GetDB()

	seqNo, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return 0, err
	}
	// fresh counter (or no redis): seed from db
	if seqNo <= 1 {
		var dbSeq *int64
		if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
			Where("tenant_id = ?", tenantId).
			Where(dateColumn+" >= ? AND "+dateColumn+" < ?", monthStart, monthEnd).
			Scan(&dbSeq).Error; err != nil {
			return 0, err
		}
		if dbSeq == nil {
			seqNo = 1
		} else {
			seqNo = *dbSeq + 1
		}
		if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
			return 0, err
		}
	}
	return seqNo, nil
}

// BumpMonthlySequence advances the cached counter past a sequence number that
// turned out to be taken (concurrent writer won the insert race).
func BumpMonthlySequence[T any](ctx context.Context, tenantId int, monthStart time.Time) (int64, error) {
	cacheKey := fmt.Sprintf("t%d-%s-%s_seq", tenantId, strings.ToLower(GetTypeName[T]()), monthStart.Format("200601"))
	return config.GetRedisCounter(ctx, cacheKey)
}
