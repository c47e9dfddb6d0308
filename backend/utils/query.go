package utils

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scope narrows a query. Scopes are applied in order.
type Scope func(*gorm.DB) *gorm.DB

// FindWithFallback runs the preferred query (filters plus ordering). If the
// store rejects it, typically because the index backing the ordering is not
// available, the query is retried once with only the filters and the caller
// receives degraded=true so it can order the rows itself.
func FindWithFallback(ctx context.Context, db *gorm.DB, log *zap.SugaredLogger, dest interface{}, filters Scope, ordering Scope) (degraded bool, err error) {
	preferred := db.WithContext(ctx).Scopes(filters, ordering)
	if err = preferred.Find(dest).Error; err == nil {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, err
	}
	if log != nil {
		log.Warnw("ordered query failed, retrying without ordering", "error", err)
	}
	if err = db.WithContext(ctx).Scopes(filters).Find(dest).Error; err != nil {
		return true, err
	}
	return true, nil
}

func NoScope(db *gorm.DB) *gorm.DB { return db }
