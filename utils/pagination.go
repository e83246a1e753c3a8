package utils

import "gorm.io/gorm"

const pageSizeDefault = 20
const pageSizeMax = 100

// Window resolves optional offset/limit query parameters into concrete
// values. Missing or out-of-range values fall back to the defaults and the
// limit is capped so one request cannot pull the whole table.
func Window(offset, limit *int) (int, int) {
	resolvedOffset := 0
	resolvedLimit := pageSizeDefault

	if offset != nil && *offset >= 0 {
		resolvedOffset = *offset
	}
	if limit != nil && *limit > 0 {
		resolvedLimit = min(*limit, pageSizeMax)
	}
	return resolvedOffset, resolvedLimit
}

// Paginate is a gorm scope applying the resolved window to a list query.
func Paginate(offset, limit *int) func(*gorm.DB) *gorm.DB {
	resolvedOffset, resolvedLimit := Window(offset, limit)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(resolvedOffset).Limit(resolvedLimit)
	}
}
