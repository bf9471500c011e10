package option

import (
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement. Repositories accept a
// variadic list so callers can compose sorting and paging without the
// repository knowing about either.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithSortBy orders by the given clause. Empty clauses are no-ops so
// callers can pass the result of WithQuerySortBy unconditionally.
func WithSortBy(clause string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if clause == "" {
			return db
		}
		return db.Order(clause)
	})
}

// WithQuerySortBy builds an order clause from request parameters,
// constrained to an allow-list of sortable columns.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) string {
	sortBy = strings.TrimSpace(sortBy)
	if sortBy == "" || !allowed[sortBy] {
		return ""
	}
	direction := "ASC"
	if strings.EqualFold(strings.TrimSpace(orderBy), "desc") {
		direction = "DESC"
	}
	return sortBy + " " + direction
}

func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOffset(offset int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}
