package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

func applySort(query *gorm.DB, sortBy, sortOrder, defaultColumn string) *gorm.DB {
	column := defaultColumn
	switch sortBy {
	case "created_at", "purchased_at", "start_time", "requested_at":
		column = sortBy
	}

	order := "desc"
	if sortOrder == "asc" {
		order = "asc"
	}

	return query.Order(fmt.Sprintf("%s %s", column, order))
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}
