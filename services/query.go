package services

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Date range filters shared by list endpoints.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
)

func paginate(q *gorm.DB, page, size int) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return q.Offset((page - 1) * size).Limit(size)
}

// rangeStart maps today/week/month to the earliest matching instant; ok is
// false for an empty or unknown range.
func rangeStart(now time.Time, r string) (time.Time, bool) {
	switch strings.ToLower(r) {
	case RangeToday:
		return startOfDay(now), true
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// likePattern wraps a search term for a substring LIKE match.
func likePattern(s string) string {
	return "%" + strings.TrimSpace(s) + "%"
}
